package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/job-pricer/internal/cache"
	"github.com/jonathan/job-pricer/internal/config"
	"github.com/jonathan/job-pricer/internal/db"
	"github.com/jonathan/job-pricer/internal/engine"
	"github.com/jonathan/job-pricer/internal/index"
	"github.com/jonathan/job-pricer/internal/llm"
	"github.com/jonathan/job-pricer/internal/logger"
	"github.com/jonathan/job-pricer/internal/market"
	"github.com/jonathan/job-pricer/internal/matching"
	"github.com/jonathan/job-pricer/internal/metrics"
	"github.com/jonathan/job-pricer/internal/params"
	"github.com/jonathan/job-pricer/internal/retry"
	"go.uber.org/zap"
)

// embeddingCacheSize bounds the in-process cache used when Redis is not configured.
const embeddingCacheSize = 4096

// app holds the components built from configuration for one command.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	metrics *metrics.Metrics
	db      *db.DB
	params  *params.Store
	engine  *engine.Engine

	closers []func() error
}

// appOptions select which components a command needs.
type appOptions struct {
	// paramsFile overrides params.file when set.
	paramsFile string
	// record persists every pricing call when a database is configured.
	record bool
}

// loadConfig reads and validates the configuration named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Log.Debug = true
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logger.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}

// newApp builds the engine and its collaborators. Optional collaborators that fail to start
// are logged and left out; the engine then reports the matching degraded path on every call.
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if opts.paramsFile != "" {
		cfg.Params.File = opts.paramsFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, metrics: metrics.New()}
	a.closers = append(a.closers, func() error { _ = log.Sync(); return nil })

	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.db = database
		a.closers = append(a.closers, func() error { database.Close(); return nil })
	}

	a.params, err = params.NewStore(cfg.Params.File, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load pricing parameters: %w", err)
	}

	idx, err := a.buildIndex(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	store, err := a.buildMarketStore()
	if err != nil {
		a.Close()
		return nil, err
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = cfg.Retry.Attempts
	retryCfg.InitialDelay = cfg.Retry.InitialDelay

	deps := engine.Deps{
		Embedder: a.buildEmbedder(ctx),
		Index:    idx,
		Reasoner: a.buildReasoner(ctx, retryCfg),
		Market:   market.NewAggregator(store, cfg.Market.MinSampleSize, log),
		Metrics:  a.metrics,
		Logger:   log,
	}
	if opts.record && a.db != nil {
		deps.Recorder = a.db
	}

	a.engine = engine.New(deps, engine.Options{
		TopK:         cfg.Index.TopK,
		EmbedTimeout: cfg.Embedding.Timeout,
		Retry:        retryCfg,
	})
	return a, nil
}

// recordSource returns the database, or the records file loaded into memory.
func (a *app) recordSource() (index.RecordSource, error) {
	if a.db != nil {
		return a.db, nil
	}
	if a.cfg.Index.RecordsFile == "" {
		return nil, errors.New("reference jobs need database_url or index.records_file")
	}
	records, err := index.LoadRecordsFile(a.cfg.Index.RecordsFile)
	if err != nil {
		return nil, err
	}
	return index.NewMemoryIndex(records, a.log), nil
}

func (a *app) buildIndex(ctx context.Context) (index.Index, error) {
	switch a.cfg.Index.Backend {
	case config.BackendPostgres:
		if a.db == nil {
			return nil, errors.New("postgres index requires database_url")
		}
		a.log.Info("using postgres reference job index")
		return index.NewPostgresIndex(a.db), nil

	case config.BackendMilvus:
		records, err := a.recordSource()
		if err != nil {
			return nil, err
		}
		mv, err := index.NewMilvusIndex(ctx, a.cfg.Milvus.Endpoint, a.cfg.Milvus.Collection,
			a.cfg.Embedding.Dimension, records, a.log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, mv.Close)
		return mv, nil

	default:
		records, err := index.LoadRecordsFile(a.cfg.Index.RecordsFile)
		if err != nil {
			return nil, err
		}
		a.log.Info("using in-memory reference job index", zap.Int("records", len(records)))
		return index.NewMemoryIndex(records, a.log), nil
	}
}

func (a *app) buildMarketStore() (market.Store, error) {
	if a.cfg.Market.Backend == config.BackendPostgres {
		if a.db == nil {
			return nil, errors.New("postgres market store requires database_url")
		}
		return market.NewPostgresStore(a.db), nil
	}
	return market.LoadFile(a.cfg.Market.File)
}

// buildEmbedder returns the configured embedder behind a cache, or nil when it cannot start.
func (a *app) buildEmbedder(ctx context.Context) llm.Embedder {
	provider, err := llm.ParseProvider(a.cfg.Embedding.Provider)
	if err != nil {
		a.log.Warn("embedding disabled", zap.Error(err))
		return nil
	}
	inner, err := llm.NewEmbedder(ctx, provider, a.cfg.Embedding.Model, a.cfg.Embedding.APIKey)
	if err != nil {
		a.log.Warn("embedding disabled", zap.String(logger.FieldProvider, string(provider)), zap.Error(err))
		return nil
	}

	var store cache.EmbeddingCache = cache.NewMemoryCache(embeddingCacheSize)
	if r := a.cfg.Redis; r.Addr != "" {
		rc, err := cache.NewRedisCache(ctx, r.Addr, r.Password, r.DB, r.TTL)
		if err != nil {
			a.log.Warn("redis unavailable, using in-process embedding cache", zap.Error(err))
		} else {
			store = rc
			a.closers = append(a.closers, rc.Close)
		}
	}
	return cache.NewCachedEmbedder(inner, store, a.log, a.metrics)
}

// buildReasoner returns a reasoner over the configured LLM. Without one the reasoner runs in
// embedding-only mode.
func (a *app) buildReasoner(ctx context.Context, retryCfg retry.Config) *matching.Reasoner {
	opts := []matching.Option{
		matching.WithTier(llm.ModelTier(a.cfg.LLM.Tier)),
		matching.WithTimeout(a.cfg.LLM.Timeout),
		matching.WithRetry(retryCfg),
		matching.WithLogger(a.log),
	}
	if !a.cfg.ReasoningEnabled() {
		a.log.Info("reasoning disabled, matching by embedding similarity only")
		return matching.NewReasoner(nil, opts...)
	}

	models, err := a.cfg.LLMModels()
	if err != nil {
		a.log.Warn("reasoning disabled", zap.Error(err))
		return matching.NewReasoner(nil, opts...)
	}
	client, err := llm.NewClient(ctx, models, a.cfg.LLM.APIKey)
	if err != nil {
		a.log.Warn("reasoning disabled", zap.String(logger.FieldProvider, string(models.Provider)), zap.Error(err))
		return matching.NewReasoner(nil, opts...)
	}
	a.closers = append(a.closers, client.Close)
	return matching.NewReasoner(client, opts...)
}

// Close releases everything newApp opened, last opened first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.log != nil {
			a.log.Debug("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}
