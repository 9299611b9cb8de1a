// Package engine orchestrates a pricing call: retrieval, validation and reasoning pick a
// reference job, then the market benchmark and the evaluation band are computed concurrently
// and merged into one result with the provenance of every degraded path.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/job-pricer/internal/evaluation"
	"github.com/jonathan/job-pricer/internal/index"
	"github.com/jonathan/job-pricer/internal/llm"
	"github.com/jonathan/job-pricer/internal/logger"
	"github.com/jonathan/job-pricer/internal/market"
	"github.com/jonathan/job-pricer/internal/matching"
	"github.com/jonathan/job-pricer/internal/metrics"
	"github.com/jonathan/job-pricer/internal/params"
	"github.com/jonathan/job-pricer/internal/pricing"
	"github.com/jonathan/job-pricer/internal/retry"
	"github.com/jonathan/job-pricer/internal/types"
	"github.com/jonathan/job-pricer/internal/validation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Stage names used in provenance, logs and metrics.
const (
	StageRequest    = "validate_request"
	StageEmbed      = "embed"
	StageSearch     = "search"
	StageCandidates = "validate_candidates"
	StageReason     = "reason"
	StageMarket     = "market"
	StageEvaluation = "evaluation"
	StagePricing    = "pricing"
)

// Defaults
const (
	DefaultTopK          = 10
	DefaultEmbedTimeout  = 10 * time.Second
	DefaultSearchTimeout = 5 * time.Second
)

// Recorder persists a finished pricing call.
type Recorder interface {
	RecordPricing(ctx context.Context, req *types.JobRequest, result *types.PricingResult) (uuid.UUID, error)
}

// ProgressEvent reports a finished stage.
type ProgressEvent struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// ProgressCallback is called when a stage finishes
type ProgressCallback func(event ProgressEvent)

// Deps are the collaborators of an Engine. Embedder, Index, Reasoner, Market and Recorder may
// be nil; each missing collaborator becomes a degraded path.
type Deps struct {
	Embedder  llm.Embedder
	Index     index.Index
	Validator *validation.Validator
	Reasoner  *matching.Reasoner
	Market    *market.Aggregator
	Recorder  Recorder
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// Options tune retrieval.
type Options struct {
	TopK          int
	EmbedTimeout  time.Duration
	SearchTimeout time.Duration
	Retry         retry.Config
	// OnProgress may be called from concurrent goroutines.
	OnProgress ProgressCallback
}

// DefaultOptions returns the retrieval defaults: one bounded retry per upstream call.
func DefaultOptions() Options {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 2
	return Options{
		TopK:          DefaultTopK,
		EmbedTimeout:  DefaultEmbedTimeout,
		SearchTimeout: DefaultSearchTimeout,
		Retry:         cfg,
	}
}

// Engine prices job requests. It holds no per-call state and is safe for concurrent use.
type Engine struct {
	deps Deps
	opts Options
	log  *zap.Logger
}

// New creates an Engine. Zero-valued options fall back to DefaultOptions.
func New(deps Deps, opts Options) *Engine {
	def := DefaultOptions()
	if opts.TopK <= 0 {
		opts.TopK = def.TopK
	}
	if opts.EmbedTimeout <= 0 {
		opts.EmbedTimeout = def.EmbedTimeout
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = def.SearchTimeout
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = def.Retry
	}
	if deps.Validator == nil {
		deps.Validator = validation.New(nil)
	}
	if deps.Reasoner == nil {
		deps.Reasoner = matching.NewReasoner(nil, matching.WithLogger(deps.Logger))
	}
	log := logger.OrNop(deps.Logger)
	opts.Retry.Logger = log
	return &Engine{deps: deps, opts: opts, log: log}
}

// WithProgress returns a copy of e that reports finished stages to cb.
func (e *Engine) WithProgress(cb ProgressCallback) *Engine {
	cp := *e
	cp.opts.OnProgress = cb
	return &cp
}

// trail collects the degraded paths of one stage group.
type trail []types.ProvenanceEntry

func (t *trail) add(log *zap.Logger, kind, stage string, err error) {
	entry := types.ProvenanceEntry{Kind: kind, Stage: stage}
	if err != nil {
		entry.Detail = err.Error()
	}
	*t = append(*t, entry)
	log.Warn("degraded path taken",
		zap.String(logger.FieldStage, stage),
		zap.String("kind", kind),
		zap.Error(err))
}

// call holds the state of one pricing call.
type call struct {
	req   *types.JobRequest
	log   *zap.Logger
	trail trail
}

func (c *call) degrade(kind, stage string, err error) {
	c.trail.add(c.log, kind, stage, err)
}

// PriceJob matches req to a reference job and prices it against snapshot. Only an invalid
// request or the end of ctx produce an error; every other failure is recorded in the result's
// provenance.
func (e *Engine) PriceJob(ctx context.Context, req *types.JobRequest, snapshot *types.PricingParameters) (*types.PricingResult, error) {
	started := time.Now()
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", types.ErrInvalidJobRequest)
	}
	if err := req.Validate(); err != nil {
		e.deps.Metrics.Priced("invalid")
		return nil, err
	}
	e.progress(StageRequest, "request validated")

	c := &call{req: req, log: e.log.With(zap.String(logger.FieldJobTitle, req.Title))}

	match, err := e.match(ctx, c)
	if err != nil {
		e.deps.Metrics.Priced("canceled")
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		e.deps.Metrics.Priced("canceled")
		return nil, err
	}

	result, err := e.price(ctx, c, match, snapshot)
	if err != nil {
		e.deps.Metrics.Priced("canceled")
		return nil, err
	}

	e.observe(result)
	e.deps.Metrics.ObserveStage("total", started)

	if e.deps.Recorder != nil {
		if runID, err := e.deps.Recorder.RecordPricing(ctx, req, result); err != nil {
			c.log.Warn("failed to record pricing run", zap.Error(err))
		} else {
			c.log.Debug("pricing run recorded", zap.String("run_id", runID.String()))
		}
	}
	return result, nil
}

// match runs retrieval, validation and reasoning. It returns an error only when ctx ends.
func (e *Engine) match(ctx context.Context, c *call) (types.MatchResult, error) {
	vector, err := e.embed(ctx, c.req)
	if err != nil {
		if ctx.Err() != nil {
			return types.MatchResult{}, ctx.Err()
		}
		c.degrade(types.DegradedEmbedding, StageEmbed, err)
		return e.noMatch(c, StageEmbed, err), nil
	}
	if err := ctx.Err(); err != nil {
		return types.MatchResult{}, err
	}

	candidates, err := e.search(ctx, vector, c.req.JobFamily)
	if err != nil {
		if ctx.Err() != nil {
			return types.MatchResult{}, ctx.Err()
		}
		c.degrade(types.DegradedIndex, StageSearch, err)
		return e.noMatch(c, StageSearch, err), nil
	}
	if err := ctx.Err(); err != nil {
		return types.MatchResult{}, err
	}

	stageStart := time.Now()
	validated, err := e.deps.Validator.Validate(c.req, candidates)
	e.deps.Metrics.ObserveStage(StageCandidates, stageStart)
	if err != nil {
		c.degrade(types.DegradedNoCandidates, StageCandidates, err)
		return e.noMatch(c, StageCandidates, err), nil
	}
	e.progress(StageCandidates, fmt.Sprintf("%d of %d candidates passed validation", len(validated), len(candidates)))
	if err := ctx.Err(); err != nil {
		return types.MatchResult{}, err
	}

	stageStart = time.Now()
	outcome, err := e.deps.Reasoner.Match(ctx, c.req, validated)
	e.deps.Metrics.ObserveStage(StageReason, stageStart)
	if err != nil {
		return types.MatchResult{}, err
	}

	switch {
	case outcome.Fallback == nil:
	case errors.Is(outcome.Fallback, matching.ErrNoCandidates):
		return e.noMatch(c, StageSearch, outcome.Fallback), nil
	case errors.Is(outcome.Fallback, matching.ErrReasoningMalformed):
		c.degrade(types.DegradedReasoningMalformed, StageReason, outcome.Fallback)
	default:
		c.degrade(types.DegradedReasoningDown, StageReason, outcome.Fallback)
	}
	e.progress(StageReason, fmt.Sprintf("selected %s (%s, confidence %.2f)",
		outcome.Result.JobCode, outcome.Result.MatchingMethod, outcome.Result.Confidence))
	return outcome.Result, nil
}

func (e *Engine) noMatch(c *call, stage string, cause error) types.MatchResult {
	c.degrade(types.DegradedNoMatch, stage, nil)
	return types.NoMatch(cause.Error())
}

// SearchText is the text embedded for a request.
func SearchText(req *types.JobRequest) string {
	parts := []string{strings.TrimSpace(req.Title), strings.TrimSpace(req.Description)}
	if len(req.Skills) > 0 {
		parts = append(parts, "Skills: "+strings.Join(req.Skills, ", "))
	}
	return strings.Join(parts, "\n")
}

func (e *Engine) embed(ctx context.Context, req *types.JobRequest) ([]float32, error) {
	if e.deps.Embedder == nil {
		return nil, errors.New("no embedding provider configured")
	}
	defer e.deps.Metrics.ObserveStage(StageEmbed, time.Now())

	text := SearchText(req)
	return retry.DoWithResult(ctx, e.opts.Retry, func(ctx context.Context) ([]float32, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, e.opts.EmbedTimeout)
		defer cancel()
		v, err := e.deps.Embedder.Embed(attemptCtx, text)
		if err == nil && len(v) == 0 {
			err = errors.New("embedding provider returned an empty vector")
		}
		return v, err
	})
}

func (e *Engine) search(ctx context.Context, vector []float32, family string) ([]types.MatchCandidate, error) {
	if e.deps.Index == nil {
		return nil, fmt.Errorf("%w: no index configured", index.ErrIndexUnavailable)
	}
	defer e.deps.Metrics.ObserveStage(StageSearch, time.Now())

	candidates, err := retry.DoWithResult(ctx, e.opts.Retry, func(ctx context.Context) ([]types.MatchCandidate, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, e.opts.SearchTimeout)
		defer cancel()
		return e.deps.Index.Search(attemptCtx, vector, strings.TrimSpace(family), e.opts.TopK)
	})
	if err != nil {
		return nil, err
	}
	e.progress(StageSearch, fmt.Sprintf("retrieved %d candidates", len(candidates)))
	return candidates, nil
}

// price runs the market path and the evaluation and pricing path concurrently and merges them.
func (e *Engine) price(ctx context.Context, c *call, match types.MatchResult, snapshot *types.PricingParameters) (*types.PricingResult, error) {
	var (
		benchmark  *types.MarketBenchmark
		summary    *types.EvaluationSummary
		priced     *pricing.Result
		marketOut  trail
		pricingOut trail
	)

	g, gCtx := errgroup.WithContext(ctx)

	// Market branch
	g.Go(func() error {
		b, err := e.resolveMarket(gCtx, c, match, &marketOut)
		if err != nil {
			return err
		}
		benchmark = b
		return nil
	})

	// Evaluation and pricing branch
	g.Go(func() error {
		if err := gCtx.Err(); err != nil {
			return err
		}
		summary = e.evaluate(c, match, &pricingOut)
		priced = e.applyPricing(c, snapshot, &pricingOut)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &types.PricingResult{
		JobTitle:             c.req.Title,
		Match:                match,
		Evaluation:           summary,
		Adjustments:          []types.Adjustment{},
		MatchedSkills:        []string{},
		MarketBenchmark:      benchmark,
		Confidence:           match.Confidence,
		ConfidenceTier:       match.Tier,
		RequiresManualReview: match.RequiresManualReview,
		Sources:              []types.PricingSource{},
	}
	if snapshot != nil {
		result.ParametersVersion = snapshot.Version
	}
	if priced != nil {
		result.BaseRange = priced.Base
		result.Adjustments = priced.Adjustments
		result.AppliedSkillPremium = priced.Premium
		result.SkillPremiumCapped = priced.PremiumCapped
		result.MatchedSkills = priced.MatchedSkills
		result.FinalRange = priced.Final
		result.Midpoint = priced.Midpoint
		result.Sources = append(result.Sources, types.SourceEvaluationBand)
	}
	if benchmark != nil {
		result.Sources = append(result.Sources, types.SourceMarketData)
	}

	provenance := make([]types.ProvenanceEntry, 0, len(c.trail)+len(marketOut)+len(pricingOut))
	provenance = append(provenance, c.trail...)
	provenance = append(provenance, marketOut...)
	provenance = append(provenance, pricingOut...)
	result.Provenance = provenance
	return result, nil
}

func (e *Engine) resolveMarket(ctx context.Context, c *call, match types.MatchResult, out *trail) (*types.MarketBenchmark, error) {
	if !match.Matched() || match.Record == nil {
		out.add(c.log, types.DegradedNoMarketData, StageMarket, errors.New("no matched reference job"))
		return nil, nil
	}
	if e.deps.Market == nil {
		out.add(c.log, types.DegradedMarketStore, StageMarket, market.ErrStoreUnavailable)
		return nil, nil
	}

	defer e.deps.Metrics.ObserveStage(StageMarket, time.Now())
	benchmark, err := e.deps.Market.Resolve(ctx, match.Record, c.req.Country)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, market.ErrNoMarketData):
		out.add(c.log, types.DegradedNoMarketData, StageMarket, err)
		return nil, nil
	default:
		out.add(c.log, types.DegradedMarketStore, StageMarket, err)
		return nil, nil
	}

	if benchmark.LowSampleConfidence {
		out.add(c.log, types.DegradedLowSampleMarket, StageMarket,
			fmt.Errorf("blended %d cuts with %d samples", len(benchmark.SourceCuts), benchmark.SampleSize))
	}
	e.progress(StageMarket, fmt.Sprintf("benchmark from %s cut, p50 %.0f %s", benchmark.Cut, benchmark.Percentiles.P50, benchmark.Currency))
	return benchmark, nil
}

func (e *Engine) evaluate(c *call, match types.MatchResult, out *trail) *types.EvaluationSummary {
	var reference *types.ReferenceJobRecord
	if match.Matched() {
		reference = match.Record
	}

	summary, err := evaluation.Evaluate(c.req.Evaluation, reference)
	if err != nil {
		out.add(c.log, types.DegradedEvaluation, StageEvaluation, err)
		return nil
	}

	if org := c.req.Organization; org != nil {
		size, err := evaluation.OrganizationSize(org.NetRevenue, org.Type, org.Stage)
		if err != nil {
			out.add(c.log, types.DegradedEvaluation, StageEvaluation, err)
		} else {
			summary.OrganizationSize = &size
		}
	}
	e.progress(StageEvaluation, fmt.Sprintf("%d points, position class %d", summary.TotalPoints, summary.PositionClass))
	return summary
}

func (e *Engine) applyPricing(c *call, snapshot *types.PricingParameters, out *trail) *pricing.Result {
	if err := params.Validate(snapshot); err != nil {
		out.add(c.log, types.DegradedInvalidParameters, StagePricing, err)
		return nil
	}

	priced, err := pricing.Price(snapshot, pricing.Input{
		ExperienceYears: c.req.Experience(),
		Industry:        c.req.Industry,
		CompanySize:     c.req.CompanySize,
		Skills:          c.req.Skills,
	})
	if err != nil {
		out.add(c.log, types.DegradedInvalidParameters, StagePricing, err)
		return nil
	}
	e.progress(StagePricing, fmt.Sprintf("final range %.2f - %.2f", priced.Final.Min, priced.Final.Max))
	return priced
}

func (e *Engine) observe(result *types.PricingResult) {
	m := e.deps.Metrics
	m.Matched(string(result.Match.MatchingMethod), string(result.ConfidenceTier), result.Confidence)
	for _, p := range result.Provenance {
		m.Degraded(p.Kind)
	}
	if result.Degraded() {
		m.Priced("degraded")
		return
	}
	m.Priced("ok")
}

func (e *Engine) progress(stage, message string) {
	if e.opts.OnProgress != nil {
		e.opts.OnProgress(ProgressEvent{Stage: stage, Message: message})
	}
}
