// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jonathan/job-pricer/internal/llm"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. JOB_PRICER_INDEX_TOP_K.
const EnvPrefix = "JOB_PRICER"

// DefaultFileName is looked up in the working directory when no path is given.
const DefaultFileName = "job_pricer"

// Backend names
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMilvus   = "milvus"
)

// Config is the full runtime configuration.
type Config struct {
	Log         LogConfig       `mapstructure:"log"`
	DatabaseURL string          `mapstructure:"database_url"`
	LLM         LLMConfig       `mapstructure:"llm"`
	Embedding   EmbeddingConfig `mapstructure:"embedding"`
	Index       IndexConfig     `mapstructure:"index"`
	Milvus      MilvusConfig    `mapstructure:"milvus"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Market      MarketConfig    `mapstructure:"market"`
	Params      ParamsConfig    `mapstructure:"params"`
	Server      ServerConfig    `mapstructure:"server"`
	Retry       RetryConfig     `mapstructure:"retry"`
}

// LogConfig selects the logger encoding and level.
type LogConfig struct {
	JSON  bool `mapstructure:"json"`
	Debug bool `mapstructure:"debug"`
}

// LLMConfig configures the reasoning collaborator. An empty provider disables reasoning.
type LLMConfig struct {
	Provider string            `mapstructure:"provider"`
	Tier     string            `mapstructure:"tier"`
	Models   map[string]string `mapstructure:"models"`
	APIKey   string            `mapstructure:"api_key"`
	Timeout  time.Duration     `mapstructure:"timeout"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Provider  string        `mapstructure:"provider"`
	Model     string        `mapstructure:"model"`
	APIKey    string        `mapstructure:"api_key"`
	Dimension int           `mapstructure:"dimension"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// IndexConfig selects the reference job index.
type IndexConfig struct {
	Backend     string `mapstructure:"backend"`
	RecordsFile string `mapstructure:"records_file"`
	TopK        int    `mapstructure:"top_k"`
}

// MilvusConfig locates the Milvus collection.
type MilvusConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	Collection string `mapstructure:"collection"`
}

// RedisConfig enables the embedding cache when Addr is set.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// MarketConfig selects the benchmark store.
type MarketConfig struct {
	Backend       string `mapstructure:"backend"`
	File          string `mapstructure:"file"`
	MinSampleSize int    `mapstructure:"min_sample_size"`
}

// ParamsConfig locates the pricing parameter snapshots.
type ParamsConfig struct {
	File  string `mapstructure:"file"`
	Watch bool   `mapstructure:"watch"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port               int    `mapstructure:"port"`
	RateLimitPerMin    int    `mapstructure:"rate_limit_per_min"`
	RateLimitBurst     int    `mapstructure:"rate_limit_burst"`
	RateLimitWhitelist string `mapstructure:"rate_limit_whitelist"`
	BatchConcurrency   int    `mapstructure:"batch_concurrency"`
}

// RetryConfig bounds retries of upstream calls.
type RetryConfig struct {
	Attempts     int           `mapstructure:"attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
}

// Load reads path, or job_pricer.yaml in the working directory when path is empty, then
// applies JOB_PRICER_ environment overrides. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName(DefaultFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	applyProviderKeys(cfg)
	return cfg, nil
}

// Default returns the configuration used when no file or environment overrides exist.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.json", false)
	v.SetDefault("log.debug", false)

	v.SetDefault("database_url", "")

	v.SetDefault("llm.provider", "")
	v.SetDefault("llm.tier", string(llm.TierStandard))
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.timeout", "20s")

	v.SetDefault("embedding.provider", string(llm.ProviderGemini))
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.dimension", 768)
	v.SetDefault("embedding.timeout", "10s")

	v.SetDefault("index.backend", BackendMemory)
	v.SetDefault("index.records_file", "")
	v.SetDefault("index.top_k", 10)

	v.SetDefault("milvus.endpoint", "localhost:19530")
	v.SetDefault("milvus.collection", "reference_jobs")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "168h")

	v.SetDefault("market.backend", BackendMemory)
	v.SetDefault("market.file", "")
	v.SetDefault("market.min_sample_size", 5)

	v.SetDefault("params.file", "params.yaml")
	v.SetDefault("params.watch", false)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_per_min", 60)
	v.SetDefault("server.rate_limit_burst", 10)
	v.SetDefault("server.rate_limit_whitelist", "")
	v.SetDefault("server.batch_concurrency", 4)

	v.SetDefault("retry.attempts", 2)
	v.SetDefault("retry.initial_delay", "200ms")
}

// applyProviderKeys falls back to the provider's conventional API key variable.
func applyProviderKeys(cfg *Config) {
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = providerKey(cfg.LLM.Provider)
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = providerKey(cfg.Embedding.Provider)
	}
}

func providerKey(provider string) string {
	switch llm.Provider(strings.ToLower(strings.TrimSpace(provider))) {
	case llm.ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case llm.ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case llm.ProviderGemini:
		return os.Getenv("GEMINI_API_KEY")
	default:
		return ""
	}
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.LLM.Provider != "" {
		if _, err := llm.ParseProvider(c.LLM.Provider); err != nil {
			return fmt.Errorf("config error: llm.provider: %w", err)
		}
	}
	switch llm.ModelTier(c.LLM.Tier) {
	case llm.TierLite, llm.TierStandard, llm.TierAdvanced:
	default:
		return fmt.Errorf("config error: unknown llm.tier %q", c.LLM.Tier)
	}
	if _, err := llm.ParseProvider(c.Embedding.Provider); err != nil {
		return fmt.Errorf("config error: embedding.provider: %w", err)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("config error: 'embedding.dimension' must be positive")
	}

	switch c.Index.Backend {
	case BackendMemory:
		if err := fileExists("index.records_file", c.Index.RecordsFile); err != nil {
			return err
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config error: index backend %q requires database_url", c.Index.Backend)
		}
	case BackendMilvus:
		if c.Milvus.Endpoint == "" || c.Milvus.Collection == "" {
			return fmt.Errorf("config error: index backend %q requires milvus.endpoint and milvus.collection", c.Index.Backend)
		}
	default:
		return fmt.Errorf("config error: unknown index backend %q", c.Index.Backend)
	}
	if c.Index.TopK <= 0 {
		return fmt.Errorf("config error: 'index.top_k' must be positive")
	}

	switch c.Market.Backend {
	case BackendMemory:
		if err := fileExists("market.file", c.Market.File); err != nil {
			return err
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config error: market backend %q requires database_url", c.Market.Backend)
		}
	default:
		return fmt.Errorf("config error: unknown market backend %q", c.Market.Backend)
	}
	if c.Market.MinSampleSize < 0 {
		return fmt.Errorf("config error: 'market.min_sample_size' must be non-negative")
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config error: 'server.port' out of range: %d", c.Server.Port)
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("config error: 'retry.attempts' must be at least 1")
	}
	return nil
}

func fileExists(key, path string) error {
	if path == "" {
		return fmt.Errorf("config error: '%s' is required for the memory backend", key)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("config error: %s not found: %s", key, path)
	}
	return nil
}

// LLMModels returns the provider defaults with any configured per-tier overrides applied.
func (c *Config) LLMModels() (*llm.Config, error) {
	provider, err := llm.ParseProvider(c.LLM.Provider)
	if err != nil {
		return nil, err
	}
	out := llm.ConfigFor(provider)
	for tier, model := range c.LLM.Models {
		if model != "" {
			out = out.WithModel(llm.ModelTier(strings.ToLower(tier)), model)
		}
	}
	return out, nil
}

// ReasoningEnabled reports whether a reasoning provider is configured.
func (c *Config) ReasoningEnabled() bool {
	return strings.TrimSpace(c.LLM.Provider) != ""
}
