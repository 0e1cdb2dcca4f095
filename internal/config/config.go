package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Content     ContentConfig     `yaml:"content" mapstructure:"content"`
	Extraction  ExtractionConfig  `yaml:"extraction" mapstructure:"extraction"`
	Synthesis   SynthesisConfig   `yaml:"synthesis" mapstructure:"synthesis"`
	Quality     QualityConfig     `yaml:"quality" mapstructure:"quality"`
	Enhancement EnhancementConfig `yaml:"enhancement" mapstructure:"enhancement"`
	Campaign    CampaignConfig    `yaml:"campaign" mapstructure:"campaign"`
	Resilience  ResilienceConfig  `yaml:"resilience" mapstructure:"resilience"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings. Each cost tier maps to a
// concrete model ID; the router never calls a model the config doesn't name.
type AnthropicConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	HaikuModel  string  `yaml:"haiku_model" mapstructure:"haiku_model"`
	SonnetModel string  `yaml:"sonnet_model" mapstructure:"sonnet_model"`
	OpusModel   string  `yaml:"opus_model" mapstructure:"opus_model"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	RateBurst   int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// ContentConfig configures website content fetching.
type ContentConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxPages    int    `yaml:"max_pages" mapstructure:"max_pages"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// ExtractionConfig configures the extraction orchestrator.
type ExtractionConfig struct {
	PhaseTimeoutSecs int `yaml:"phase_timeout_secs" mapstructure:"phase_timeout_secs"`
	CacheTTLHours    int `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	MaxContentChars  int `yaml:"max_content_chars" mapstructure:"max_content_chars"`
}

// SynthesisConfig configures the synthesis service.
type SynthesisConfig struct {
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	CacheTTLHours int     `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	MaxTokens     int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature   float64 `yaml:"temperature" mapstructure:"temperature"`
	// TentativeThreshold marks extractor payloads below this confidence as
	// tentative in the synthesis prompt.
	TentativeThreshold float64 `yaml:"tentative_threshold" mapstructure:"tentative_threshold"`
}

// QualityConfig configures scoring thresholds.
type QualityConfig struct {
	GreenThreshold  float64 `yaml:"green_threshold" mapstructure:"green_threshold"`
	YellowThreshold float64 `yaml:"yellow_threshold" mapstructure:"yellow_threshold"`
}

// EnhancementConfig configures the background enhancement workers.
type EnhancementConfig struct {
	Workers          int `yaml:"workers" mapstructure:"workers"`
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	TimeoutSecs      int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	QueueDepth       int `yaml:"queue_depth" mapstructure:"queue_depth"`
}

// CampaignConfig configures campaign expansion.
type CampaignConfig struct {
	IndustryDataPath string `yaml:"industry_data_path" mapstructure:"industry_data_path"`
	PieceTimeoutSecs int    `yaml:"piece_timeout_secs" mapstructure:"piece_timeout_secs"`
	MaxTokens        int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ResilienceConfig configures retry and circuit breaker behavior for model calls.
type ResilienceConfig struct {
	RetryMaxAttempts        int     `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	RetryInitialBackoffMs   int     `yaml:"retry_initial_backoff_ms" mapstructure:"retry_initial_backoff_ms"`
	RetryMaxBackoffMs       int     `yaml:"retry_max_backoff_ms" mapstructure:"retry_max_backoff_ms"`
	RetryMultiplier         float64 `yaml:"retry_multiplier" mapstructure:"retry_multiplier"`
	RetryJitterFraction     float64 `yaml:"retry_jitter_fraction" mapstructure:"retry_jitter_fraction"`
	BreakerFailureThreshold int     `yaml:"breaker_failure_threshold" mapstructure:"breaker_failure_threshold"`
	BreakerResetTimeoutSecs int     `yaml:"breaker_reset_timeout_secs" mapstructure:"breaker_reset_timeout_secs"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("UVP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "uvp.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	// Empty default so UVP_ANTHROPIC_KEY binds without a config file.
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.opus_model", "claude-opus-4-6")
	v.SetDefault("anthropic.rate_per_sec", 5)
	v.SetDefault("anthropic.rate_burst", 10)
	v.SetDefault("content.timeout_secs", 30)
	v.SetDefault("content.max_pages", 10)
	v.SetDefault("content.user_agent", "uvp-engine/1.0")
	v.SetDefault("extraction.phase_timeout_secs", 45)
	v.SetDefault("extraction.cache_ttl_hours", 24)
	v.SetDefault("extraction.max_content_chars", 12000)
	v.SetDefault("synthesis.timeout_secs", 5)
	v.SetDefault("synthesis.cache_ttl_hours", 48)
	v.SetDefault("synthesis.max_tokens", 2048)
	v.SetDefault("synthesis.temperature", 0.7)
	v.SetDefault("synthesis.tentative_threshold", 0.5)
	v.SetDefault("quality.green_threshold", 85)
	v.SetDefault("quality.yellow_threshold", 70)
	v.SetDefault("enhancement.workers", 3)
	v.SetDefault("enhancement.max_attempts", 3)
	v.SetDefault("enhancement.initial_backoff_ms", 500)
	v.SetDefault("enhancement.timeout_secs", 30)
	v.SetDefault("enhancement.queue_depth", 256)
	v.SetDefault("campaign.industry_data_path", "industries.yaml")
	v.SetDefault("campaign.piece_timeout_secs", 30)
	v.SetDefault("campaign.max_tokens", 1024)
	v.SetDefault("resilience.retry_max_attempts", 3)
	v.SetDefault("resilience.retry_initial_backoff_ms", 500)
	v.SetDefault("resilience.retry_max_backoff_ms", 30000)
	v.SetDefault("resilience.retry_multiplier", 2.0)
	v.SetDefault("resilience.retry_jitter_fraction", 0.25)
	v.SetDefault("resilience.breaker_failure_threshold", 3)
	v.SetDefault("resilience.breaker_reset_timeout_secs", 30)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that configuration required for the given mode is present.
// Mode "generate" covers the pipeline commands; "serve" additionally checks
// the HTTP listener settings.
func (c *Config) Validate(mode string) error {
	switch mode {
	case "generate", "serve":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	var problems []string

	if c.Anthropic.Key == "" {
		problems = append(problems, "anthropic.key is required")
	}
	switch c.Store.Driver {
	case "sqlite", "postgres", "":
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for postgres")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown store.driver %q", c.Store.Driver))
	}
	if c.Quality.YellowThreshold <= 0 || c.Quality.GreenThreshold <= c.Quality.YellowThreshold {
		problems = append(problems, "quality thresholds must satisfy 0 < yellow_threshold < green_threshold")
	}
	if c.Enhancement.Workers < 1 || c.Enhancement.Workers > 32 {
		problems = append(problems, "enhancement.workers must be between 1 and 32")
	}
	if c.Synthesis.TentativeThreshold < 0 || c.Synthesis.TentativeThreshold > 1 {
		problems = append(problems, "synthesis.tentative_threshold must be between 0 and 1")
	}
	if mode == "serve" && c.Server.Port <= 0 {
		problems = append(problems, "server.port must be > 0")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
