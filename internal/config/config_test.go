package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "uvp.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.HaikuModel)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.SonnetModel)
	assert.Equal(t, "claude-opus-4-6", cfg.Anthropic.OpusModel)
	assert.InDelta(t, 5, cfg.Anthropic.RatePerSec, 0.001)
	assert.Equal(t, 10, cfg.Anthropic.RateBurst)
	assert.Equal(t, 10, cfg.Content.MaxPages)
	assert.Equal(t, 30, cfg.Content.TimeoutSecs)
	assert.Equal(t, 45, cfg.Extraction.PhaseTimeoutSecs)
	assert.Equal(t, 24, cfg.Extraction.CacheTTLHours)
	assert.Equal(t, 12000, cfg.Extraction.MaxContentChars)
	assert.Equal(t, 5, cfg.Synthesis.TimeoutSecs)
	assert.Equal(t, 2048, cfg.Synthesis.MaxTokens)
	assert.InDelta(t, 0.7, cfg.Synthesis.Temperature, 0.001)
	assert.InDelta(t, 0.5, cfg.Synthesis.TentativeThreshold, 0.001)
	assert.InDelta(t, 85, cfg.Quality.GreenThreshold, 0.001)
	assert.InDelta(t, 70, cfg.Quality.YellowThreshold, 0.001)
	assert.Equal(t, 3, cfg.Enhancement.Workers)
	assert.Equal(t, 3, cfg.Enhancement.MaxAttempts)
	assert.Equal(t, 256, cfg.Enhancement.QueueDepth)
	assert.Equal(t, "industries.yaml", cfg.Campaign.IndustryDataPath)
	assert.Equal(t, 3, cfg.Resilience.RetryMaxAttempts)
	assert.Equal(t, 500, cfg.Resilience.RetryInitialBackoffMs)
	assert.InDelta(t, 2.0, cfg.Resilience.RetryMultiplier, 0.001)
	assert.InDelta(t, 0.25, cfg.Resilience.RetryJitterFraction, 0.001)
	assert.Equal(t, 3, cfg.Resilience.BreakerFailureThreshold)
	assert.Equal(t, 30, cfg.Resilience.BreakerResetTimeoutSecs)
}

func TestLoadFromYAML(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/uvp
log:
  level: debug
  format: console
server:
  port: 9090
synthesis:
  max_tokens: 4096
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/uvp", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 4096, cfg.Synthesis.MaxTokens)
	// Defaults still apply for unset values
	assert.Equal(t, 10, cfg.Content.MaxPages)
	assert.Equal(t, 3, cfg.Enhancement.Workers)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("UVP_STORE_DRIVER", "postgres")
	t.Setenv("UVP_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chTempDir(t)

	t.Setenv("UVP_SERVER_PORT", "3000")
	t.Setenv("UVP_ANTHROPIC_KEY", "sk-ant-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.Key)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validConfig returns a Config with everything Validate needs populated.
func validConfig() *Config {
	cfg := &Config{}
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "uvp.db"
	cfg.Quality.GreenThreshold = 85
	cfg.Quality.YellowThreshold = 70
	cfg.Enhancement.Workers = 3
	cfg.Synthesis.TentativeThreshold = 0.5
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateGenerate_AllPresent(t *testing.T) {
	assert.NoError(t, validConfig().Validate("generate"))
}

func TestValidateGenerate_MissingKey(t *testing.T) {
	cfg := validConfig()
	cfg.Anthropic.Key = ""

	err := cfg.Validate("generate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")
}

func TestValidatePostgresRequiresURL(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("generate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required for postgres")
}

func TestValidateUnknownDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Driver = "oracle"

	err := cfg.Validate("generate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), `unknown store.driver "oracle"`)
}

func TestValidateQualityThresholds(t *testing.T) {
	cfg := validConfig()

	cfg.Quality.YellowThreshold = 0
	err := cfg.Validate("generate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "quality thresholds")

	cfg.Quality.YellowThreshold = 90
	cfg.Quality.GreenThreshold = 85
	err = cfg.Validate("generate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "quality thresholds")
}

func TestValidateWorkerBounds(t *testing.T) {
	cfg := validConfig()

	cfg.Enhancement.Workers = 0
	err := cfg.Validate("generate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "enhancement.workers must be between 1 and 32")

	cfg.Enhancement.Workers = 33
	err = cfg.Validate("generate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "enhancement.workers must be between 1 and 32")

	cfg.Enhancement.Workers = 32
	assert.NoError(t, cfg.Validate("generate"))
}

func TestValidateTentativeThresholdBounds(t *testing.T) {
	cfg := validConfig()

	cfg.Synthesis.TentativeThreshold = -0.1
	err := cfg.Validate("generate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "synthesis.tentative_threshold")

	cfg.Synthesis.TentativeThreshold = 1.1
	err = cfg.Validate("generate")
	assert.Error(t, err)
}

func TestValidateServe_Port(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0

	// Port only matters in serve mode.
	assert.NoError(t, cfg.Validate("generate"))

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validConfig().Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
