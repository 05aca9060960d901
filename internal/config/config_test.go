package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbot/internal/domain"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "paper", cfg.Execution.Mode)
	assert.Equal(t, 0.001, cfg.Strategy.FeeRate)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.Interval.Duration)
}

func TestDefaultModeParsesAtStartup(t *testing.T) {
	// Every mode string Validate accepts must also parse, or the app fails
	// at startup on a validated config.
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	mode, ok := domain.ParseExecutionMode(cfg.Execution.Mode)
	require.True(t, ok)
	assert.Equal(t, domain.ModePaper, mode)

	cfg.Execution.Mode = "live"
	mode, ok = domain.ParseExecutionMode(cfg.Execution.Mode)
	require.True(t, ok)
	assert.Equal(t, domain.ModeLive, mode)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Execution.Mode = "dry-run"
	cfg.Strategy.FeeRate = -0.1
	cfg.Risk.CapitalPctPerTrade = 1.5
	cfg.Risk.CircuitBreakerThreshold = 0

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `unknown mode "dry-run"`)
	assert.Contains(t, msg, "fee_rate must be >= 0")
	assert.Contains(t, msg, "capital_pct_per_trade must be in (0, 1]")
	assert.Contains(t, msg, "circuit_breaker_threshold must be >= 1")
}

func TestValidateRequiresTwoVenues(t *testing.T) {
	cfg := Defaults()
	cfg.Coinbase.Enabled = false

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least two venues must be enabled")
}

func TestValidateLiveModeRequiresCredentials(t *testing.T) {
	cfg := Defaults()
	cfg.Execution.Mode = "live"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "binance: api_key and api_secret are required in live mode")
	assert.Contains(t, err.Error(), "coinbase: api_key, api_secret, and api_passphrase are required in live mode")

	cfg.Binance.ApiKey = "k"
	cfg.Binance.ApiSecret = "s"
	cfg.Coinbase.ApiKey = "k"
	cfg.Coinbase.ApiSecret = "s"
	cfg.Coinbase.ApiPassphrase = "p"
	require.NoError(t, cfg.Validate())
}

func TestValidateGatedBackends(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Enabled = true
	cfg.Postgres.Host = ""
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: host must not be empty")
	assert.Contains(t, err.Error(), "redis: addr must not be empty")

	// Disabled backends are not validated at all.
	cfg.Postgres.Enabled = false
	cfg.Redis.Enabled = false
	require.NoError(t, cfg.Validate())
}

func TestLoadFromTOML(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"

[strategy]
instrument = "ETH-USD"
min_spread = 0.004

[execution]
mode = "paper"
base_delay = "250ms"

[pipeline]
interval = "10s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "ETH-USD", cfg.Strategy.Instrument)
	assert.Equal(t, 0.004, cfg.Strategy.MinSpread)
	assert.Equal(t, 250*time.Millisecond, cfg.Execution.BaseDelay.Duration)
	assert.Equal(t, 10*time.Second, cfg.Pipeline.Interval.Duration)

	// Untouched fields keep their defaults.
	assert.Equal(t, 0.001, cfg.Strategy.FeeRate)
	assert.Equal(t, "paper", cfg.Execution.Mode)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
[strategy]
instrument = "BTC-USD"
`)

	t.Setenv("ARBOT_STRATEGY_INSTRUMENT", "SOL-USD")
	t.Setenv("ARBOT_EXECUTION_MODE", "live")
	t.Setenv("ARBOT_RISK_INITIAL_BALANCE", "25000")
	t.Setenv("ARBOT_PIPELINE_INTERVAL", "30s")
	t.Setenv("ARBOT_BINANCE_ENABLED", "false")
	t.Setenv("ARBOT_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "SOL-USD", cfg.Strategy.Instrument)
	assert.Equal(t, "live", cfg.Execution.Mode)
	assert.Equal(t, 25000.0, cfg.Risk.InitialBalance)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.Interval.Duration)
	assert.False(t, cfg.Binance.Enabled)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, `
[pipeline]
interval = "soon"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Binance.ApiSecret = "binance-secret"
	cfg.Coinbase.ApiPassphrase = "coinbase-pass"
	cfg.Postgres.Password = "pg-pass"
	cfg.Server.APIKey = "server-key"
	cfg.Notify.TelegramToken = "tg-token"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Binance.ApiSecret)
	assert.Equal(t, "***", red.Coinbase.ApiPassphrase)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Server.APIKey)
	assert.Equal(t, "***", red.Notify.TelegramToken)

	// The original is untouched and non-secrets survive.
	assert.Equal(t, "binance-secret", cfg.Binance.ApiSecret)
	assert.Equal(t, cfg.Strategy.Instrument, red.Strategy.Instrument)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(strings.TrimSpace(body)+"\n"), 0o644))
	return path
}
