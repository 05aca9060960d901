package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Strategy ──
	setStr(&cfg.Strategy.Instrument, "ARBOT_STRATEGY_INSTRUMENT")
	setFloat64(&cfg.Strategy.FeeRate, "ARBOT_STRATEGY_FEE_RATE")
	setFloat64(&cfg.Strategy.Slippage, "ARBOT_STRATEGY_SLIPPAGE")
	setFloat64(&cfg.Strategy.MinSpread, "ARBOT_STRATEGY_MIN_SPREAD")

	// ── Risk ──
	setFloat64(&cfg.Risk.InitialBalance, "ARBOT_RISK_INITIAL_BALANCE")
	setFloat64(&cfg.Risk.CapitalPctPerTrade, "ARBOT_RISK_CAPITAL_PCT_PER_TRADE")
	setFloat64(&cfg.Risk.MaxPositionAbs, "ARBOT_RISK_MAX_POSITION_ABS")
	setFloat64(&cfg.Risk.MaxExposurePct, "ARBOT_RISK_MAX_EXPOSURE_PCT")
	setFloat64(&cfg.Risk.MaxDailyLossPct, "ARBOT_RISK_MAX_DAILY_LOSS_PCT")
	setInt(&cfg.Risk.CircuitBreakerThreshold, "ARBOT_RISK_CIRCUIT_BREAKER_THRESHOLD")
	setFloat64(&cfg.Risk.LowRiskPct, "ARBOT_RISK_LOW_RISK_PCT")
	setFloat64(&cfg.Risk.MediumRiskPct, "ARBOT_RISK_MEDIUM_RISK_PCT")

	// ── Execution ──
	setStr(&cfg.Execution.Mode, "ARBOT_EXECUTION_MODE")
	setInt(&cfg.Execution.MaxRetries, "ARBOT_EXECUTION_MAX_RETRIES")
	setDuration(&cfg.Execution.BaseDelay, "ARBOT_EXECUTION_BASE_DELAY")
	setDuration(&cfg.Execution.MaxDelay, "ARBOT_EXECUTION_MAX_DELAY")

	// ── Pipeline ──
	setDuration(&cfg.Pipeline.Interval, "ARBOT_PIPELINE_INTERVAL")
	setDuration(&cfg.Pipeline.QuoteTimeout, "ARBOT_PIPELINE_QUOTE_TIMEOUT")
	setStr(&cfg.Pipeline.AuditPath, "ARBOT_PIPELINE_AUDIT_PATH")
	setStr(&cfg.Pipeline.ArchiveCron, "ARBOT_PIPELINE_ARCHIVE_CRON")
	setStr(&cfg.Pipeline.ArchivePrefix, "ARBOT_PIPELINE_ARCHIVE_PREFIX")

	// ── Binance ──
	setBool(&cfg.Binance.Enabled, "ARBOT_BINANCE_ENABLED")
	setStr(&cfg.Binance.BaseURL, "ARBOT_BINANCE_BASE_URL")
	setStr(&cfg.Binance.WsURL, "ARBOT_BINANCE_WS_URL")
	setBool(&cfg.Binance.UseStream, "ARBOT_BINANCE_USE_STREAM")
	setStr(&cfg.Binance.Symbol, "ARBOT_BINANCE_SYMBOL")
	setStr(&cfg.Binance.ApiKey, "ARBOT_BINANCE_API_KEY")
	setStr(&cfg.Binance.ApiSecret, "ARBOT_BINANCE_API_SECRET")

	// ── Coinbase ──
	setBool(&cfg.Coinbase.Enabled, "ARBOT_COINBASE_ENABLED")
	setStr(&cfg.Coinbase.BaseURL, "ARBOT_COINBASE_BASE_URL")
	setStr(&cfg.Coinbase.ProductID, "ARBOT_COINBASE_PRODUCT_ID")
	setStr(&cfg.Coinbase.ApiKey, "ARBOT_COINBASE_API_KEY")
	setStr(&cfg.Coinbase.ApiSecret, "ARBOT_COINBASE_API_SECRET")
	setStr(&cfg.Coinbase.ApiPassphrase, "ARBOT_COINBASE_API_PASSPHRASE")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "ARBOT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "ARBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ARBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ARBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "ARBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ARBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "ARBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ARBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARBOT_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ARBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ARBOT_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "ARBOT_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ARBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "ARBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
