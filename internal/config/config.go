// Package config defines the top-level configuration for the arbitrage bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBOT_* environment variables.
type Config struct {
	Strategy  StrategyConfig  `toml:"strategy"`
	Risk      RiskConfig      `toml:"risk"`
	Execution ExecutionConfig `toml:"execution"`
	Pipeline  PipelineConfig  `toml:"pipeline"`
	Binance   BinanceConfig   `toml:"binance"`
	Coinbase  CoinbaseConfig  `toml:"coinbase"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	LogLevel  string          `toml:"log_level"`
}

// StrategyConfig holds spread-detection parameters. Rates are fractional
// (0.001 = 0.1%).
type StrategyConfig struct {
	Instrument string  `toml:"instrument"`
	FeeRate    float64 `toml:"fee_rate"`
	Slippage   float64 `toml:"slippage"`
	MinSpread  float64 `toml:"min_spread"`
}

// RiskConfig holds position sizing and halt thresholds. Percentages are
// fractional (0.05 = 5%).
type RiskConfig struct {
	InitialBalance          float64 `toml:"initial_balance"`
	CapitalPctPerTrade      float64 `toml:"capital_pct_per_trade"`
	MaxPositionAbs          float64 `toml:"max_position_abs"`
	MaxExposurePct          float64 `toml:"max_exposure_pct"`
	MaxDailyLossPct         float64 `toml:"max_daily_loss_pct"`
	CircuitBreakerThreshold int     `toml:"circuit_breaker_threshold"`
	LowRiskPct              float64 `toml:"low_risk_pct"`
	MediumRiskPct           float64 `toml:"medium_risk_pct"`
}

// ExecutionConfig holds the execution mode and order retry policy.
type ExecutionConfig struct {
	Mode       string   `toml:"mode"`
	MaxRetries int      `toml:"max_retries"`
	BaseDelay  duration `toml:"base_delay"`
	MaxDelay   duration `toml:"max_delay"`
}

// PipelineConfig holds the cycle cadence and audit log parameters.
type PipelineConfig struct {
	Interval      duration `toml:"interval"`
	QuoteTimeout  duration `toml:"quote_timeout"`
	AuditPath     string   `toml:"audit_path"`
	ArchiveCron   string   `toml:"archive_cron"`
	ArchivePrefix string   `toml:"archive_prefix"`
}

// BinanceConfig holds Binance endpoints and credentials. Credentials are only
// required in live mode.
type BinanceConfig struct {
	Enabled   bool   `toml:"enabled"`
	BaseURL   string `toml:"base_url"`
	WsURL     string `toml:"ws_url"`
	UseStream bool   `toml:"use_stream"`
	Symbol    string `toml:"symbol"`
	ApiKey    string `toml:"api_key"`
	ApiSecret string `toml:"api_secret"`
}

// CoinbaseConfig holds Coinbase endpoints and credentials.
type CoinbaseConfig struct {
	Enabled       bool   `toml:"enabled"`
	BaseURL       string `toml:"base_url"`
	ProductID     string `toml:"product_id"`
	ApiKey        string `toml:"api_key"`
	ApiSecret     string `toml:"api_secret"`
	ApiPassphrase string `toml:"api_passphrase"`
}

// PostgresConfig holds PostgreSQL connection parameters for the trade store.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for the execution bus.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for audit archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds the operator HTTP API parameters.
type ServerConfig struct {
	Enabled bool   `toml:"enabled"`
	Port    int    `toml:"port"`
	APIKey  string `toml:"api_key"`
}

// NotifyConfig holds escalation channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so TOML files can use strings like "5s".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Strategy: StrategyConfig{
			Instrument: "BTC-USD",
			FeeRate:    0.001,
			Slippage:   0.0005,
			MinSpread:  0.002,
		},
		Risk: RiskConfig{
			InitialBalance:          10_000,
			CapitalPctPerTrade:      0.05,
			MaxPositionAbs:          1_000,
			MaxExposurePct:          0.25,
			MaxDailyLossPct:         0.03,
			CircuitBreakerThreshold: 3,
			LowRiskPct:              0.01,
			MediumRiskPct:           0.03,
		},
		Execution: ExecutionConfig{
			Mode:       "paper",
			MaxRetries: 3,
			BaseDelay:  duration{500 * time.Millisecond},
			MaxDelay:   duration{10 * time.Second},
		},
		Pipeline: PipelineConfig{
			Interval:      duration{5 * time.Second},
			QuoteTimeout:  duration{2 * time.Second},
			AuditPath:     "audit.log",
			ArchiveCron:   "0 0 * * *",
			ArchivePrefix: "audit",
		},
		Binance: BinanceConfig{
			Enabled: true,
			BaseURL: "https://api.binance.com",
			WsURL:   "wss://stream.binance.com:9443/ws",
			Symbol:  "BTCUSDT",
		},
		Coinbase: CoinbaseConfig{
			Enabled:   true,
			BaseURL:   "https://api.exchange.coinbase.com",
			ProductID: "BTC-USD",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "arbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "arbot-data",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8000,
		},
		Notify: NotifyConfig{
			Events: []string{"unhedged_leg", "circuit_breaker", "daily_loss_halt"},
		},
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Execution.Mode.
var validModes = map[string]bool{
	"paper": true,
	"live":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Execution.Mode)] {
		errs = append(errs, fmt.Sprintf("execution: unknown mode %q (valid: paper, live)", c.Execution.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Strategy
	if c.Strategy.Instrument == "" {
		errs = append(errs, "strategy: instrument must not be empty")
	}
	if c.Strategy.FeeRate < 0 {
		errs = append(errs, "strategy: fee_rate must be >= 0")
	}
	if c.Strategy.Slippage < 0 {
		errs = append(errs, "strategy: slippage must be >= 0")
	}
	if c.Strategy.MinSpread < 0 {
		errs = append(errs, "strategy: min_spread must be >= 0")
	}

	// Risk
	if c.Risk.InitialBalance <= 0 {
		errs = append(errs, "risk: initial_balance must be > 0")
	}
	if c.Risk.CapitalPctPerTrade <= 0 || c.Risk.CapitalPctPerTrade > 1 {
		errs = append(errs, "risk: capital_pct_per_trade must be in (0, 1]")
	}
	if c.Risk.MaxPositionAbs <= 0 {
		errs = append(errs, "risk: max_position_abs must be > 0")
	}
	if c.Risk.MaxExposurePct <= 0 || c.Risk.MaxExposurePct > 1 {
		errs = append(errs, "risk: max_exposure_pct must be in (0, 1]")
	}
	if c.Risk.MaxDailyLossPct <= 0 || c.Risk.MaxDailyLossPct > 1 {
		errs = append(errs, "risk: max_daily_loss_pct must be in (0, 1]")
	}
	if c.Risk.CircuitBreakerThreshold < 1 {
		errs = append(errs, "risk: circuit_breaker_threshold must be >= 1")
	}
	if c.Risk.LowRiskPct <= 0 || c.Risk.MediumRiskPct <= c.Risk.LowRiskPct {
		errs = append(errs, "risk: must satisfy 0 < low_risk_pct < medium_risk_pct")
	}

	// Execution
	if c.Execution.MaxRetries < 1 {
		errs = append(errs, "execution: max_retries must be >= 1")
	}
	if c.Execution.BaseDelay.Duration <= 0 {
		errs = append(errs, "execution: base_delay must be > 0")
	}
	if c.Execution.MaxDelay.Duration < c.Execution.BaseDelay.Duration {
		errs = append(errs, "execution: max_delay must be >= base_delay")
	}

	// Pipeline
	if c.Pipeline.Interval.Duration <= 0 {
		errs = append(errs, "pipeline: interval must be > 0")
	}
	if c.Pipeline.QuoteTimeout.Duration <= 0 {
		errs = append(errs, "pipeline: quote_timeout must be > 0")
	}
	if c.Pipeline.AuditPath == "" {
		errs = append(errs, "pipeline: audit_path must not be empty")
	}

	// Venues. The engine needs at least two quote sources to find a spread.
	venues := 0
	if c.Binance.Enabled {
		venues++
		if c.Binance.BaseURL == "" {
			errs = append(errs, "binance: base_url must not be empty")
		}
		if c.Binance.Symbol == "" {
			errs = append(errs, "binance: symbol must not be empty")
		}
		if c.Binance.UseStream && c.Binance.WsURL == "" {
			errs = append(errs, "binance: ws_url is required when use_stream is set")
		}
	}
	if c.Coinbase.Enabled {
		venues++
		if c.Coinbase.BaseURL == "" {
			errs = append(errs, "coinbase: base_url must not be empty")
		}
		if c.Coinbase.ProductID == "" {
			errs = append(errs, "coinbase: product_id must not be empty")
		}
	}
	if venues < 2 {
		errs = append(errs, "at least two venues must be enabled")
	}

	// Live mode needs signing credentials for every enabled venue.
	if strings.ToLower(c.Execution.Mode) == "live" {
		if c.Binance.Enabled && (c.Binance.ApiKey == "" || c.Binance.ApiSecret == "") {
			errs = append(errs, "binance: api_key and api_secret are required in live mode")
		}
		if c.Coinbase.Enabled && (c.Coinbase.ApiKey == "" || c.Coinbase.ApiSecret == "" || c.Coinbase.ApiPassphrase == "") {
			errs = append(errs, "coinbase: api_key, api_secret, and api_passphrase are required in live mode")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
