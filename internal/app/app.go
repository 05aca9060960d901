// Package app provides the top-level application lifecycle for the arbitrage
// bot. It wires together the audit log, venue connectors, strategy engine,
// risk manager, executors, and orchestrator, and runs them until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbot/internal/audit"
	"github.com/alanyoungcy/arbot/internal/config"
	"github.com/alanyoungcy/arbot/internal/crypto"
	"github.com/alanyoungcy/arbot/internal/domain"
	"github.com/alanyoungcy/arbot/internal/executor"
	"github.com/alanyoungcy/arbot/internal/feed"
	"github.com/alanyoungcy/arbot/internal/pipeline"
	"github.com/alanyoungcy/arbot/internal/retry"
	"github.com/alanyoungcy/arbot/internal/risk"
	"github.com/alanyoungcy/arbot/internal/server"
	"github.com/alanyoungcy/arbot/internal/server/handler"
	"github.com/alanyoungcy/arbot/internal/strategy"
	"github.com/alanyoungcy/arbot/internal/venue"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the
// pipeline goroutines, and blocks until the context is cancelled. On return
// it runs all registered cleanup functions.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Execution.Mode),
		slog.String("instrument", a.cfg.Strategy.Instrument),
		slog.String("log_level", a.cfg.LogLevel),
	)
	defer a.Close()

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	auditLog, err := audit.NewLogger(a.cfg.Pipeline.AuditPath, a.logger)
	if err != nil {
		return fmt.Errorf("app: open audit log: %w", err)
	}
	a.closers = append(a.closers, func() { _ = auditLog.Close() })

	mode, ok := domain.ParseExecutionMode(a.cfg.Execution.Mode)
	if !ok {
		return fmt.Errorf("app: unsupported execution mode %q", a.cfg.Execution.Mode)
	}

	g, ctx := errgroup.WithContext(ctx)

	sources, stream := a.buildQuoteSources()
	if stream != nil {
		g.Go(func() error { return stream.Run(ctx) })
		a.closers = append(a.closers, stream.Close)
	}

	feeRate := decimal.NewFromFloat(a.cfg.Strategy.FeeRate)
	slippage := decimal.NewFromFloat(a.cfg.Strategy.Slippage)

	engine := strategy.NewEngine(strategy.CostModel{
		FeeRate:   feeRate,
		Slippage:  slippage,
		MinSpread: decimal.NewFromFloat(a.cfg.Strategy.MinSpread),
	}, auditLog, a.logger)

	riskMgr := risk.NewManager(risk.Config{
		CapitalPctPerTrade:      decimal.NewFromFloat(a.cfg.Risk.CapitalPctPerTrade),
		MaxPositionAbs:          decimal.NewFromFloat(a.cfg.Risk.MaxPositionAbs),
		MaxExposurePct:          decimal.NewFromFloat(a.cfg.Risk.MaxExposurePct),
		MaxDailyLossPct:         decimal.NewFromFloat(a.cfg.Risk.MaxDailyLossPct),
		CircuitBreakerThreshold: a.cfg.Risk.CircuitBreakerThreshold,
		LowRiskPct:              decimal.NewFromFloat(a.cfg.Risk.LowRiskPct),
		MediumRiskPct:           decimal.NewFromFloat(a.cfg.Risk.MediumRiskPct),
	}, auditLog, a.logger)

	executors := []executor.Executor{
		executor.NewPaper(feeRate, slippage, auditLog, a.logger),
	}
	if placers := a.buildPlacers(); len(placers) > 0 {
		policy := retry.New(a.cfg.Execution.MaxRetries, a.cfg.Execution.BaseDelay.Duration, domain.IsTransient)
		policy.MaxDelay = a.cfg.Execution.MaxDelay.Duration
		executors = append(executors, executor.NewLive(placers, policy, auditLog, a.logger))
	} else if mode == domain.ModeLive {
		return errors.New("app: live mode requires venue credentials")
	}

	collector := feed.NewCollector(sources, a.cfg.Pipeline.QuoteTimeout.Duration, auditLog, a.logger)

	state := domain.NewRiskState(decimal.NewFromFloat(a.cfg.Risk.InitialBalance), time.Now())

	orch := pipeline.NewOrchestrator(pipeline.Config{
		Collector:  collector,
		Engine:     engine,
		Risk:       riskMgr,
		Executors:  executors,
		State:      state,
		Trades:     deps.TradeStore,
		Bus:        deps.Bus,
		Alerts:     deps.Notifier,
		Instrument: a.cfg.Strategy.Instrument,
		Interval:   a.cfg.Pipeline.Interval.Duration,
		Mode:       mode,
		Logger:     a.logger,
	})

	g.Go(func() error { return orch.Run(ctx) })

	if a.cfg.Server.Enabled {
		handlers := server.Handlers{
			Health:  handler.NewHealthHandler(),
			Control: handler.NewControlHandler(orch, a.logger),
		}
		if deps.TradeStore != nil {
			handlers.Trades = handler.NewTradeHandler(deps.TradeStore, a.logger)
		}
		srv := server.NewServer(server.Config{
			Port:   a.cfg.Server.Port,
			APIKey: a.cfg.Server.APIKey,
		}, handlers, a.logger)

		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if deps.BlobWriter != nil {
		archiver := pipeline.NewArchiver(auditLog, deps.BlobWriter, a.cfg.Pipeline.ArchivePrefix, a.logger)
		cronExpr := a.cfg.Pipeline.ArchiveCron
		g.Go(func() error { return archiver.RunCron(ctx, cronExpr) })
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// buildQuoteSources constructs one QuoteSource per enabled venue. When the
// Binance websocket stream is enabled the returned stream must be run by the
// caller; it is nil otherwise.
func (a *App) buildQuoteSources() ([]domain.QuoteSource, *feed.BinanceStream) {
	var (
		sources []domain.QuoteSource
		stream  *feed.BinanceStream
	)

	if a.cfg.Binance.Enabled {
		if a.cfg.Binance.UseStream {
			// Quotes older than two pipeline intervals are unusable.
			maxAge := 2 * a.cfg.Pipeline.Interval.Duration
			stream = feed.NewBinanceStream(a.cfg.Binance.WsURL, a.cfg.Binance.Symbol, maxAge, a.logger)
			sources = append(sources, stream)
		} else {
			sources = append(sources, venue.NewBinance(venue.BinanceConfig{
				BaseURL: a.cfg.Binance.BaseURL,
				Symbol:  a.cfg.Binance.Symbol,
				Timeout: a.cfg.Pipeline.QuoteTimeout.Duration,
			}))
		}
	}
	if a.cfg.Coinbase.Enabled {
		sources = append(sources, venue.NewCoinbase(venue.CoinbaseConfig{
			BaseURL:   a.cfg.Coinbase.BaseURL,
			ProductID: a.cfg.Coinbase.ProductID,
			Timeout:   a.cfg.Pipeline.QuoteTimeout.Duration,
		}))
	}
	return sources, stream
}

// buildPlacers constructs an authenticated OrderPlacer per enabled venue.
// Venues without credentials are skipped; live execution is only offered when
// every enabled venue can sign orders.
func (a *App) buildPlacers() []venue.OrderPlacer {
	var placers []venue.OrderPlacer

	if a.cfg.Binance.Enabled {
		if a.cfg.Binance.ApiKey == "" || a.cfg.Binance.ApiSecret == "" {
			return nil
		}
		placers = append(placers, venue.NewBinance(venue.BinanceConfig{
			BaseURL: a.cfg.Binance.BaseURL,
			Symbol:  a.cfg.Binance.Symbol,
			Auth: &crypto.HMACAuth{
				Key:    a.cfg.Binance.ApiKey,
				Secret: a.cfg.Binance.ApiSecret,
			},
		}))
	}
	if a.cfg.Coinbase.Enabled {
		if a.cfg.Coinbase.ApiKey == "" || a.cfg.Coinbase.ApiSecret == "" || a.cfg.Coinbase.ApiPassphrase == "" {
			return nil
		}
		placers = append(placers, venue.NewCoinbase(venue.CoinbaseConfig{
			BaseURL:   a.cfg.Coinbase.BaseURL,
			ProductID: a.cfg.Coinbase.ProductID,
			Auth: &crypto.HMACAuth{
				Key:        a.cfg.Coinbase.ApiKey,
				Secret:     a.cfg.Coinbase.ApiSecret,
				Passphrase: a.cfg.Coinbase.ApiPassphrase,
			},
		}))
	}
	return placers
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
