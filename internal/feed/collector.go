// Package feed collects one cycle's quote set from the configured venue
// sources. Venue fetches run concurrently under a per-venue timeout to
// minimize staleness skew; a venue that fails or times out is excluded from
// the cycle rather than blocking it.
package feed

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbot/internal/domain"
)

// Collector fans a quote request out to all sources each cycle.
type Collector struct {
	sources []domain.QuoteSource
	timeout time.Duration
	audit   domain.AuditSink
	logger  *slog.Logger
}

// NewCollector creates a collector over the given sources with a per-venue
// fetch timeout.
func NewCollector(sources []domain.QuoteSource, timeout time.Duration, audit domain.AuditSink, logger *slog.Logger) *Collector {
	return &Collector{
		sources: sources,
		timeout: timeout,
		audit:   audit,
		logger:  logger.With(slog.String("component", "quote_collector")),
	}
}

// Collect fetches quotes from every source concurrently and returns the ones
// that arrived in time, sorted by venue for determinism. It never returns an
// error: connector failures shrink the quote set, and the strategy engine's
// insufficient-venues path handles the rest.
func (c *Collector) Collect(ctx context.Context, instrument string) []domain.PriceQuote {
	var (
		mu     sync.Mutex
		quotes []domain.PriceQuote
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range c.sources {
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(gctx, c.timeout)
			defer cancel()

			q, err := src.FetchQuote(fetchCtx, instrument)
			if err != nil {
				c.logger.Warn("venue quote fetch failed, excluding from cycle",
					slog.String("venue", src.Venue()),
					slog.String("error", err.Error()),
				)
				return nil
			}
			mu.Lock()
			quotes = append(quotes, q)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(quotes, func(i, j int) bool { return quotes[i].Venue < quotes[j].Venue })

	c.logPriceCheck(ctx, instrument, quotes)
	return quotes
}

func (c *Collector) logPriceCheck(ctx context.Context, instrument string, quotes []domain.PriceQuote) {
	venues := make([]any, 0, len(quotes))
	for _, q := range quotes {
		venues = append(venues, map[string]any{
			"venue": q.Venue,
			"bid":   q.Bid.String(),
			"ask":   q.Ask.String(),
			"mid":   q.Mid.String(),
		})
	}
	data := map[string]any{
		"instrument": instrument,
		"requested":  float64(len(c.sources)),
		"received":   float64(len(quotes)),
		"quotes":     venues,
	}
	if err := c.audit.Log(ctx, domain.AuditPriceCheck, data); err != nil {
		c.logger.Warn("audit write failed", slog.String("error", err.Error()))
	}
}
