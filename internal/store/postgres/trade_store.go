package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbot/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore sharing the client's connection pool.
func NewTradeStore(c *Client) *TradeStore {
	return &TradeStore{pool: c.pool}
}

const tradeSelectCols = `trade_id, mode, instrument, buy_venue, sell_venue,
	quantity, buy_fill_price, sell_fill_price, fees, net_pnl, latency_ms,
	status, reason, unhedged_notional, ts`

// SaveResult inserts a terminal execution result. Results are immutable, so
// a colliding trade_id is never overwritten; the collision is reported to
// the caller instead of silently dropping the new result.
func (s *TradeStore) SaveResult(ctx context.Context, res domain.ExecutionResult) error {
	const query = `
		INSERT INTO trades (` + tradeSelectCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (trade_id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query,
		res.TradeID, string(res.Mode), res.Instrument, res.BuyVenue, res.SellVenue,
		res.Quantity.String(), res.BuyFillPrice.String(), res.SellFillPrice.String(),
		res.Fees.String(), res.NetPnL.String(), res.LatencyMs,
		string(res.Status), res.Reason, res.UnhedgedNotional.String(), res.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: save result %s: %w", res.TradeID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: save result %s: %w", res.TradeID, domain.ErrDuplicateTrade)
	}
	return nil
}

// GetByTradeID fetches one result by its trade ID.
func (s *TradeStore) GetByTradeID(ctx context.Context, tradeID string) (domain.ExecutionResult, error) {
	const query = `SELECT ` + tradeSelectCols + ` FROM trades WHERE trade_id = $1`

	res, err := scanResult(s.pool.QueryRow(ctx, query, tradeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ExecutionResult{}, fmt.Errorf("postgres: trade %s: %w", tradeID, domain.ErrNotFound)
		}
		return domain.ExecutionResult{}, fmt.Errorf("postgres: get trade %s: %w", tradeID, err)
	}
	return res, nil
}

// ListRecent returns results newest-first with pagination and optional time
// filtering.
func (s *TradeStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.ExecutionResult, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(opts.Status))
		argIdx++
	}
	if opts.Since != nil {
		query += fmt.Sprintf(" AND ts >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND ts <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY ts DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()

	var results []domain.ExecutionResult
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// CountByStatus counts stored results with the given status.
func (s *TradeStore) CountByStatus(ctx context.Context, status domain.ExecutionStatus) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM trades WHERE status = $1`, string(status),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count %s trades: %w", status, err)
	}
	return n, nil
}

func scanResult(row pgx.Row) (domain.ExecutionResult, error) {
	var (
		res          domain.ExecutionResult
		mode, status string

		qty, buyFill, sellFill, fees, netPnL, unhedged string
	)
	if err := row.Scan(
		&res.TradeID, &mode, &res.Instrument, &res.BuyVenue, &res.SellVenue,
		&qty, &buyFill, &sellFill, &fees, &netPnL, &res.LatencyMs,
		&status, &res.Reason, &unhedged, &res.Timestamp,
	); err != nil {
		return domain.ExecutionResult{}, err
	}

	res.Mode = domain.ExecutionMode(mode)
	res.Status = domain.ExecutionStatus(status)

	var err error
	if res.Quantity, err = decimal.NewFromString(qty); err != nil {
		return domain.ExecutionResult{}, err
	}
	if res.BuyFillPrice, err = decimal.NewFromString(buyFill); err != nil {
		return domain.ExecutionResult{}, err
	}
	if res.SellFillPrice, err = decimal.NewFromString(sellFill); err != nil {
		return domain.ExecutionResult{}, err
	}
	if res.Fees, err = decimal.NewFromString(fees); err != nil {
		return domain.ExecutionResult{}, err
	}
	if res.NetPnL, err = decimal.NewFromString(netPnL); err != nil {
		return domain.ExecutionResult{}, err
	}
	if res.UnhedgedNotional, err = decimal.NewFromString(unhedged); err != nil {
		return domain.ExecutionResult{}, err
	}
	return res, nil
}
