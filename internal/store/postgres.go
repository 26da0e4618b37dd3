package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/aporte/returns-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the durable tier.
// Monetary columns are NUMERIC for exact decimal precision; index levels
// are DOUBLE PRECISION (dimensionless ratios).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) PutPriceSeries(ctx context.Context, series *model.PriceSeries, fetchedAt time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("put price series %s: %w", series.Ticker, err)
	}
	defer tx.Rollback(ctx)

	// Wholesale replace: the series is an immutable value object.
	if _, err := tx.Exec(ctx, `DELETE FROM price_bars WHERE ticker = $1`, series.Ticker); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO price_series (ticker, fetched_at) VALUES ($1, $2)
		 ON CONFLICT (ticker) DO UPDATE SET fetched_at = EXCLUDED.fetched_at`,
		series.Ticker, fetchedAt); err != nil {
		return err
	}

	rows := make([][]any, len(series.Bars))
	for i, b := range series.Bars {
		rows[i] = []any{series.Ticker, b.Date, b.Close.String(), b.Dividend.String(), b.SplitRatio.String()}
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"price_bars"},
		[]string{"ticker", "date", "close", "dividend", "split_ratio"},
		pgx.CopyFromRows(rows)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetPriceSeries(ctx context.Context, ticker string) (*model.PriceSeries, time.Time, error) {
	var fetchedAt time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT fetched_at FROM price_series WHERE ticker = $1`, ticker).Scan(&fetchedAt)
	if err != nil {
		return nil, time.Time{}, ErrNotFound
	}

	rows, err := s.pool.Query(ctx,
		`SELECT date, close::TEXT, dividend::TEXT, split_ratio::TEXT
		 FROM price_bars WHERE ticker = $1 ORDER BY date`, ticker)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("get price series %s: %w", ticker, err)
	}
	defer rows.Close()

	var bars []model.PriceBar
	for rows.Next() {
		var bar model.PriceBar
		var closeS, divS, ratioS string
		if err := rows.Scan(&bar.Date, &closeS, &divS, &ratioS); err != nil {
			return nil, time.Time{}, err
		}
		bar.Date = model.DayOf(bar.Date)
		bar.Close, _ = decimal.NewFromString(closeS)
		bar.Dividend, _ = decimal.NewFromString(divS)
		bar.SplitRatio, _ = decimal.NewFromString(ratioS)
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, err
	}
	if len(bars) == 0 {
		return nil, time.Time{}, ErrNotFound
	}

	return &model.PriceSeries{Ticker: ticker, Bars: bars}, fetchedAt, nil
}

func (s *PostgresStore) PutRateIndex(ctx context.Context, idx *model.RateIndex, start, end time.Time, fetchedAt time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("put rate index %s: %w", idx.Code, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM rate_points WHERE code = $1 AND range_start = $2 AND range_end = $3`,
		idx.Code, start, end); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO rate_indices (code, range_start, range_end, fetched_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (code, range_start, range_end) DO UPDATE SET fetched_at = EXCLUDED.fetched_at`,
		idx.Code, start, end, fetchedAt); err != nil {
		return err
	}

	rows := make([][]any, len(idx.Points))
	for i, p := range idx.Points {
		rows[i] = []any{idx.Code, start, end, p.Date, p.Level}
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"rate_points"},
		[]string{"code", "range_start", "range_end", "date", "level"},
		pgx.CopyFromRows(rows)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetRateIndex(ctx context.Context, code string, start, end time.Time) (*model.RateIndex, time.Time, error) {
	var fetchedAt time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT fetched_at FROM rate_indices
		 WHERE code = $1 AND range_start = $2 AND range_end = $3`,
		code, start, end).Scan(&fetchedAt)
	if err != nil {
		return nil, time.Time{}, ErrNotFound
	}

	rows, err := s.pool.Query(ctx,
		`SELECT date, level FROM rate_points
		 WHERE code = $1 AND range_start = $2 AND range_end = $3 ORDER BY date`,
		code, start, end)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("get rate index %s: %w", code, err)
	}
	defer rows.Close()

	idx := &model.RateIndex{Code: code}
	for rows.Next() {
		var p model.RatePoint
		if err := rows.Scan(&p.Date, &p.Level); err != nil {
			return nil, time.Time{}, err
		}
		p.Date = model.DayOf(p.Date)
		idx.Points = append(idx.Points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, err
	}

	// An empty stored index is legitimate: it records that the upstream
	// had nothing for this range, so we do not re-ask every request.
	return idx, fetchedAt, nil
}
