// Package postgres implements the warehouse on a PostgreSQL pool.
package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Almaroo/hs-codes-analysis/internal/config"
	"github.com/Almaroo/hs-codes-analysis/internal/storage"
)

const (
	createSchemaSQL = `
	CREATE TABLE IF NOT EXISTS runs (
		id UUID PRIMARY KEY,
		source_file TEXT NOT NULL,
		format TEXT NOT NULL,
		aggregate_code TEXT NOT NULL,
		record_count INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE IF NOT EXISTS trade_rows (
		run_id UUID NOT NULL REFERENCES runs(id),
		partner_code TEXT NOT NULL,
		partner_name TEXT NOT NULL,
		product_code TEXT NOT NULL,
		product_name TEXT NOT NULL,
		time_period INTEGER NOT NULL,
		value NUMERIC NOT NULL,
		PRIMARY KEY (run_id, partner_code, product_code, time_period)
	);
	CREATE TABLE IF NOT EXISTS breakpoints (
		run_id UUID NOT NULL REFERENCES runs(id),
		metric TEXT NOT NULL,
		partner_code TEXT NOT NULL,
		cutoff_year INTEGER NOT NULL,
		product_code TEXT NOT NULL,
		product_name TEXT NOT NULL,
		slope_before DOUBLE PRECISION,
		slope_after DOUBLE PRECISION,
		slope_change DOUBLE PRECISION,
		level_before DOUBLE PRECISION,
		level_after DOUBLE PRECISION,
		level_change DOUBLE PRECISION,
		direction TEXT NOT NULL,
		is_meaningful BOOLEAN NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (run_id, metric, cutoff_year, product_code)
	);`

	insertRunSQL = `INSERT INTO runs (
		id, source_file, format, aggregate_code, record_count
	) VALUES ($1, $2, $3, $4, $5);`

	listRecentRunsSQL = `SELECT
		id, source_file, format, aggregate_code, record_count, created_at
	FROM runs
	ORDER BY created_at DESC
	LIMIT $1;`

	upsertTradeRowSQL = `INSERT INTO trade_rows (
		run_id, partner_code, partner_name, product_code, product_name, time_period, value
	) VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (run_id, partner_code, product_code, time_period) DO UPDATE
	SET partner_name = EXCLUDED.partner_name,
		product_name = EXCLUDED.product_name,
		value        = EXCLUDED.value;`

	countTradeRowsSQL = `SELECT COUNT(*) FROM trade_rows WHERE run_id = $1;`

	upsertBreakpointSQL = `INSERT INTO breakpoints (
		run_id, metric, partner_code, cutoff_year, product_code, product_name,
		slope_before, slope_after, slope_change,
		level_before, level_after, level_change,
		direction, is_meaningful
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (run_id, metric, cutoff_year, product_code) DO UPDATE
	SET partner_code  = EXCLUDED.partner_code,
		product_name  = EXCLUDED.product_name,
		slope_before  = EXCLUDED.slope_before,
		slope_after   = EXCLUDED.slope_after,
		slope_change  = EXCLUDED.slope_change,
		level_before  = EXCLUDED.level_before,
		level_after   = EXCLUDED.level_after,
		level_change  = EXCLUDED.level_change,
		direction     = EXCLUDED.direction,
		is_meaningful = EXCLUDED.is_meaningful;`

	listBreakpointsSQL = `SELECT
		run_id, metric, partner_code, cutoff_year, product_code, product_name,
		slope_before, slope_after, slope_change,
		level_before, level_after, level_change,
		direction, is_meaningful, created_at
	FROM breakpoints
	WHERE run_id = $1 AND metric = $2
	ORDER BY slope_change ASC NULLS LAST;`
)

// Store is the PostgreSQL-backed warehouse.
type Store struct {
	pool *pgxpool.Pool
}

// New builds a pool from runtime settings and ensures the schema.
func New(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres: database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	store := &Store{pool: pool}
	if _, err := pool.Exec(ctx, createSchemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return store, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, storage.ErrNotConfigured
	}
	return s.pool, nil
}

// InsertRun records an analysis run.
func (s *Store) InsertRun(ctx context.Context, run storage.Run) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, insertRunSQL,
		run.ID, run.SourceFile, run.Format, run.AggregateCode, run.RecordCount,
	); err != nil {
		return fmt.Errorf("postgres: insert run: %w", err)
	}
	return nil
}

// ListRecentRuns returns the newest runs first.
func (s *Store) ListRecentRuns(ctx context.Context, limit int) ([]storage.Run, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, listRecentRunsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]storage.Run, 0, limit)
	for rows.Next() {
		var run storage.Run
		if err := rows.Scan(
			&run.ID, &run.SourceFile, &run.Format,
			&run.AggregateCode, &run.RecordCount, &run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// UpsertTradeRows writes normalised observations in one batch.
func (s *Store) UpsertTradeRows(ctx context.Context, tradeRows []storage.TradeRow) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if len(tradeRows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, row := range tradeRows {
		batch.Queue(upsertTradeRowSQL,
			row.RunID,
			row.PartnerCode,
			row.PartnerName,
			row.ProductCode,
			row.ProductName,
			row.TimePeriod,
			row.Value.String(),
		)
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()
	for range tradeRows {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert trade row: %w", err)
		}
	}
	return nil
}

// CountTradeRows counts observations stored for a run.
func (s *Store) CountTradeRows(ctx context.Context, runID uuid.UUID) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if err := pool.QueryRow(ctx, countTradeRowsSQL, runID).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count trade rows: %w", err)
	}
	return count, nil
}

// InsertBreakpoints writes screening results in one batch.
func (s *Store) InsertBreakpoints(ctx context.Context, bpRows []storage.BreakpointRow) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if len(bpRows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, row := range bpRows {
		batch.Queue(upsertBreakpointSQL,
			row.RunID,
			row.Metric,
			row.PartnerCode,
			row.CutoffYear,
			row.ProductCode,
			row.ProductName,
			row.SlopeBefore,
			row.SlopeAfter,
			row.SlopeChange,
			row.LevelBefore,
			row.LevelAfter,
			row.LevelChange,
			row.Direction,
			row.IsMeaningful,
		)
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()
	for range bpRows {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert breakpoint: %w", err)
		}
	}
	return nil
}

// ListBreakpointsByRun returns a run's screening results for one
// metric, sorted ascending by slope change with NULLs last.
func (s *Store) ListBreakpointsByRun(ctx context.Context, runID uuid.UUID, metric string) ([]storage.BreakpointRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, listBreakpointsSQL, runID, metric)
	if err != nil {
		return nil, fmt.Errorf("postgres: list breakpoints: %w", err)
	}
	defer rows.Close()

	results := make([]storage.BreakpointRow, 0)
	for rows.Next() {
		var row storage.BreakpointRow
		if err := rows.Scan(
			&row.RunID,
			&row.Metric,
			&row.PartnerCode,
			&row.CutoffYear,
			&row.ProductCode,
			&row.ProductName,
			&row.SlopeBefore,
			&row.SlopeAfter,
			&row.SlopeChange,
			&row.LevelBefore,
			&row.LevelAfter,
			&row.LevelChange,
			&row.Direction,
			&row.IsMeaningful,
			&row.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan breakpoint: %w", err)
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

var _ storage.Store = (*Store)(nil)
