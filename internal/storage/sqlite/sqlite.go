// Package sqlite implements the warehouse on an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Almaroo/hs-codes-analysis/internal/storage"
)

// Store is the SQLite-backed warehouse.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database file and applies the
// schema.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	statements := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			source_file TEXT NOT NULL,
			format TEXT NOT NULL,
			aggregate_code TEXT NOT NULL,
			record_count INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS trade_rows (
			run_id TEXT NOT NULL REFERENCES runs(id),
			partner_code TEXT NOT NULL,
			partner_name TEXT NOT NULL,
			product_code TEXT NOT NULL,
			product_name TEXT NOT NULL,
			time_period INTEGER NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (run_id, partner_code, product_code, time_period)
		);`,
		`CREATE TABLE IF NOT EXISTS breakpoints (
			run_id TEXT NOT NULL REFERENCES runs(id),
			metric TEXT NOT NULL,
			partner_code TEXT NOT NULL,
			cutoff_year INTEGER NOT NULL,
			product_code TEXT NOT NULL,
			product_name TEXT NOT NULL,
			slope_before REAL,
			slope_after REAL,
			slope_change REAL,
			level_before REAL,
			level_after REAL,
			level_change REAL,
			direction TEXT NOT NULL,
			is_meaningful INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (run_id, metric, cutoff_year, product_code)
		);`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w", err)
		}
	}
	return nil
}

// InsertRun records an analysis run.
func (s *Store) InsertRun(ctx context.Context, run storage.Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, source_file, format, aggregate_code, record_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.SourceFile, run.Format, run.AggregateCode, run.RecordCount, run.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert run: %w", err)
	}
	return nil
}

// ListRecentRuns returns the newest runs first.
func (s *Store) ListRecentRuns(ctx context.Context, limit int) ([]storage.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_file, format, aggregate_code, record_count, created_at
		FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]storage.Run, 0, limit)
	for rows.Next() {
		var run storage.Run
		var id string
		if err := rows.Scan(&id, &run.SourceFile, &run.Format, &run.AggregateCode, &run.RecordCount, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan run: %w", err)
		}
		run.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("sqlite: parse run id: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// UpsertTradeRows writes normalised observations in one transaction.
func (s *Store) UpsertTradeRows(ctx context.Context, tradeRows []storage.TradeRow) error {
	if len(tradeRows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trade_rows (
			run_id, partner_code, partner_name, product_code, product_name, time_period, value
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, partner_code, product_code, time_period)
		DO UPDATE SET
			partner_name = excluded.partner_name,
			product_name = excluded.product_name,
			value = excluded.value`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("sqlite: prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, row := range tradeRows {
		if _, err = stmt.ExecContext(ctx,
			row.RunID.String(),
			row.PartnerCode,
			row.PartnerName,
			row.ProductCode,
			row.ProductName,
			row.TimePeriod,
			row.Value.String(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("sqlite: upsert trade row: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// CountTradeRows counts observations stored for a run.
func (s *Store) CountTradeRows(ctx context.Context, runID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trade_rows WHERE run_id = ?`, runID.String(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: count trade rows: %w", err)
	}
	return count, nil
}

// InsertBreakpoints writes screening results in one transaction.
func (s *Store) InsertBreakpoints(ctx context.Context, bpRows []storage.BreakpointRow) error {
	if len(bpRows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO breakpoints (
			run_id, metric, partner_code, cutoff_year, product_code, product_name,
			slope_before, slope_after, slope_change,
			level_before, level_after, level_change,
			direction, is_meaningful, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, metric, cutoff_year, product_code)
		DO UPDATE SET
			partner_code = excluded.partner_code,
			product_name = excluded.product_name,
			slope_before = excluded.slope_before,
			slope_after = excluded.slope_after,
			slope_change = excluded.slope_change,
			level_before = excluded.level_before,
			level_after = excluded.level_after,
			level_change = excluded.level_change,
			direction = excluded.direction,
			is_meaningful = excluded.is_meaningful`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("sqlite: prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, row := range bpRows {
		createdAt := row.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err = stmt.ExecContext(ctx,
			row.RunID.String(),
			row.Metric,
			row.PartnerCode,
			row.CutoffYear,
			row.ProductCode,
			row.ProductName,
			nullFloat(row.SlopeBefore),
			nullFloat(row.SlopeAfter),
			nullFloat(row.SlopeChange),
			nullFloat(row.LevelBefore),
			nullFloat(row.LevelAfter),
			nullFloat(row.LevelChange),
			row.Direction,
			row.IsMeaningful,
			createdAt,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("sqlite: upsert breakpoint: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// ListBreakpointsByRun returns a run's screening results for one
// metric, sorted ascending by slope change with NULLs last.
func (s *Store) ListBreakpointsByRun(ctx context.Context, runID uuid.UUID, metric string) ([]storage.BreakpointRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, metric, partner_code, cutoff_year, product_code, product_name,
			slope_before, slope_after, slope_change,
			level_before, level_after, level_change,
			direction, is_meaningful, created_at
		FROM breakpoints
		WHERE run_id = ? AND metric = ?
		ORDER BY slope_change IS NULL, slope_change`, runID.String(), metric)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list breakpoints: %w", err)
	}
	defer rows.Close()

	results := make([]storage.BreakpointRow, 0)
	for rows.Next() {
		row, err := scanBreakpoint(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

func scanBreakpoint(rows *sql.Rows) (storage.BreakpointRow, error) {
	var (
		row         storage.BreakpointRow
		id          string
		slopeBefore sql.NullFloat64
		slopeAfter  sql.NullFloat64
		slopeChange sql.NullFloat64
		levelBefore sql.NullFloat64
		levelAfter  sql.NullFloat64
		levelChange sql.NullFloat64
	)
	if err := rows.Scan(
		&id,
		&row.Metric,
		&row.PartnerCode,
		&row.CutoffYear,
		&row.ProductCode,
		&row.ProductName,
		&slopeBefore,
		&slopeAfter,
		&slopeChange,
		&levelBefore,
		&levelAfter,
		&levelChange,
		&row.Direction,
		&row.IsMeaningful,
		&row.CreatedAt,
	); err != nil {
		return storage.BreakpointRow{}, fmt.Errorf("sqlite: scan breakpoint: %w", err)
	}

	runID, err := uuid.Parse(id)
	if err != nil {
		return storage.BreakpointRow{}, fmt.Errorf("sqlite: parse run id: %w", err)
	}
	row.RunID = runID
	row.SlopeBefore = fromNull(slopeBefore)
	row.SlopeAfter = fromNull(slopeAfter)
	row.SlopeChange = fromNull(slopeChange)
	row.LevelBefore = fromNull(levelBefore)
	row.LevelAfter = fromNull(levelAfter)
	row.LevelChange = fromNull(levelChange)
	return row, nil
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func fromNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	value := v.Float64
	return &value
}

var _ storage.Store = (*Store)(nil)
