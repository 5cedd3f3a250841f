// Package storage defines the optional results warehouse: normalised
// trade rows and screening results keyed by run. Backends live in the
// sqlite and postgres subpackages; an unconfigured warehouse simply
// disables persistence.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotConfigured indicates the backend handle was not initialised.
var ErrNotConfigured = errors.New("storage: not configured")

// RunStore defines operations on analysis runs.
type RunStore interface {
	InsertRun(ctx context.Context, run Run) error
	ListRecentRuns(ctx context.Context, limit int) ([]Run, error)
}

// TradeRowStore defines operations on normalised trade observations.
type TradeRowStore interface {
	UpsertTradeRows(ctx context.Context, rows []TradeRow) error
	CountTradeRows(ctx context.Context, runID uuid.UUID) (int64, error)
}

// BreakpointRowStore defines operations on screening results.
type BreakpointRowStore interface {
	InsertBreakpoints(ctx context.Context, rows []BreakpointRow) error
	ListBreakpointsByRun(ctx context.Context, runID uuid.UUID, metric string) ([]BreakpointRow, error)
}

// Store aggregates warehouse access behind one handle.
type Store interface {
	RunStore
	TradeRowStore
	BreakpointRowStore
	Close() error
}
