package storage

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Run identifies one persisted analysis pass over an input file.
type Run struct {
	ID            uuid.UUID
	SourceFile    string
	Format        string
	AggregateCode string
	RecordCount   int
	CreatedAt     time.Time
}

// TradeRow is a normalised trade observation stamped with its run.
// Values round-trip as decimals so the warehouse never loses digits.
type TradeRow struct {
	RunID       uuid.UUID
	PartnerCode string
	PartnerName string
	ProductCode string
	ProductName string
	TimePeriod  int
	Value       decimal.Decimal
}

// BreakpointRow is one screened product from a run, for the share or
// hhi metric. Undefined slopes and empty level windows are NULLs.
type BreakpointRow struct {
	RunID        uuid.UUID
	Metric       string
	PartnerCode  string
	CutoffYear   int
	ProductCode  string
	ProductName  string
	SlopeBefore  *float64
	SlopeAfter   *float64
	SlopeChange  *float64
	LevelBefore  *float64
	LevelAfter   *float64
	LevelChange  *float64
	Direction    string
	IsMeaningful bool
	CreatedAt    time.Time
}

// NullableSlope maps the in-memory NaN convention for undefined slopes
// onto SQL NULL.
func NullableSlope(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
