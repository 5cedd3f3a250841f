package model

// Direction classifies the change in trend slope around a cutoff year.
type Direction string

const (
	DirectionDeclining  Direction = "declining"
	DirectionIncreasing Direction = "increasing"
	DirectionStable     Direction = "stable"
)

// TotalProductCode marks aggregate "all products" rows in the raw files.
// Rows carrying it never survive ingestion.
const TotalProductCode = "TOTAL"

// TradeRecord is the canonical row both CSV layouts normalise into:
// one partner/product/year observation with its trade value.
type TradeRecord struct {
	PartnerCode string
	PartnerName string
	ProductCode string
	ProductName string
	TimePeriod  int
	Value       float64
}

// ShareRecord extends TradeRecord with derived per-series metrics.
// Pointer fields are nil where the metric is undefined (missing
// denominator, first year of a series, series edge); zero is a valid
// value for every metric, so nil is the only "absent" marker.
type ShareRecord struct {
	TradeRecord

	Share            *float64
	YoYRatio         *float64
	YoYChangePercent *float64
	MA3Y             *float64
	IsSignificant    *bool
	WasSignificant   *bool
}

// ProductWeight ranks a product by its value over the baseline window.
type ProductWeight struct {
	ProductCode string
	ProductName string
	TotalValue  float64
	WeightPct   float64
}

// HHIRecord holds the Herfindahl-Hirschman index for one product/year:
// 10000 times the sum of squared partner shares, in [0, 10000].
type HHIRecord struct {
	TimePeriod  int
	ProductCode string
	HHI         float64
}

// BreakpointResult describes a screened trend change for one product.
// Slopes are NaN when their segment has fewer than two observations;
// levels are nil when no observations fall inside the window.
type BreakpointResult struct {
	ProductCode string
	ProductName string

	SlopeBefore float64
	SlopeAfter  float64
	SlopeChange float64

	LevelBefore *float64
	LevelAfter  *float64
	LevelChange *float64

	Direction    Direction
	IsMeaningful bool
}

// BreakpointComparison joins two screening passes at different cutoff
// years, for the share series and the HHI series of one product.
// Products missing either series at either cutoff are not represented.
type BreakpointComparison struct {
	ProductCode string
	ProductName string

	ShareSlopeChgBase float64
	ShareSlopeChgAlt  float64
	ShareStrongerAlt  bool

	HHISlopeChgBase float64
	HHISlopeChgAlt  float64
	HHIStrongerAlt  bool
}
