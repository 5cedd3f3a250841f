// Package screening detects structural breaks in per-product metric
// series around a policy cutoff year. Each series is split at the
// cutoff, a least-squares line is fitted to each segment, and the
// change in slope is classified as declining, increasing, or stable.
package screening

import (
	"math"
	"sort"

	"github.com/Almaroo/hs-codes-analysis/internal/model"
)

// Options parameterise a screening pass.
type Options struct {
	// PartnerCode selects the partner whose share series are screened.
	// Ignored by the HHI screener.
	PartnerCode string
	// CutoffYear splits each series: before (< cutoff) and after (>= cutoff).
	CutoffYear int
	// Threshold is the minimum |slope change| that counts as a
	// meaningful break. Zero disables filtering.
	Threshold float64
	// LevelWindow is how many periods on each side of the cutoff feed
	// the level means. Defaults to 2 when unset.
	LevelWindow int
}

func (o Options) levelWindow() int {
	if o.LevelWindow <= 0 {
		return 2
	}
	return o.LevelWindow
}

// CompareOptions parameterise the two-cutoff robustness comparison.
type CompareOptions struct {
	PartnerCode string
	BaseCutoff  int
	AltCutoff   int
	LevelWindow int
}

// Point is one observation of a metric series.
type Point struct {
	Year  int
	Value float64
}

// ScreenShareBreaks screens one partner's share series (as share*100)
// across all products it trades in. Observations without a computed
// share are left out of both the fits and the level means. Results are
// sorted ascending by slope change, most-declining first.
func ScreenShareBreaks(shares []model.ShareRecord, opts Options) []model.BreakpointResult {
	series := make(map[string][]Point)
	names := make(map[string]string)
	for _, row := range shares {
		if row.PartnerCode != opts.PartnerCode || row.Share == nil {
			continue
		}
		series[row.ProductCode] = append(series[row.ProductCode], Point{
			Year:  row.TimePeriod,
			Value: *row.Share * 100,
		})
		if _, ok := names[row.ProductCode]; !ok {
			names[row.ProductCode] = row.ProductName
		}
	}

	results := make([]model.BreakpointResult, 0, len(series))
	for code, pts := range series {
		result := screenSeries(pts, opts)
		result.ProductCode = code
		result.ProductName = names[code]
		results = append(results, result)
	}

	sortBySlopeChange(results)
	return results
}

// ScreenHHIBreaks screens the concentration series of every product.
func ScreenHHIBreaks(hhi []model.HHIRecord, opts Options) []model.BreakpointResult {
	series := make(map[string][]Point)
	for _, row := range hhi {
		series[row.ProductCode] = append(series[row.ProductCode], Point{
			Year:  row.TimePeriod,
			Value: row.HHI,
		})
	}

	results := make([]model.BreakpointResult, 0, len(series))
	for code, pts := range series {
		result := screenSeries(pts, opts)
		result.ProductCode = code
		results = append(results, result)
	}

	sortBySlopeChange(results)
	return results
}

func screenSeries(pts []Point, opts Options) model.BreakpointResult {
	sort.Slice(pts, func(a, b int) bool { return pts[a].Year < pts[b].Year })

	var before, after []Point
	for _, p := range pts {
		if p.Year < opts.CutoffYear {
			before = append(before, p)
		} else {
			after = append(after, p)
		}
	}

	slopeBefore := segmentSlope(before)
	slopeAfter := segmentSlope(after)
	slopeChange := slopeAfter - slopeBefore

	n := opts.levelWindow()
	levelBefore := meanOfTail(before, n)
	levelAfter := meanOfHead(after, n)

	result := model.BreakpointResult{
		SlopeBefore: slopeBefore,
		SlopeAfter:  slopeAfter,
		SlopeChange: slopeChange,
		LevelBefore: levelBefore,
		LevelAfter:  levelAfter,
		Direction:   classify(slopeChange, opts.Threshold),
		// NaN compares false, so an undefined slope change is never meaningful.
		IsMeaningful: math.Abs(slopeChange) >= opts.Threshold,
	}
	if levelBefore != nil && levelAfter != nil {
		change := *levelAfter - *levelBefore
		result.LevelChange = &change
	}
	return result
}

// segmentSlope returns the ordinary least squares slope of value
// against year, or NaN when the segment holds fewer than two points.
func segmentSlope(pts []Point) float64 {
	if len(pts) < 2 {
		return math.NaN()
	}
	slope, _, ok := FitLine(pts)
	if !ok {
		return math.NaN()
	}
	return slope
}

// FitLine fits value = slope*year + intercept by least squares.
// ok is false when the fit is degenerate (under two points, or all
// points sharing one year).
func FitLine(pts []Point) (slope, intercept float64, ok bool) {
	if len(pts) < 2 {
		return 0, 0, false
	}
	var sumX, sumY, sumXY, sumXX float64
	for _, p := range pts {
		x := float64(p.Year)
		sumX += x
		sumY += p.Value
		sumXY += x * p.Value
		sumXX += x * x
	}
	n := float64(len(pts))
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, 0, false
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept, true
}

// meanOfTail averages the last n points, i.e. the periods nearest the
// cutoff from below. Nil when the segment is empty.
func meanOfTail(pts []Point, n int) *float64 {
	if len(pts) == 0 {
		return nil
	}
	if len(pts) > n {
		pts = pts[len(pts)-n:]
	}
	return mean(pts)
}

// meanOfHead averages the first n points, the periods nearest the
// cutoff from above.
func meanOfHead(pts []Point, n int) *float64 {
	if len(pts) == 0 {
		return nil
	}
	if len(pts) > n {
		pts = pts[:n]
	}
	return mean(pts)
}

func mean(pts []Point) *float64 {
	sum := 0.0
	for _, p := range pts {
		sum += p.Value
	}
	m := sum / float64(len(pts))
	return &m
}

func classify(slopeChange, threshold float64) model.Direction {
	switch {
	case slopeChange <= -threshold:
		return model.DirectionDeclining
	case slopeChange >= threshold:
		return model.DirectionIncreasing
	default:
		return model.DirectionStable
	}
}

// sortBySlopeChange orders ascending, undefined (NaN) changes last.
func sortBySlopeChange(results []model.BreakpointResult) {
	sort.SliceStable(results, func(a, b int) bool {
		ca, cb := results[a].SlopeChange, results[b].SlopeChange
		if math.IsNaN(ca) {
			return false
		}
		if math.IsNaN(cb) {
			return true
		}
		if ca != cb {
			return ca < cb
		}
		return results[a].ProductCode < results[b].ProductCode
	})
}

// CompareBreakpoints screens both series types at two cutoff years
// with filtering disabled and joins the passes per product. A product
// must have results in all four passes to appear; the inner join is
// deliberate since the comparison needs both series at both cutoffs.
func CompareBreakpoints(shares []model.ShareRecord, hhi []model.HHIRecord, opts CompareOptions) []model.BreakpointComparison {
	screenShare := func(cutoff int) map[string]model.BreakpointResult {
		return indexByProduct(ScreenShareBreaks(shares, Options{
			PartnerCode: opts.PartnerCode,
			CutoffYear:  cutoff,
			LevelWindow: opts.LevelWindow,
		}))
	}
	screenHHI := func(cutoff int) map[string]model.BreakpointResult {
		return indexByProduct(ScreenHHIBreaks(hhi, Options{
			CutoffYear:  cutoff,
			LevelWindow: opts.LevelWindow,
		}))
	}

	shareBase := screenShare(opts.BaseCutoff)
	shareAlt := screenShare(opts.AltCutoff)
	hhiBase := screenHHI(opts.BaseCutoff)
	hhiAlt := screenHHI(opts.AltCutoff)

	comparisons := make([]model.BreakpointComparison, 0, len(shareBase))
	for code, base := range shareBase {
		alt, ok := shareAlt[code]
		if !ok {
			continue
		}
		hb, ok := hhiBase[code]
		if !ok {
			continue
		}
		ha, ok := hhiAlt[code]
		if !ok {
			continue
		}

		comparisons = append(comparisons, model.BreakpointComparison{
			ProductCode:       code,
			ProductName:       base.ProductName,
			ShareSlopeChgBase: base.SlopeChange,
			ShareSlopeChgAlt:  alt.SlopeChange,
			ShareStrongerAlt:  math.Abs(alt.SlopeChange) > math.Abs(base.SlopeChange),
			HHISlopeChgBase:   hb.SlopeChange,
			HHISlopeChgAlt:    ha.SlopeChange,
			HHIStrongerAlt:    math.Abs(ha.SlopeChange) > math.Abs(hb.SlopeChange),
		})
	}

	sort.Slice(comparisons, func(a, b int) bool {
		return comparisons[a].ProductCode < comparisons[b].ProductCode
	})
	return comparisons
}

func indexByProduct(results []model.BreakpointResult) map[string]model.BreakpointResult {
	index := make(map[string]model.BreakpointResult, len(results))
	for _, result := range results {
		index[result.ProductCode] = result
	}
	return index
}
