// Package charts renders the pipeline's output tables as PNG images:
// partner bar and pie charts for a product/year, share and HHI lines
// over time, segmented trend fits, and the breakpoint summary.
//
// Selections that match no rows return ErrNoData; callers decide
// whether to skip, warn, or fail.
package charts

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/Almaroo/hs-codes-analysis/internal/model"
	"github.com/Almaroo/hs-codes-analysis/internal/screening"
)

// ErrNoData signals an empty selection. Expected and recoverable.
var ErrNoData = errors.New("charts: no data for requested selection")

// Options size the rendered images.
type Options struct {
	Width  int
	Height int
}

func (o Options) width() int {
	if o.Width <= 0 {
		return 1280
	}
	return o.Width
}

func (o Options) height() int {
	if o.Height <= 0 {
		return 720
	}
	return o.Height
}

// restLabel groups partners below the significance threshold.
const restLabel = "Rest"

func yearFormatter(v interface{}) string {
	return chart.FloatValueFormatterWithFormat(v, "%.0f")
}

// PartnerValueBar draws trade values per partner for one product/year.
// Partners below sigThreshold are folded into a single Rest bar. When
// hhi rows are supplied, the matching index is shown in the title.
func PartnerValueBar(w io.Writer, shares []model.ShareRecord, productCode string, year int, sigThreshold float64, hhi []model.HHIRecord, opts Options) error {
	rows := filterProductYear(shares, productCode, year)
	if len(rows) == 0 {
		return ErrNoData
	}

	bars, productName := partnerBuckets(rows, sigThreshold, func(r model.ShareRecord) float64 { return r.Value })
	if len(bars) == 0 {
		return ErrNoData
	}

	title := fmt.Sprintf("%s (%s) - %d", productName, productCode, year)
	if index, ok := lookupHHI(hhi, productCode, year); ok {
		title = fmt.Sprintf("%s | HHI %.0f", title, index)
	}

	graph := chart.BarChart{
		Title:    title,
		Width:    opts.width(),
		Height:   opts.height(),
		BarWidth: 40,
		Bars:     bars,
	}
	return graph.Render(chart.PNG, w)
}

// SharePie draws partner shares (percent) for one product/year, with
// insignificant partners grouped into a Rest slice.
func SharePie(w io.Writer, shares []model.ShareRecord, productCode string, year int, sigThreshold float64, hhi []model.HHIRecord, opts Options) error {
	rows := filterProductYear(shares, productCode, year)
	if len(rows) == 0 {
		return ErrNoData
	}

	slices, productName := partnerBuckets(rows, sigThreshold, func(r model.ShareRecord) float64 {
		if r.Share == nil {
			return 0
		}
		return *r.Share * 100
	})
	if len(slices) == 0 {
		return ErrNoData
	}

	title := fmt.Sprintf("%s (%s) - %d", productName, productCode, year)
	if index, ok := lookupHHI(hhi, productCode, year); ok {
		title = fmt.Sprintf("%s | HHI %.0f", title, index)
	}

	graph := chart.PieChart{
		Title:  title,
		Width:  opts.width(),
		Height: opts.height(),
		Values: slices,
	}
	return graph.Render(chart.PNG, w)
}

// ShareLine draws one partner's share (percent) over time for a product.
func ShareLine(w io.Writer, shares []model.ShareRecord, productCode, partnerCode string, opts Options) error {
	type obs struct {
		year  int
		share float64
	}
	var (
		series      []obs
		productName string
		partnerName string
	)
	for _, row := range shares {
		if row.ProductCode != productCode || row.PartnerCode != partnerCode || row.Share == nil {
			continue
		}
		series = append(series, obs{year: row.TimePeriod, share: *row.Share * 100})
		productName = row.ProductName
		partnerName = row.PartnerName
	}
	if len(series) == 0 {
		return ErrNoData
	}
	sort.Slice(series, func(a, b int) bool { return series[a].year < series[b].year })

	xs := make([]float64, len(series))
	ys := make([]float64, len(series))
	for i, o := range series {
		xs[i] = float64(o.year)
		ys[i] = o.share
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s share - %s (%s)", partnerName, productName, productCode),
		Width:  opts.width(),
		Height: opts.height(),
		XAxis: chart.XAxis{
			Name:           "Year",
			ValueFormatter: yearFormatter,
		},
		YAxis: chart.YAxis{Name: "Share (%)"},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "Share",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: chart.ColorBlue,
					DotColor:    chart.ColorBlue,
					DotWidth:    3,
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return graph.Render(chart.PNG, w)
}

// HHI concentration guide levels, the conventional antitrust bands.
const (
	hhiModerate = 1500
	hhiHigh     = 2500
)

// HHILine draws a product's concentration index over time with the
// moderate and high concentration guide lines.
func HHILine(w io.Writer, hhi []model.HHIRecord, productCode, productName string, opts Options) error {
	var series []model.HHIRecord
	for _, row := range hhi {
		if row.ProductCode == productCode {
			series = append(series, row)
		}
	}
	if len(series) == 0 {
		return ErrNoData
	}
	sort.Slice(series, func(a, b int) bool { return series[a].TimePeriod < series[b].TimePeriod })

	xs := make([]float64, len(series))
	ys := make([]float64, len(series))
	for i, row := range series {
		xs[i] = float64(row.TimePeriod)
		ys[i] = row.HHI
	}

	label := productName
	if label == "" {
		label = productCode
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("Market Concentration (HHI) - %s (%s)", label, productCode),
		Width:  opts.width(),
		Height: opts.height(),
		XAxis: chart.XAxis{
			Name:           "Year",
			ValueFormatter: yearFormatter,
		},
		YAxis: chart.YAxis{Name: "HHI"},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "HHI",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: chart.ColorRed,
					DotColor:    chart.ColorRed,
					DotWidth:    3,
				},
			},
			guideLine("Highly concentrated (2500)", xs, hhiHigh),
			guideLine("Moderately concentrated (1500)", xs, hhiModerate),
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return graph.Render(chart.PNG, w)
}

// SegmentedTrend draws an observed metric series with independent
// least-squares fits before and at-or-after the cutoff year.
func SegmentedTrend(w io.Writer, years []int, values []float64, cutoffYear int, title, ylabel string, opts Options) error {
	if len(years) == 0 || len(years) != len(values) {
		return ErrNoData
	}

	var before, after []screening.Point
	for i, y := range years {
		p := screening.Point{Year: y, Value: values[i]}
		if y < cutoffYear {
			before = append(before, p)
		} else {
			after = append(after, p)
		}
	}

	xs := make([]float64, len(years))
	ys := make([]float64, len(years))
	for i := range years {
		xs[i] = float64(years[i])
		ys[i] = values[i]
	}

	series := []chart.Series{
		chart.ContinuousSeries{
			Name:    "Observed",
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: chart.ColorAlternateGray,
				DotColor:    chart.ColorAlternateGray,
				DotWidth:    3,
			},
		},
	}
	if fit, ok := fitSeries(before, cutoffYear, true); ok {
		series = append(series, fit)
	}
	if fit, ok := fitSeries(after, cutoffYear, false); ok {
		series = append(series, fit)
	}

	graph := chart.Chart{
		Title:  title,
		Width:  opts.width(),
		Height: opts.height(),
		XAxis: chart.XAxis{
			Name:           "Year",
			ValueFormatter: yearFormatter,
		},
		YAxis:  chart.YAxis{Name: ylabel},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return graph.Render(chart.PNG, w)
}

// BreakpointSummary draws slope changes for the products with the
// largest absolute change, ascending so the steepest declines lead.
func BreakpointSummary(w io.Writer, results []model.BreakpointResult, topN int, title string, opts Options) error {
	ranked := make([]model.BreakpointResult, 0, len(results))
	for _, r := range results {
		if math.IsNaN(r.SlopeChange) {
			continue
		}
		ranked = append(ranked, r)
	}
	if len(ranked) == 0 {
		return ErrNoData
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		return math.Abs(ranked[a].SlopeChange) > math.Abs(ranked[b].SlopeChange)
	})
	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].SlopeChange < ranked[b].SlopeChange
	})

	bars := make([]chart.Value, 0, len(ranked))
	for _, r := range ranked {
		bars = append(bars, chart.Value{
			Label: r.ProductCode,
			Value: r.SlopeChange,
		})
	}

	graph := chart.BarChart{
		Title:    title,
		Width:    opts.width(),
		Height:   opts.height(),
		BarWidth: 30,
		Bars:     bars,
	}
	return graph.Render(chart.PNG, w)
}

func filterProductYear(shares []model.ShareRecord, productCode string, year int) []model.ShareRecord {
	var rows []model.ShareRecord
	for _, row := range shares {
		if row.ProductCode == productCode && row.TimePeriod == year {
			rows = append(rows, row)
		}
	}
	return rows
}

// partnerBuckets splits rows into significant partners and a Rest
// bucket by share, valued through the metric function. Rows without a
// share are never significant; their metric still lands in Rest.
func partnerBuckets(rows []model.ShareRecord, sigThreshold float64, metric func(model.ShareRecord) float64) ([]chart.Value, string) {
	sort.SliceStable(rows, func(a, b int) bool {
		sa, sb := rows[a].Share, rows[b].Share
		if sa == nil {
			return false
		}
		if sb == nil {
			return true
		}
		return *sa > *sb
	})

	productName := rows[0].ProductName

	var (
		values   []chart.Value
		rest     float64
		haveRest bool
	)
	for _, row := range rows {
		if row.Share != nil && *row.Share >= sigThreshold {
			values = append(values, chart.Value{Label: row.PartnerCode, Value: metric(row)})
			continue
		}
		rest += metric(row)
		haveRest = true
	}
	if len(values) == 0 {
		return nil, productName
	}
	if haveRest {
		values = append(values, chart.Value{Label: restLabel, Value: rest})
	}
	return values, productName
}

func lookupHHI(hhi []model.HHIRecord, productCode string, year int) (float64, bool) {
	for _, row := range hhi {
		if row.ProductCode == productCode && row.TimePeriod == year {
			return row.HHI, true
		}
	}
	return 0, false
}

func guideLine(name string, xs []float64, level float64) chart.Series {
	ys := make([]float64, len(xs))
	for i := range ys {
		ys[i] = level
	}
	return chart.ContinuousSeries{
		Name:    name,
		XValues: xs,
		YValues: ys,
		Style: chart.Style{
			StrokeColor:     chart.ColorAlternateGray,
			StrokeDashArray: []float64{5.0, 5.0},
		},
	}
}

func fitSeries(pts []screening.Point, cutoffYear int, isBefore bool) (chart.Series, bool) {
	slope, intercept, ok := screening.FitLine(pts)
	if !ok {
		return nil, false
	}

	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		xs[i] = float64(p.Year)
		ys[i] = slope*float64(p.Year) + intercept
	}

	name := fmt.Sprintf("Pre-%d slope: %+.2f/yr", cutoffYear, slope)
	color := chart.ColorBlue
	if !isBefore {
		name = fmt.Sprintf("Post-%d slope: %+.2f/yr", cutoffYear, slope)
		color = chart.ColorRed
	}
	return chart.ContinuousSeries{
		Name:    name,
		XValues: xs,
		YValues: ys,
		Style: chart.Style{
			StrokeColor: color,
			StrokeWidth: 2,
		},
	}, true
}
