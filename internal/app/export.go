package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Almaroo/hs-codes-analysis/internal/charts"
	"github.com/Almaroo/hs-codes-analysis/internal/model"
	"github.com/Almaroo/hs-codes-analysis/internal/pipeline"
	"github.com/Almaroo/hs-codes-analysis/internal/screening"
)

// Export computes every output table for one input file and writes
// them to a directory as CSV, plus PNG charts. Chart selections that
// match no rows are logged and skipped; they never fail the export.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.Dir == "" {
		return errors.New("--out directory must be provided")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return err
	}

	p := pipeline.New(a.Config, nil, nil, a.Logger)
	result, err := p.Run(ctx, opts.Input)
	if err != nil {
		return err
	}

	if err := a.writeTables(opts.Dir, result); err != nil {
		return err
	}
	a.writeCharts(opts, result)

	a.Logger.Info().Str("dir", opts.Dir).Msg("export complete")
	return nil
}

func (a *App) writeTables(dir string, result *pipeline.Result) error {
	if err := writeSharesCSV(filepath.Join(dir, "shares.csv"), result.Shares); err != nil {
		return err
	}
	if err := writeWeightsCSV(filepath.Join(dir, "weights.csv"), result.Weights); err != nil {
		return err
	}
	if err := writeHHICSV(filepath.Join(dir, "hhi.csv"), result.HHI); err != nil {
		return err
	}
	if err := writeBreaksCSV(filepath.Join(dir, "share_breaks.csv"), result.ShareBreaks); err != nil {
		return err
	}
	return writeBreaksCSV(filepath.Join(dir, "hhi_breaks.csv"), result.HHIBreaks)
}

func (a *App) writeCharts(opts ExportOptions, result *pipeline.Result) {
	chartOpts := charts.Options{
		Width:  a.Config.Charts.Width,
		Height: a.Config.Charts.Height,
	}
	topN := a.Config.ResolveTopN(opts.TopN)

	a.renderChart(filepath.Join(opts.Dir, "share_breaks.png"), func(f *os.File) error {
		return charts.BreakpointSummary(f, result.ShareBreaks, topN,
			fmt.Sprintf("Share slope changes around %d", a.Config.Analysis.CutoffYear), chartOpts)
	})
	a.renderChart(filepath.Join(opts.Dir, "hhi_breaks.png"), func(f *os.File) error {
		return charts.BreakpointSummary(f, result.HHIBreaks, topN,
			fmt.Sprintf("HHI slope changes around %d", a.Config.Analysis.CutoffYear), chartOpts)
	})

	if opts.Product == "" {
		return
	}

	partner := opts.Partner
	if partner == "" {
		partner = a.Config.Analysis.PartnerCode
	}
	year := opts.Year
	if year == 0 {
		year = latestYear(result.Shares, opts.Product)
	}

	sig := a.Config.Analysis.SignificanceThreshold
	a.renderChart(filepath.Join(opts.Dir, "partner_values.png"), func(f *os.File) error {
		return charts.PartnerValueBar(f, result.Shares, opts.Product, year, sig, result.HHI, chartOpts)
	})
	a.renderChart(filepath.Join(opts.Dir, "partner_shares.png"), func(f *os.File) error {
		return charts.SharePie(f, result.Shares, opts.Product, year, sig, result.HHI, chartOpts)
	})
	a.renderChart(filepath.Join(opts.Dir, "share_over_time.png"), func(f *os.File) error {
		return charts.ShareLine(f, result.Shares, opts.Product, partner, chartOpts)
	})
	a.renderChart(filepath.Join(opts.Dir, "hhi_over_time.png"), func(f *os.File) error {
		return charts.HHILine(f, result.HHI, opts.Product, productName(result.Shares, opts.Product), chartOpts)
	})
	a.renderChart(filepath.Join(opts.Dir, "share_trend.png"), func(f *os.File) error {
		years, values := shareSeries(result.Shares, opts.Product, partner)
		return charts.SegmentedTrend(f, years, values, a.Config.Analysis.CutoffYear,
			fmt.Sprintf("%s share trend - %s", partner, opts.Product), "Share (%)", chartOpts)
	})
}

// renderChart treats a no-data selection as a soft condition.
func (a *App) renderChart(path string, render func(*os.File) error) {
	file, err := os.Create(path)
	if err != nil {
		a.Logger.Error().Err(err).Str("path", path).Msg("failed to create chart file")
		return
	}
	err = render(file)
	file.Close()
	if errors.Is(err, charts.ErrNoData) {
		a.Logger.Warn().Str("path", path).Msg("no data for chart; skipped")
		_ = os.Remove(path)
		return
	}
	if err != nil {
		a.Logger.Error().Err(err).Str("path", path).Msg("failed to render chart")
	}
}

func latestYear(shares []model.ShareRecord, productCode string) int {
	year := 0
	for _, row := range shares {
		if row.ProductCode == productCode && row.TimePeriod > year {
			year = row.TimePeriod
		}
	}
	return year
}

func productName(shares []model.ShareRecord, productCode string) string {
	for _, row := range shares {
		if row.ProductCode == productCode {
			return row.ProductName
		}
	}
	return ""
}

func shareSeries(shares []model.ShareRecord, productCode, partnerCode string) ([]int, []float64) {
	pts := make([]screening.Point, 0)
	for _, row := range shares {
		if row.ProductCode == productCode && row.PartnerCode == partnerCode && row.Share != nil {
			pts = append(pts, screening.Point{Year: row.TimePeriod, Value: *row.Share * 100})
		}
	}
	years := make([]int, len(pts))
	values := make([]float64, len(pts))
	for i, p := range pts {
		years[i] = p.Year
		values[i] = p.Value
	}
	return years, values
}

func writeSharesCSV(path string, shares []model.ShareRecord) error {
	return writeCSV(path,
		[]string{"partner_code", "partner_name", "product_code", "product_name", "time_period", "value", "share", "yoy_ratio", "yoy_change_percent", "ma_3y", "is_significant", "was_significant"},
		len(shares),
		func(i int) []string {
			row := shares[i]
			return []string{
				row.PartnerCode,
				row.PartnerName,
				row.ProductCode,
				row.ProductName,
				strconv.Itoa(row.TimePeriod),
				formatFloatCSV(row.Value),
				optionalCSV(row.Share),
				optionalCSV(row.YoYRatio),
				optionalCSV(row.YoYChangePercent),
				optionalCSV(row.MA3Y),
				optionalBoolCSV(row.IsSignificant),
				optionalBoolCSV(row.WasSignificant),
			}
		})
}

func writeWeightsCSV(path string, weights []model.ProductWeight) error {
	return writeCSV(path,
		[]string{"product_code", "product_name", "total_value", "weight_pct"},
		len(weights),
		func(i int) []string {
			w := weights[i]
			return []string{w.ProductCode, w.ProductName, formatFloatCSV(w.TotalValue), formatFloatCSV(w.WeightPct)}
		})
}

func writeHHICSV(path string, hhi []model.HHIRecord) error {
	return writeCSV(path,
		[]string{"time_period", "product_code", "hhi"},
		len(hhi),
		func(i int) []string {
			row := hhi[i]
			return []string{strconv.Itoa(row.TimePeriod), row.ProductCode, formatFloatCSV(row.HHI)}
		})
}

func writeBreaksCSV(path string, results []model.BreakpointResult) error {
	return writeCSV(path,
		[]string{"product_code", "product_name", "slope_before", "slope_after", "slope_change", "level_before", "level_after", "level_change", "direction", "is_meaningful"},
		len(results),
		func(i int) []string {
			r := results[i]
			return []string{
				r.ProductCode,
				r.ProductName,
				slopeCSV(r.SlopeBefore),
				slopeCSV(r.SlopeAfter),
				slopeCSV(r.SlopeChange),
				optionalCSV(r.LevelBefore),
				optionalCSV(r.LevelAfter),
				optionalCSV(r.LevelChange),
				string(r.Direction),
				strconv.FormatBool(r.IsMeaningful),
			}
		})
}

func writeCSV(path string, header []string, rows int, record func(int) []string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(header); err != nil {
		return err
	}
	for i := 0; i < rows; i++ {
		if err := writer.Write(record(i)); err != nil {
			return err
		}
	}
	return writer.Error()
}

func formatFloatCSV(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// optionalCSV writes absent metrics as empty cells.
func optionalCSV(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloatCSV(*v)
}

func optionalBoolCSV(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}

// slopeCSV writes undefined slopes (NaN) as empty cells.
func slopeCSV(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return formatFloatCSV(v)
}
