package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/Almaroo/hs-codes-analysis/internal/ingest"
	"github.com/Almaroo/hs-codes-analysis/internal/model"
	"github.com/Almaroo/hs-codes-analysis/internal/pipeline"
	"github.com/Almaroo/hs-codes-analysis/internal/processing"
	"github.com/Almaroo/hs-codes-analysis/internal/screening"
)

// Screen runs a single screening pass over one metric and prints the
// full result table, most-declining products first.
func (a *App) Screen(ctx context.Context, opts ScreenOptions) error {
	analysis := a.Config.Analysis

	cutoff := analysis.CutoffYear
	if opts.CutoffYear > 0 {
		cutoff = opts.CutoffYear
	}

	records, err := ingest.Load(a.Config.Ingest.Format, opts.Input)
	if err != nil {
		return err
	}
	shares := processing.ComputeShares(records, processing.ShareOptions{
		AggregateCode:         a.Config.Ingest.AggregateCode,
		SignificanceThreshold: analysis.SignificanceThreshold,
	})

	var results []model.BreakpointResult
	switch opts.Metric {
	case pipeline.MetricShare:
		threshold := analysis.ShareSlopeThreshold
		if opts.ThresholdSet {
			threshold = opts.Threshold
		}
		results = screening.ScreenShareBreaks(shares, screening.Options{
			PartnerCode: analysis.PartnerCode,
			CutoffYear:  cutoff,
			Threshold:   threshold,
			LevelWindow: analysis.LevelWindow,
		})
	case pipeline.MetricHHI:
		threshold := analysis.HHISlopeThreshold
		if opts.ThresholdSet {
			threshold = opts.Threshold
		}
		results = screening.ScreenHHIBreaks(processing.ComputeHHI(shares), screening.Options{
			CutoffYear:  cutoff,
			Threshold:   threshold,
			LevelWindow: analysis.LevelWindow,
		})
	default:
		return fmt.Errorf("unknown metric %q (want %s or %s)", opts.Metric, pipeline.MetricShare, pipeline.MetricHHI)
	}

	if len(results) == 0 {
		fmt.Fprintln(os.Stdout, "no series to screen")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Product\tName\tSlope Before\tSlope After\tSlope Change\tLevel Before\tLevel After\tLevel Change\tDirection\tMeaningful")
	for _, r := range results {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
			r.ProductCode,
			r.ProductName,
			formatSlope(r.SlopeBefore),
			formatSlope(r.SlopeAfter),
			formatSlope(r.SlopeChange),
			formatOptional(r.LevelBefore),
			formatOptional(r.LevelAfter),
			formatOptional(r.LevelChange),
			r.Direction,
			r.IsMeaningful,
		)
	}
	writer.Flush()
	return nil
}
