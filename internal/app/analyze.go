package app

import (
	"context"
	"fmt"
	"math"
	"os"
	"text/tabwriter"

	"github.com/Almaroo/hs-codes-analysis/internal/model"
	"github.com/Almaroo/hs-codes-analysis/internal/pipeline"
)

// Analyze runs the full pipeline over one input file and prints a
// summary of weights and detected breaks.
func (a *App) Analyze(ctx context.Context, opts AnalyzeOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Debug().Msg("database.driver not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	p := pipeline.New(a.Config, store, a.newNotifier(), a.Logger)
	result, err := p.Run(ctx, opts.Input)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "run %s: %d records, %d share rows, %d product weights, %d HHI cells\n\n",
		result.RunID, len(result.Records), len(result.Shares), len(result.Weights), len(result.HHI))

	printWeights(result.Weights, 10)
	fmt.Fprintln(os.Stdout)

	fmt.Fprintf(os.Stdout, "Share breaks (partner %s, cutoff %d, threshold %.2f):\n",
		a.Config.Analysis.PartnerCode, a.Config.Analysis.CutoffYear, a.Config.Analysis.ShareSlopeThreshold)
	printBreaks(meaningfulOnly(result.ShareBreaks))

	fmt.Fprintf(os.Stdout, "\nHHI breaks (cutoff %d, threshold %.2f):\n",
		a.Config.Analysis.CutoffYear, a.Config.Analysis.HHISlopeThreshold)
	printBreaks(meaningfulOnly(result.HHIBreaks))

	return nil
}

func meaningfulOnly(results []model.BreakpointResult) []model.BreakpointResult {
	kept := make([]model.BreakpointResult, 0, len(results))
	for _, r := range results {
		if r.IsMeaningful {
			kept = append(kept, r)
		}
	}
	return kept
}

func printWeights(weights []model.ProductWeight, limit int) {
	if len(weights) == 0 {
		fmt.Fprintln(os.Stdout, "no baseline product weights")
		return
	}
	if limit > 0 && len(weights) > limit {
		weights = weights[:limit]
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Product\tName\tTotal Value\tWeight %")
	for _, w := range weights {
		fmt.Fprintf(writer, "%s\t%s\t%.0f\t%.2f\n", w.ProductCode, w.ProductName, w.TotalValue, w.WeightPct)
	}
	writer.Flush()
}

func printBreaks(results []model.BreakpointResult) {
	if len(results) == 0 {
		fmt.Fprintln(os.Stdout, "no meaningful breaks")
		return
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Product\tName\tSlope Before\tSlope After\tSlope Change\tLevel Change\tDirection")
	for _, r := range results {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ProductCode,
			r.ProductName,
			formatSlope(r.SlopeBefore),
			formatSlope(r.SlopeAfter),
			formatSlope(r.SlopeChange),
			formatOptional(r.LevelChange),
			r.Direction,
		)
	}
	writer.Flush()
}

// formatSlope renders NaN (undefined segment) as a dash.
func formatSlope(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%+.4f", v)
}

func formatOptional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%+.2f", *v)
}
