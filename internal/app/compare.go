package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/Almaroo/hs-codes-analysis/internal/ingest"
	"github.com/Almaroo/hs-codes-analysis/internal/processing"
	"github.com/Almaroo/hs-codes-analysis/internal/screening"
)

// Compare screens both metrics at the base and comparison cutoff years
// and prints the joined robustness table.
func (a *App) Compare(ctx context.Context, opts CompareOptions) error {
	analysis := a.Config.Analysis

	records, err := ingest.Load(a.Config.Ingest.Format, opts.Input)
	if err != nil {
		return err
	}
	shares := processing.ComputeShares(records, processing.ShareOptions{
		AggregateCode:         a.Config.Ingest.AggregateCode,
		SignificanceThreshold: analysis.SignificanceThreshold,
	})
	hhi := processing.ComputeHHI(shares)

	comparisons := screening.CompareBreakpoints(shares, hhi, screening.CompareOptions{
		PartnerCode: analysis.PartnerCode,
		BaseCutoff:  analysis.CutoffYear,
		AltCutoff:   analysis.ComparisonCutoffYear,
		LevelWindow: analysis.LevelWindow,
	})
	if len(comparisons) == 0 {
		fmt.Fprintln(os.Stdout, "no products with both series at both cutoffs")
		return nil
	}

	base, alt := analysis.CutoffYear, analysis.ComparisonCutoffYear
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Product\tName\tShare Chg %d\tShare Chg %d\tShare Stronger %d\tHHI Chg %d\tHHI Chg %d\tHHI Stronger %d\n",
		base, alt, alt, base, alt, alt)
	for _, c := range comparisons {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%t\t%s\t%s\t%t\n",
			c.ProductCode,
			c.ProductName,
			formatSlope(c.ShareSlopeChgBase),
			formatSlope(c.ShareSlopeChgAlt),
			c.ShareStrongerAlt,
			formatSlope(c.HHISlopeChgBase),
			formatSlope(c.HHISlopeChgAlt),
			c.HHIStrongerAlt,
		)
	}
	writer.Flush()
	return nil
}
