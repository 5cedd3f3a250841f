package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Almaroo/hs-codes-analysis/internal/app"
)

var (
	screenInput     string
	screenMetric    string
	screenCutoff    int
	screenThreshold float64
)

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Screen one metric series for breaks around the cutoff year",
	RunE: func(cmd *cobra.Command, args []string) error {
		if screenInput == "" {
			return fmt.Errorf("--input must be provided")
		}

		opts := app.ScreenOptions{
			Input:        screenInput,
			Metric:       screenMetric,
			CutoffYear:   screenCutoff,
			Threshold:    screenThreshold,
			ThresholdSet: cmd.Flags().Changed("threshold"),
		}
		return getApp().Screen(cmd.Context(), opts)
	},
}

func init() {
	screenCmd.Flags().StringVar(&screenInput, "input", "", "Path to the raw trade CSV")
	screenCmd.Flags().StringVar(&screenMetric, "metric", "share", "Metric series to screen (share or hhi)")
	screenCmd.Flags().IntVar(&screenCutoff, "cutoff", 0, "Cutoff year (defaults to config)")
	screenCmd.Flags().Float64Var(&screenThreshold, "threshold", 0, "Minimum |slope change| flagged as meaningful; 0 disables filtering")
}
