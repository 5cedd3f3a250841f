package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Almaroo/hs-codes-analysis/internal/app"
)

var analyzeInput string

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the full analysis pipeline over a trade CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		if analyzeInput == "" {
			return fmt.Errorf("--input must be provided")
		}
		return getApp().Analyze(cmd.Context(), app.AnalyzeOptions{Input: analyzeInput})
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeInput, "input", "", "Path to the raw trade CSV")
}
