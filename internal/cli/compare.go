package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Almaroo/hs-codes-analysis/internal/app"
)

var compareInput string

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare detected breaks across the two configured cutoff years",
	RunE: func(cmd *cobra.Command, args []string) error {
		if compareInput == "" {
			return fmt.Errorf("--input must be provided")
		}
		return getApp().Compare(cmd.Context(), app.CompareOptions{Input: compareInput})
	},
}

func init() {
	compareCmd.Flags().StringVar(&compareInput, "input", "", "Path to the raw trade CSV")
}
