package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Almaroo/hs-codes-analysis/internal/app"
)

var (
	exportInput   string
	exportDir     string
	exportProduct string
	exportYear    int
	exportPartner string
	exportTopN    int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export computed tables as CSV and charts as PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportInput == "" {
			return fmt.Errorf("--input must be provided")
		}

		opts := app.ExportOptions{
			Input:   exportInput,
			Dir:     exportDir,
			Product: exportProduct,
			Year:    exportYear,
			Partner: exportPartner,
			TopN:    exportTopN,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportInput, "input", "", "Path to the raw trade CSV")
	exportCmd.Flags().StringVar(&exportDir, "out", "export", "Directory to write CSV and PNG files")
	exportCmd.Flags().StringVar(&exportProduct, "product", "", "Product code to render detail charts for")
	exportCmd.Flags().IntVar(&exportYear, "year", 0, "Year for the bar/pie charts (defaults to the product's latest year)")
	exportCmd.Flags().StringVar(&exportPartner, "partner", "", "Partner code for the share charts (defaults to config)")
	exportCmd.Flags().IntVar(&exportTopN, "top-n", 0, "Products shown in summary charts (defaults to config)")
}
