package cli

import (
	"github.com/spf13/cobra"

	"ticket-pricing/internal/app"
)

var (
	exportRegion   string
	exportCSVPath  string
	exportXLSXPath string
	exportPNGPath  string
	exportMaxRows  int
)

var exportCmd = &cobra.Command{
	Use:   "export <item-id>",
	Short: "Export price test history as CSV, XLSX and/or PNG chart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Export(cmd.Context(), app.ExportOptions{
			ItemID:   args[0],
			Region:   exportRegion,
			CSVPath:  exportCSVPath,
			XLSXPath: exportXLSXPath,
			PNGPath:  exportPNGPath,
			MaxRows:  exportMaxRows,
		})
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportRegion, "region", "", "Only this region")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().StringVar(&exportXLSXPath, "xlsx", "", "Path to write an Excel workbook")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().IntVar(&exportMaxRows, "max-rows", 0, "Maximum rows to export (defaults to config)")
}
