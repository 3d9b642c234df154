package cli

import (
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pricing HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Serve(cmd.Context(), serveAddr)
	},
}

var watchRatesCmd = &cobra.Command{
	Use:   "watch-rates",
	Short: "Periodically check FX quote freshness and alert when stale",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().WatchRates(cmd.Context())
	},
}

var checkRatesCmd = &cobra.Command{
	Use:   "check-rates",
	Short: "Print the age of every stored FX quote",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().CheckRates(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (defaults to http.addr)")
}
