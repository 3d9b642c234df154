package cli

import (
	"github.com/spf13/cobra"

	"ticket-pricing/internal/app"
)

var (
	testsRegion string
	testsAll    bool
)

var testsCmd = &cobra.Command{
	Use:   "tests <item-id>",
	Short: "List price test variants of an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ShowTests(cmd.Context(), app.TestsOptions{
			ItemID: args[0],
			Region: testsRegion,
			All:    testsAll,
		})
	},
}

func init() {
	testsCmd.Flags().StringVar(&testsRegion, "region", "", "Only this region")
	testsCmd.Flags().BoolVar(&testsAll, "all", false, "Include ended variants")
}
