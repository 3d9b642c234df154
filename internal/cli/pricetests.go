package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"ticket-pricing/internal/pricing"
)

var (
	proposeRegion   string
	proposeCurrency string
	proposeBase     int64
	proposeSpread   float64

	adoptRegion string
)

var proposeCmd = &cobra.Command{
	Use:   "propose <item-id>",
	Short: "Start an A/B/C price test around a suggested price",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if proposeRegion == "" {
			return errors.New("--region must be provided")
		}
		if !cmd.Flags().Changed("base") {
			return errors.New("--base must be provided")
		}
		return getApp().Propose(cmd.Context(), pricing.ProposeRequest{
			ItemID:              args[0],
			Region:              proposeRegion,
			Currency:            proposeCurrency,
			BaseSuggestionMinor: proposeBase,
			SpreadPct:           proposeSpread,
		})
	},
}

var adoptCmd = &cobra.Command{
	Use:   "adopt <item-id>",
	Short: "Adopt the best converting variant as the permanent price",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if adoptRegion == "" {
			return errors.New("--region must be provided")
		}
		return getApp().Adopt(cmd.Context(), args[0], adoptRegion)
	},
}

func init() {
	proposeCmd.Flags().StringVar(&proposeRegion, "region", "", "Region code, e.g. US")
	proposeCmd.Flags().StringVar(&proposeCurrency, "currency", "", "Variant currency (defaults to the item's base currency)")
	proposeCmd.Flags().Int64Var(&proposeBase, "base", 0, "Suggested price in minor units")
	proposeCmd.Flags().Float64Var(&proposeSpread, "spread", 0.1, "Spread around the suggestion, 0.1 = ±10%")

	adoptCmd.Flags().StringVar(&adoptRegion, "region", "", "Region code, e.g. US")
}
