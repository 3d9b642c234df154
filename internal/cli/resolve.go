package cli

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"ticket-pricing/internal/service"
)

var (
	resolveCurrency string

	discountItem           string
	discountCurrency       string
	discountPrice          int64
	discountPercent        string
	discountAmount         int64
	discountCouponCurrency string

	quoteCurrency string
	quoteCode     string
	quoteUser     string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <item-id>",
	Short: "Resolve the localized price of a ticket or offer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Resolve(cmd.Context(), args[0], resolveCurrency)
	},
}

var breakdownCmd = &cobra.Command{
	Use:   "breakdown <item-id>",
	Short: "Show every step of a price resolution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Breakdown(cmd.Context(), args[0], resolveCurrency)
	},
}

var discountCmd = &cobra.Command{
	Use:   "discount",
	Short: "Preview a percent or fixed discount on a price",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := discountRequest(cmd)
		if err != nil {
			return err
		}
		return getApp().Discount(cmd.Context(), req)
	},
}

var quoteCmd = &cobra.Command{
	Use:   "quote <item-id>",
	Short: "Price an item with a coupon code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if quoteCode == "" {
			return errors.New("--code must be provided")
		}
		return getApp().Quote(cmd.Context(), service.CouponQuoteRequest{
			ItemID:   args[0],
			Currency: quoteCurrency,
			Code:     quoteCode,
			UserID:   quoteUser,
		})
	},
}

func discountRequest(cmd *cobra.Command) (service.DiscountRequest, error) {
	req := service.DiscountRequest{ItemID: discountItem, Currency: discountCurrency}
	req.Coupon.Code = "PREVIEW"
	req.Coupon.Currency = discountCouponCurrency

	if cmd.Flags().Changed("price") {
		price := discountPrice
		req.PriceMinor = &price
	}
	if req.ItemID == "" && req.PriceMinor == nil {
		return req, errors.New("one of --item or --price must be provided")
	}

	percentSet := discountPercent != ""
	amountSet := cmd.Flags().Changed("amount")
	switch {
	case percentSet && amountSet:
		return req, errors.New("--percent and --amount are mutually exclusive")
	case percentSet:
		pct, err := decimal.NewFromString(discountPercent)
		if err != nil {
			return req, fmt.Errorf("invalid --percent value: %w", err)
		}
		req.Coupon.PercentOff = &pct
	case amountSet:
		amount := discountAmount
		req.Coupon.AmountOffMinor = &amount
	default:
		return req, errors.New("one of --percent or --amount must be provided")
	}
	return req, nil
}

func init() {
	resolveCmd.Flags().StringVar(&resolveCurrency, "currency", "", "Target currency (defaults to USD)")
	breakdownCmd.Flags().StringVar(&resolveCurrency, "currency", "", "Target currency (defaults to USD)")

	discountCmd.Flags().StringVar(&discountItem, "item", "", "Resolve this item's price first")
	discountCmd.Flags().StringVar(&discountCurrency, "currency", "", "Price currency")
	discountCmd.Flags().Int64Var(&discountPrice, "price", 0, "Price in minor units (when --item is not given)")
	discountCmd.Flags().StringVar(&discountPercent, "percent", "", "Percent off, e.g. 15")
	discountCmd.Flags().Int64Var(&discountAmount, "amount", 0, "Fixed amount off in minor units")
	discountCmd.Flags().StringVar(&discountCouponCurrency, "coupon-currency", "", "Currency of the fixed amount")

	quoteCmd.Flags().StringVar(&quoteCurrency, "currency", "", "Target currency (defaults to USD)")
	quoteCmd.Flags().StringVar(&quoteCode, "code", "", "Coupon code")
	quoteCmd.Flags().StringVar(&quoteUser, "user", "", "Redeeming user id for per-user limits")
}
