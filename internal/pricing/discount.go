package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Discount is the outcome of applying a coupon to a resolved price.
type Discount struct {
	Currency      string `json:"currency"`
	PriceMinor    int64  `json:"price_minor_units"`
	DiscountMinor int64  `json:"discount_minor_units"`
	TotalMinor    int64  `json:"total_minor_units"`
	CouponCode    string `json:"coupon_code,omitempty"`
}

// ApplyDiscount applies a pre-validated coupon to a price that has already
// been localized by the Resolver. Percent discounts round half-up to the
// nearest minor unit; fixed discounts are taken as denominated in currency
// (see Coupon.CheckCurrency). The discount never exceeds the price, so
// PriceMinor = DiscountMinor + TotalMinor always holds.
func ApplyDiscount(priceMinor int64, currency string, coupon Coupon) (Discount, error) {
	if priceMinor < 0 {
		return Discount{}, fmt.Errorf("%w: price cannot be negative", ErrInvalidInput)
	}
	currency = NormalizeCode(currency)

	var discount int64
	switch {
	case coupon.PercentOff != nil:
		pct := *coupon.PercentOff
		if pct.IsNegative() || pct.GreaterThan(hundred) {
			return Discount{}, fmt.Errorf("%w: percent_off %s out of range", ErrInvalidInput, pct.String())
		}
		discount = roundMinor(decimal.NewFromInt(priceMinor).Mul(pct).Div(hundred))
	case coupon.AmountOffMinor != nil:
		if *coupon.AmountOffMinor < 0 {
			return Discount{}, fmt.Errorf("%w: amount_off cannot be negative", ErrInvalidInput)
		}
		discount = *coupon.AmountOffMinor
	default:
		return Discount{}, fmt.Errorf("%w: coupon %s has no discount", ErrInvalidInput, coupon.Code)
	}

	if discount > priceMinor {
		discount = priceMinor
	}
	return Discount{
		Currency:      currency,
		PriceMinor:    priceMinor,
		DiscountMinor: discount,
		TotalMinor:    priceMinor - discount,
		CouponCode:    coupon.Code,
	}, nil
}
