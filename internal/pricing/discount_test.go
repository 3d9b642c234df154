package pricing_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"ticket-pricing/internal/pricing"
)

func percentCoupon(code, pct string) pricing.Coupon {
	p := decimal.RequireFromString(pct)
	return pricing.Coupon{Code: code, PercentOff: &p, Active: true}
}

func amountCoupon(code string, amount int64, currency string) pricing.Coupon {
	return pricing.Coupon{Code: code, AmountOffMinor: &amount, Currency: currency, Active: true}
}

func TestApplyDiscount(t *testing.T) {
	tests := []struct {
		name         string
		price        int64
		currency     string
		coupon       pricing.Coupon
		wantDiscount int64
		wantTotal    int64
	}{
		{name: "15 percent rounds half up", price: 1999, currency: "USD", coupon: percentCoupon("SPRING15", "15"), wantDiscount: 300, wantTotal: 1699},
		{name: "100 percent", price: 73099, currency: "CNY", coupon: percentCoupon("FREE", "100"), wantDiscount: 73099, wantTotal: 0},
		{name: "zero percent", price: 999, currency: "EUR", coupon: percentCoupon("NONE", "0"), wantDiscount: 0, wantTotal: 999},
		{name: "fractional percent", price: 1000, currency: "EUR", coupon: percentCoupon("ODD", "12.5"), wantDiscount: 125, wantTotal: 875},
		{name: "fixed amount", price: 1999, currency: "USD", coupon: amountCoupon("FIVE", 500, "USD"), wantDiscount: 500, wantTotal: 1499},
		{name: "fixed amount larger than price", price: 300, currency: "USD", coupon: amountCoupon("BIG", 500, "usd"), wantDiscount: 300, wantTotal: 0},
		{name: "fixed amount without currency", price: 1999, currency: "GBP", coupon: amountCoupon("ANY", 100, ""), wantDiscount: 100, wantTotal: 1899},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pricing.ApplyDiscount(tt.price, tt.currency, tt.coupon)
			if err != nil {
				t.Fatalf("ApplyDiscount returned error: %v", err)
			}
			if got.DiscountMinor != tt.wantDiscount || got.TotalMinor != tt.wantTotal {
				t.Errorf("ApplyDiscount = %d/%d, want %d/%d", got.DiscountMinor, got.TotalMinor, tt.wantDiscount, tt.wantTotal)
			}
			if got.TotalMinor < 0 {
				t.Errorf("total must never be negative, got %d", got.TotalMinor)
			}
			if got.DiscountMinor+got.TotalMinor != got.PriceMinor {
				t.Errorf("discount %d + total %d != price %d", got.DiscountMinor, got.TotalMinor, got.PriceMinor)
			}
		})
	}
}

func TestApplyDiscountRejects(t *testing.T) {
	tests := []struct {
		name   string
		price  int64
		coupon pricing.Coupon
		want   error
	}{
		{name: "negative price", price: -1, coupon: percentCoupon("X", "10"), want: pricing.ErrInvalidInput},
		{name: "percent above 100", price: 1000, coupon: percentCoupon("X", "120"), want: pricing.ErrInvalidInput},
		{name: "no discount", price: 1000, coupon: pricing.Coupon{Code: "EMPTY"}, want: pricing.ErrInvalidInput},
		{name: "negative amount", price: 1000, coupon: amountCoupon("NEG", -5, "USD"), want: pricing.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pricing.ApplyDiscount(tt.price, "USD", tt.coupon)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestApplyDiscountIsArithmeticOnly(t *testing.T) {
	// currency is checked before the composer runs
	got, err := pricing.ApplyDiscount(1000, "USD", amountCoupon("EURO", 100, "EUR"))
	if err != nil {
		t.Fatalf("ApplyDiscount returned error: %v", err)
	}
	if got.DiscountMinor != 100 || got.TotalMinor != 900 || got.Currency != "USD" {
		t.Fatalf("unexpected discount: %+v", got)
	}
}
