package service

import (
	"context"
	"fmt"
	"strings"

	"ticket-pricing/internal/pricing"
)

// DiscountRequest previews a coupon shape against a price. With ItemID set
// the price is resolved first; otherwise PriceMinor and Currency are used as-is.
type DiscountRequest struct {
	ItemID     string         `json:"item_id"`
	Currency   string         `json:"currency"`
	PriceMinor *int64         `json:"price_minor_units"`
	Coupon     pricing.Coupon `json:"coupon"`
}

// CouponQuoteRequest prices an item for a user redeeming a coupon code.
type CouponQuoteRequest struct {
	ItemID   string `json:"item_id"`
	Currency string `json:"currency"`
	Code     string `json:"coupon_code"`
	UserID   string `json:"user_id"`
}

// CouponQuote is a resolved price with the coupon applied.
type CouponQuote struct {
	Price    pricing.Result   `json:"price"`
	Discount pricing.Discount `json:"discount"`
}

// PreviewDiscount applies an unsaved coupon without validating its code.
func (s *Pricing) PreviewDiscount(ctx context.Context, req DiscountRequest) (pricing.Discount, error) {
	if strings.TrimSpace(req.ItemID) != "" {
		res, err := s.ResolvePrice(ctx, req.ItemID, req.Currency)
		if err != nil {
			return pricing.Discount{}, err
		}
		if err := req.Coupon.CheckCurrency(res.Currency); err != nil {
			return pricing.Discount{}, err
		}
		return pricing.ApplyDiscount(res.AmountMinor, res.Currency, req.Coupon)
	}

	if req.PriceMinor == nil {
		return pricing.Discount{}, fmt.Errorf("%w: item_id or price_minor_units is required", pricing.ErrInvalidInput)
	}
	currency := pricing.NormalizeCode(req.Currency)
	if len(currency) != 3 {
		return pricing.Discount{}, fmt.Errorf("%w: currency %q is not an ISO 4217 code", pricing.ErrInvalidInput, req.Currency)
	}
	if err := req.Coupon.CheckCurrency(currency); err != nil {
		return pricing.Discount{}, err
	}
	return pricing.ApplyDiscount(*req.PriceMinor, currency, req.Coupon)
}

// QuoteWithCoupon resolves the item price, validates the code for the
// user and applies it.
func (s *Pricing) QuoteWithCoupon(ctx context.Context, req CouponQuoteRequest) (CouponQuote, error) {
	if s.coupons == nil {
		return CouponQuote{}, fmt.Errorf("coupon store not configured")
	}

	itemID := strings.TrimSpace(req.ItemID)
	if itemID == "" {
		return CouponQuote{}, fmt.Errorf("%w: item id is required", pricing.ErrInvalidInput)
	}
	item, ok, err := s.stores.Items.GetItem(ctx, itemID)
	if err != nil {
		return CouponQuote{}, fmt.Errorf("load item %s: %w", itemID, err)
	}
	if !ok {
		return CouponQuote{}, fmt.Errorf("%w: item %s", pricing.ErrNotFound, itemID)
	}

	price, err := s.ResolvePrice(ctx, itemID, req.Currency)
	if err != nil {
		return CouponQuote{}, err
	}

	coupon, err := s.coupons.Validate(ctx, req.Code, pricing.CouponContext{
		ItemID:   item.ID,
		ItemKind: item.Kind,
		UserID:   strings.TrimSpace(req.UserID),
		Currency: price.Currency,
		Now:      s.now(),
	})
	if err != nil {
		return CouponQuote{}, err
	}

	discount, err := pricing.ApplyDiscount(price.AmountMinor, price.Currency, coupon)
	if err != nil {
		return CouponQuote{}, err
	}

	s.logger.Debug().
		Str("item_id", item.ID).
		Str("coupon", coupon.Code).
		Int64("total_minor", discount.TotalMinor).
		Msg("coupon quote computed")
	return CouponQuote{Price: price, Discount: discount}, nil
}
