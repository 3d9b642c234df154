package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Scopes understood by Coupon.AppliesTo. "item:<id>" targets one item.
const (
	ScopeAll        = "all"
	ScopeTickets    = "tickets"
	ScopeOffers     = "offers"
	scopeItemPrefix = "item:"
)

// Coupon is a discount code. Exactly one of PercentOff and AmountOffMinor is set.
type Coupon struct {
	Code           string           `json:"code"`
	PercentOff     *decimal.Decimal `json:"percent_off,omitempty"`
	AmountOffMinor *int64           `json:"amount_off_minor_units,omitempty"`
	Currency       string           `json:"currency,omitempty"`
	ValidFrom      *time.Time       `json:"valid_from,omitempty"`
	ValidTo        *time.Time       `json:"valid_to,omitempty"`
	MaxRedemptions *int64           `json:"max_redemptions,omitempty"`
	PerUserLimit   *int64           `json:"per_user_limit,omitempty"`
	AppliesTo      string           `json:"applies_to"`
	Active         bool             `json:"active"`
}

// CanonicalCode upper-cases a coupon code so lookups are case-insensitive.
func CanonicalCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CouponContext is what a coupon is being redeemed against.
type CouponContext struct {
	ItemID   string
	ItemKind ItemKind
	UserID   string
	// Currency of the price the coupon will be applied to; empty skips the check.
	Currency string
	Now      time.Time
}

// CouponValidator checks date window, scope, currency and redemption caps.
type CouponValidator struct {
	store CouponStore
}

// NewCouponValidator builds a validator over store.
func NewCouponValidator(store CouponStore) *CouponValidator {
	return &CouponValidator{store: store}
}

// Validate returns the coupon for code if it may be redeemed in cc.
func (v *CouponValidator) Validate(ctx context.Context, code string, cc CouponContext) (Coupon, error) {
	code = CanonicalCode(code)
	if code == "" {
		return Coupon{}, fmt.Errorf("%w: empty code", ErrCouponInvalid)
	}

	coupon, ok, err := v.store.GetCoupon(ctx, code)
	if err != nil {
		return Coupon{}, fmt.Errorf("load coupon %s: %w", code, err)
	}
	if !ok || !coupon.Active {
		return Coupon{}, fmt.Errorf("%w: %s not found", ErrCouponInvalid, code)
	}
	coupon.Code = CanonicalCode(coupon.Code)

	now := cc.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if coupon.ValidFrom != nil && now.Before(*coupon.ValidFrom) {
		return Coupon{}, fmt.Errorf("%w: %s not yet valid", ErrCouponInvalid, code)
	}
	if coupon.ValidTo != nil && now.After(*coupon.ValidTo) {
		return Coupon{}, fmt.Errorf("%w: %s expired", ErrCouponInvalid, code)
	}
	if !coupon.covers(cc) {
		return Coupon{}, fmt.Errorf("%w: %s does not apply to %s", ErrCouponInvalid, code, cc.ItemID)
	}
	if cc.Currency != "" {
		if err := coupon.CheckCurrency(cc.Currency); err != nil {
			return Coupon{}, err
		}
	}

	if coupon.MaxRedemptions != nil || (coupon.PerUserLimit != nil && cc.UserID != "") {
		total, perUser, err := v.store.CountRedemptions(ctx, code, cc.UserID)
		if err != nil {
			return Coupon{}, fmt.Errorf("count redemptions %s: %w", code, err)
		}
		if coupon.MaxRedemptions != nil && total >= *coupon.MaxRedemptions {
			return Coupon{}, fmt.Errorf("%w: %s fully redeemed", ErrCouponInvalid, code)
		}
		if coupon.PerUserLimit != nil && cc.UserID != "" && perUser >= *coupon.PerUserLimit {
			return Coupon{}, fmt.Errorf("%w: %s already used by user", ErrCouponInvalid, code)
		}
	}

	return coupon, nil
}

// CheckCurrency reports ErrCurrencyMismatch when a fixed-amount coupon is
// denominated in a currency other than currency. Percent coupons and
// coupons without a currency fit any price.
func (c Coupon) CheckCurrency(currency string) error {
	if c.AmountOffMinor == nil {
		return nil
	}
	own := NormalizeCode(c.Currency)
	if own == "" || own == NormalizeCode(currency) {
		return nil
	}
	return fmt.Errorf("%w: coupon %s is in %s, price is in %s", ErrCurrencyMismatch, c.Code, own, NormalizeCode(currency))
}

func (c Coupon) covers(cc CouponContext) bool {
	scope := strings.TrimSpace(strings.ToLower(c.AppliesTo))
	switch {
	case scope == "" || scope == ScopeAll:
		return true
	case scope == ScopeTickets:
		return cc.ItemKind == KindTicket
	case scope == ScopeOffers:
		return cc.ItemKind == KindOffer
	case strings.HasPrefix(scope, scopeItemPrefix):
		return strings.EqualFold(strings.TrimPrefix(scope, scopeItemPrefix), cc.ItemID)
	default:
		return false
	}
}
