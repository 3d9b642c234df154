package pricing

import "errors"

var (
	// ErrNotFound indicates the referenced item does not exist.
	ErrNotFound = errors.New("pricing: not found")
	// ErrNoResults indicates a price test has no stats to pick a winner from.
	ErrNoResults = errors.New("pricing: no price test results")
	// ErrInvalidInput flags a malformed request.
	ErrInvalidInput = errors.New("pricing: invalid input")
	// ErrCouponInvalid indicates a coupon failed validation.
	ErrCouponInvalid = errors.New("pricing: coupon invalid")
	// ErrCurrencyMismatch indicates a fixed-amount coupon denominated in another currency.
	ErrCurrencyMismatch = errors.New("pricing: coupon currency mismatch")

	errRateUnavailable = errors.New("pricing: rate unavailable")
)
