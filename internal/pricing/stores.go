package pricing

import (
	"context"
	"time"
)

// ItemStore loads priceable items from the catalog.
type ItemStore interface {
	GetItem(ctx context.Context, id string) (Item, bool, error)
}

// RateStore is a read-only accessor over stored FX quotes.
type RateStore interface {
	GetQuote(ctx context.Context, base string) (Quote, bool, error)
}

// OverrideStore reads and writes per-currency price overrides.
type OverrideStore interface {
	GetOverride(ctx context.Context, itemID, currency string) (int64, bool, error)
	UpsertOverride(ctx context.Context, override Override) error
}

// SettingsStore reads the global pricing settings row.
type SettingsStore interface {
	GetSettings(ctx context.Context) (Settings, bool, error)
}

// StatsView exposes the conversion/revenue ranking of price test variants.
type StatsView interface {
	TopVariant(ctx context.Context, itemID, region string) (VariantStat, bool, error)
}

// PriceTestTx is the set of writes a price test mutation performs atomically.
type PriceTestTx interface {
	StatsView
	DeactivateActive(ctx context.Context, itemID, region string, endedAt time.Time) (int64, error)
	InsertVariants(ctx context.Context, variants []PriceTest) error
	UpsertOverride(ctx context.Context, override Override) error
}

// PriceTestStore persists price test variants.
type PriceTestStore interface {
	// WithinTx runs fn in a single transaction serialized per (itemID, region).
	WithinTx(ctx context.Context, itemID, region string, fn func(tx PriceTestTx) error) error
	ListTests(ctx context.Context, itemID, region string, includeEnded bool) ([]PriceTest, error)
}

// CouponStore loads coupons and their redemption counts.
type CouponStore interface {
	GetCoupon(ctx context.Context, code string) (Coupon, bool, error)
	CountRedemptions(ctx context.Context, code, userID string) (total int64, perUser int64, err error)
}
