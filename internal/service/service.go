package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ticket-pricing/internal/alerting"
	"ticket-pricing/internal/pricing"
	"ticket-pricing/internal/storage"
)

// QuoteLister enumerates every stored FX quote row.
type QuoteLister interface {
	ListQuotes(ctx context.Context) ([]pricing.Quote, error)
}

// Stores groups the persistence dependencies of the pricing service.
type Stores struct {
	Items     pricing.ItemStore
	Overrides pricing.OverrideStore
	Rates     pricing.RateStore
	Quotes    QuoteLister
	Settings  pricing.SettingsStore
	Tests     pricing.PriceTestStore
	Coupons   pricing.CouponStore
}

// Options carries the config-derived knobs of the service.
type Options struct {
	// Defaults apply when the pricing_settings row is absent.
	Defaults       pricing.Settings
	MaxQuoteAge    time.Duration
	LockKey        int64
	NotifyAdoption bool
	Channels       []string
}

// Pricing orchestrates resolution, discounts, price tests and the quote watch.
type Pricing struct {
	stores   Stores
	resolver *pricing.Resolver
	coupons  *pricing.CouponValidator
	tests    *pricing.TestManager
	notifier alerting.Notifier
	locker   storage.AdvisoryLocker
	opts     Options
	logger   zerolog.Logger
	now      func() time.Time
}

// New constructs the pricing service. notifier may be nil.
func New(opts Options, stores Stores, notifier alerting.Notifier, logger zerolog.Logger) *Pricing {
	var locker storage.AdvisoryLocker
	if l, ok := stores.Quotes.(storage.AdvisoryLocker); ok {
		locker = l
	}

	svc := &Pricing{
		stores:   stores,
		resolver: pricing.NewResolver(stores.Items, stores.Overrides, stores.Rates),
		notifier: notifier,
		locker:   locker,
		opts:     opts,
		logger:   logger.With().Str("component", "service").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	if stores.Coupons != nil {
		svc.coupons = pricing.NewCouponValidator(stores.Coupons)
	}
	if stores.Tests != nil {
		svc.tests = pricing.NewTestManager(stores.Tests)
	}
	return svc
}

// WithClock overrides the time source of the service and its test manager.
func (s *Pricing) WithClock(now func() time.Time) *Pricing {
	s.now = now
	if s.tests != nil {
		s.tests.WithClock(now)
	}
	return s
}

// Settings returns the current settings snapshot. The stored row wins over
// configured defaults.
func (s *Pricing) Settings(ctx context.Context) (pricing.Settings, error) {
	settings := s.opts.Defaults
	if s.stores.Settings != nil {
		row, ok, err := s.stores.Settings.GetSettings(ctx)
		if err != nil {
			return pricing.Settings{}, fmt.Errorf("load settings: %w", err)
		}
		if ok {
			settings = row
		}
	}

	settings = settings.Normalized()
	if err := settings.Validate(); err != nil {
		return pricing.Settings{}, fmt.Errorf("settings: %w", err)
	}
	return settings, nil
}

// ResolvePrice returns the localized price of an item.
func (s *Pricing) ResolvePrice(ctx context.Context, itemID, currency string) (pricing.Result, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return pricing.Result{}, err
	}

	res, err := s.resolver.Resolve(ctx, settings, itemID, currency)
	if err != nil {
		return pricing.Result{}, err
	}

	s.logger.Debug().
		Str("item_id", res.ItemID).
		Str("currency", res.Currency).
		Str("source", string(res.Source)).
		Int64("amount_minor", res.AmountMinor).
		Msg("price resolved")
	return res, nil
}

// ResolveBreakdown resolves a price and returns every intermediate value.
func (s *Pricing) ResolveBreakdown(ctx context.Context, itemID, currency string) (pricing.Breakdown, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return pricing.Breakdown{}, err
	}

	_, trace, err := s.resolver.ResolveWithBreakdown(ctx, settings, itemID, currency)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	if trace.FxUnavailable {
		s.logger.Warn().
			Str("item_id", trace.ItemID).
			Str("currency", trace.RequestedCurrency).
			Msg("fx rate unavailable, fell back to base price")
	}
	return trace, nil
}
