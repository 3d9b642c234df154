package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-pricing/internal/alerting"
	"ticket-pricing/internal/pricing"
	"ticket-pricing/internal/service"
	"ticket-pricing/internal/testutil"
)

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	notes []alerting.Notification
	err   error
}

func (r *recordingNotifier) Notify(_ context.Context, note alerting.Notification) error {
	r.notes = append(r.notes, note)
	return r.err
}

func defaults() pricing.Settings {
	return pricing.Settings{
		SupportedCurrencies: []string{"USD", "EUR", "CNY"},
		BufferBps:           150,
		CNYRoundingMode:     pricing.RoundingYuan,
	}
}

func newService(mem *testutil.Memory, notifier alerting.Notifier) *service.Pricing {
	opts := service.Options{
		Defaults:       defaults(),
		MaxQuoteAge:    36 * time.Hour,
		NotifyAdoption: true,
		Channels:       []string{"telegram"},
	}
	stores := service.Stores{
		Items:     mem,
		Overrides: mem,
		Rates:     mem,
		Quotes:    mem,
		Settings:  mem,
		Tests:     mem,
		Coupons:   mem,
	}
	return service.New(opts, stores, notifier, zerolog.Nop()).WithClock(func() time.Time { return fixedNow })
}

func seed() *testutil.Memory {
	mem := testutil.NewMemory()
	mem.AddItem(pricing.Item{ID: "sku-1", Kind: pricing.KindTicket, BaseCurrency: "USD", BasePriceMinor: 9999})
	mem.AddItem(pricing.Item{ID: "offer-1", Kind: pricing.KindOffer, BaseCurrency: "USD", BasePriceMinor: 1999})
	mem.SetQuote("USD", fixedNow.Add(-time.Hour), map[string]string{"EUR": "0.9", "CNY": "7.2"})
	return mem
}

func TestSettingsFallbackToDefaults(t *testing.T) {
	svc := newService(seed(), nil)

	settings, err := svc.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(150), settings.BufferBps)
	assert.Equal(t, []string{"USD", "EUR", "CNY"}, settings.SupportedCurrencies)
}

func TestSettingsRowWins(t *testing.T) {
	mem := seed()
	mem.SetSettings(pricing.Settings{SupportedCurrencies: []string{"usd", "eur"}, BufferBps: 0, CNYRoundingMode: pricing.RoundingFen99})
	svc := newService(mem, nil)

	settings, err := svc.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), settings.BufferBps)
	assert.Equal(t, []string{"USD", "EUR"}, settings.SupportedCurrencies)
	assert.Equal(t, pricing.RoundingFen99, settings.CNYRoundingMode)
}

func TestSettingsInvalidRow(t *testing.T) {
	mem := seed()
	mem.SetSettings(pricing.Settings{SupportedCurrencies: []string{"USD"}, BufferBps: -5, CNYRoundingMode: pricing.RoundingYuan})
	svc := newService(mem, nil)

	_, err := svc.ResolvePrice(context.Background(), "sku-1", "USD")
	require.ErrorIs(t, err, pricing.ErrInvalidInput)
}

func TestResolvePrice(t *testing.T) {
	svc := newService(seed(), nil)

	res, err := svc.ResolvePrice(context.Background(), "sku-1", "usd")
	require.NoError(t, err)
	assert.Equal(t, pricing.Result{ItemID: "sku-1", Currency: "USD", AmountMinor: 9999, Source: pricing.SourceBase}, res)

	// 9999 * 7.2 = 71992.8 -> 71993; +1.5% -> 73072.895 -> 73073; ceil to 73100, yuan mode keeps it.
	res, err = svc.ResolvePrice(context.Background(), "sku-1", "CNY")
	require.NoError(t, err)
	assert.Equal(t, int64(73100), res.AmountMinor)
	assert.Equal(t, pricing.SourceFX, res.Source)

	_, err = svc.ResolvePrice(context.Background(), "missing", "USD")
	require.ErrorIs(t, err, pricing.ErrNotFound)
}

func TestResolveBreakdown(t *testing.T) {
	svc := newService(seed(), nil)

	trace, err := svc.ResolveBreakdown(context.Background(), "sku-1", "JPY")
	require.NoError(t, err)
	assert.True(t, trace.CurrencyCorrected)
	assert.Equal(t, "USD", trace.Currency)
	assert.Equal(t, pricing.SourceBase, trace.Source)
}

func TestPreviewDiscount(t *testing.T) {
	svc := newService(seed(), nil)
	pct := decimal.NewFromInt(15)

	d, err := svc.PreviewDiscount(context.Background(), service.DiscountRequest{
		ItemID:   "offer-1",
		Currency: "USD",
		Coupon:   pricing.Coupon{Code: "SPRING", PercentOff: &pct},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(300), d.DiscountMinor)
	assert.Equal(t, int64(1699), d.TotalMinor)

	price := int64(1999)
	d, err = svc.PreviewDiscount(context.Background(), service.DiscountRequest{
		PriceMinor: &price,
		Currency:   "usd",
		Coupon:     pricing.Coupon{Code: "SPRING", PercentOff: &pct},
	})
	require.NoError(t, err)
	assert.Equal(t, "USD", d.Currency)
	assert.Equal(t, int64(1699), d.TotalMinor)

	_, err = svc.PreviewDiscount(context.Background(), service.DiscountRequest{Currency: "USD"})
	require.ErrorIs(t, err, pricing.ErrInvalidInput)
}

func TestQuoteWithCoupon(t *testing.T) {
	mem := seed()
	pct := decimal.NewFromInt(15)
	one := int64(1)
	mem.AddCoupon(pricing.Coupon{Code: "offers15", PercentOff: &pct, AppliesTo: pricing.ScopeOffers, Active: true, PerUserLimit: &one})
	mem.Redeem("OFFERS15", "u-used")
	svc := newService(mem, nil)

	q, err := svc.QuoteWithCoupon(context.Background(), service.CouponQuoteRequest{
		ItemID: "offer-1", Currency: "USD", Code: "Offers15", UserID: "u-new",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1999), q.Price.AmountMinor)
	assert.Equal(t, int64(1699), q.Discount.TotalMinor)
	assert.Equal(t, "OFFERS15", q.Discount.CouponCode)

	_, err = svc.QuoteWithCoupon(context.Background(), service.CouponQuoteRequest{
		ItemID: "sku-1", Currency: "USD", Code: "OFFERS15", UserID: "u-new",
	})
	require.ErrorIs(t, err, pricing.ErrCouponInvalid, "ticket is out of scope")

	_, err = svc.QuoteWithCoupon(context.Background(), service.CouponQuoteRequest{
		ItemID: "offer-1", Currency: "USD", Code: "OFFERS15", UserID: "u-used",
	})
	require.ErrorIs(t, err, pricing.ErrCouponInvalid, "per-user limit reached")

	_, err = svc.QuoteWithCoupon(context.Background(), service.CouponQuoteRequest{
		ItemID: "ghost", Code: "OFFERS15",
	})
	require.ErrorIs(t, err, pricing.ErrNotFound)
}

func TestCouponCurrencyChecked(t *testing.T) {
	mem := seed()
	five := int64(500)
	mem.AddCoupon(pricing.Coupon{Code: "USD5", AmountOffMinor: &five, Currency: "USD", Active: true})
	svc := newService(mem, nil)

	q, err := svc.QuoteWithCoupon(context.Background(), service.CouponQuoteRequest{ItemID: "offer-1", Currency: "USD", Code: "usd5"})
	require.NoError(t, err)
	assert.Equal(t, int64(1499), q.Discount.TotalMinor)

	_, err = svc.QuoteWithCoupon(context.Background(), service.CouponQuoteRequest{ItemID: "offer-1", Currency: "EUR", Code: "usd5"})
	require.ErrorIs(t, err, pricing.ErrCurrencyMismatch)

	price := int64(1999)
	_, err = svc.PreviewDiscount(context.Background(), service.DiscountRequest{
		PriceMinor: &price,
		Currency:   "EUR",
		Coupon:     pricing.Coupon{Code: "USD5", AmountOffMinor: &five, Currency: "USD"},
	})
	require.ErrorIs(t, err, pricing.ErrCurrencyMismatch)
}

func TestProposeVariantsCreatesBatch(t *testing.T) {
	mem := seed()
	svc := newService(mem, nil)

	set, err := svc.ProposeVariants(context.Background(), pricing.ProposeRequest{
		ItemID: "offer-1", Region: "us", BaseSuggestionMinor: 1999, SpreadPct: 0.1,
	})
	require.NoError(t, err)
	assert.Equal(t, "USD", set.Mid.Currency, "empty currency defaults to base")
	assert.Equal(t, []int64{1799, 1999, 2199}, []int64{set.Low.PriceMinor, set.Mid.PriceMinor, set.High.PriceMinor})
	assert.Equal(t, "US", set.Mid.Region)

	override, ok := mem.Override("offer-1", "USD")
	require.True(t, ok)
	assert.Equal(t, int64(1999), override)
	assert.Len(t, mem.Tests(), 3)
}

func TestProposeVariantsValidation(t *testing.T) {
	svc := newService(seed(), nil)

	_, err := svc.ProposeVariants(context.Background(), pricing.ProposeRequest{ItemID: "ghost", Region: "US", BaseSuggestionMinor: 100})
	require.ErrorIs(t, err, pricing.ErrNotFound)

	_, err = svc.ProposeVariants(context.Background(), pricing.ProposeRequest{ItemID: "sku-1", Region: "US", Currency: "JPY", BaseSuggestionMinor: 100})
	require.ErrorIs(t, err, pricing.ErrInvalidInput)
}

func TestAdoptWinnerNotifies(t *testing.T) {
	mem := seed()
	mem.AddStat(pricing.VariantStat{ItemID: "offer-1", Region: "US", Variant: "A", Currency: "USD", PriceMinor: 1799, Impressions: 100, Conversions: 10, ConversionRate: decimal.RequireFromString("0.1"), RevenueMinor: 17990})
	mem.AddStat(pricing.VariantStat{ItemID: "offer-1", Region: "US", Variant: "B", Currency: "USD", PriceMinor: 1999, Impressions: 100, Conversions: 12, ConversionRate: decimal.RequireFromString("0.12"), RevenueMinor: 23988})
	notifier := &recordingNotifier{err: errors.New("telegram down")}
	svc := newService(mem, notifier)

	_, err := svc.ProposeVariants(context.Background(), pricing.ProposeRequest{ItemID: "offer-1", Region: "US", Currency: "USD", BaseSuggestionMinor: 1999, SpreadPct: 0.1})
	require.NoError(t, err)

	res, err := svc.AdoptWinner(context.Background(), "offer-1", "us")
	require.NoError(t, err, "notification failure must not fail adoption")
	assert.Equal(t, "B", res.Winner.Variant)
	assert.Equal(t, int64(3), res.Deactivated)

	require.Len(t, notifier.notes, 1)
	assert.Equal(t, alerting.EventWinnerAdopted, notifier.notes[0].Event)
	assert.Equal(t, int64(1999), notifier.notes[0].PriceMinor)

	active, err := svc.ListTests(context.Background(), "offer-1", "US", false)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := svc.ListTests(context.Background(), "offer-1", "US", true)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestAdoptWinnerNoResults(t *testing.T) {
	mem := seed()
	notifier := &recordingNotifier{}
	svc := newService(mem, notifier)

	_, err := svc.AdoptWinner(context.Background(), "offer-1", "US")
	require.ErrorIs(t, err, pricing.ErrNoResults)
	assert.Zero(t, mem.Writes)
	assert.Empty(t, notifier.notes)
}

func TestCheckRateFreshness(t *testing.T) {
	mem := seed()
	mem.SetQuote("EUR", fixedNow.Add(-48*time.Hour), map[string]string{"USD": "1.1"})
	svc := newService(mem, nil)

	report, err := svc.CheckRateFreshness(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Quotes, 2)
	assert.Equal(t, 1, report.Stale)
	assert.Equal(t, "EUR", report.Quotes[0].Base)
	assert.True(t, report.Quotes[0].Stale)
	assert.False(t, report.Quotes[1].Stale)
}

func TestWatchTickAlertsOnStaleQuotes(t *testing.T) {
	mem := seed()
	notifier := &recordingNotifier{}
	svc := newService(mem, notifier)

	require.NoError(t, svc.WatchTick(context.Background(), fixedNow))
	assert.Empty(t, notifier.notes, "fresh quotes raise nothing")

	mem.SetQuote("EUR", fixedNow.Add(-72*time.Hour), map[string]string{"USD": "1.1"})
	require.NoError(t, svc.WatchTick(context.Background(), fixedNow))
	require.Len(t, notifier.notes, 1)
	assert.Equal(t, alerting.EventStaleQuotes, notifier.notes[0].Event)
	require.Len(t, notifier.notes[0].Stale, 1)
	assert.Equal(t, "EUR", notifier.notes[0].Stale[0].Base)
}
