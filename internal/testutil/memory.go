// Package testutil provides in-memory pricing stores for tests.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ticket-pricing/internal/pricing"
)

// Memory implements every pricing store against maps. Transactions stage a
// copy of the price test state and commit only when fn succeeds.
type Memory struct {
	mu          sync.Mutex
	items       map[string]pricing.Item
	overrides   map[string]int64
	quotes      map[string]pricing.Quote
	settings    *pricing.Settings
	tests       []pricing.PriceTest
	stats       []pricing.VariantStat
	coupons     map[string]pricing.Coupon
	redemptions map[string][]string

	// Writes counts committed mutations; used to assert "no writes".
	Writes int
	// QuoteReads counts GetQuote calls.
	QuoteReads int
	// Err, when set, is returned by every call.
	Err error
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		items:       make(map[string]pricing.Item),
		overrides:   make(map[string]int64),
		quotes:      make(map[string]pricing.Quote),
		coupons:     make(map[string]pricing.Coupon),
		redemptions: make(map[string][]string),
	}
}

func overrideKey(itemID, currency string) string { return itemID + "|" + currency }

// AddItem seeds a catalog item.
func (m *Memory) AddItem(item pricing.Item) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = item
	return m
}

// SetOverride seeds an override.
func (m *Memory) SetOverride(itemID, currency string, price int64) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[overrideKey(itemID, currency)] = price
	return m
}

// Override returns a stored override.
func (m *Memory) Override(itemID, currency string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.overrides[overrideKey(itemID, currency)]
	return v, ok
}

// SetQuote seeds an FX quote row; rates are given as strings, e.g. "7.2".
func (m *Memory) SetQuote(base string, updatedAt time.Time, rates map[string]string) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := pricing.Quote{Base: base, Rates: make(map[string]decimal.Decimal, len(rates)), UpdatedAt: updatedAt}
	for target, v := range rates {
		q.Rates[target] = decimal.RequireFromString(v)
	}
	m.quotes[base] = q
	return m
}

// SetSettings seeds the settings row.
func (m *Memory) SetSettings(s pricing.Settings) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = &s
	return m
}

// AddStat seeds a stats view row.
func (m *Memory) AddStat(stat pricing.VariantStat) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = append(m.stats, stat)
	return m
}

// AddCoupon seeds a coupon keyed by its canonical code.
func (m *Memory) AddCoupon(c pricing.Coupon) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coupons[pricing.CanonicalCode(c.Code)] = c
	return m
}

// Redeem records a redemption of code by userID.
func (m *Memory) Redeem(code, userID string) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	code = pricing.CanonicalCode(code)
	m.redemptions[code] = append(m.redemptions[code], userID)
	return m
}

// Tests returns a copy of every stored variant.
func (m *Memory) Tests() []pricing.PriceTest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]pricing.PriceTest, len(m.tests))
	copy(out, m.tests)
	return out
}

// GetItem implements pricing.ItemStore.
func (m *Memory) GetItem(_ context.Context, id string) (pricing.Item, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return pricing.Item{}, false, m.Err
	}
	item, ok := m.items[id]
	return item, ok, nil
}

// GetQuote implements pricing.RateStore.
func (m *Memory) GetQuote(_ context.Context, base string) (pricing.Quote, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QuoteReads++
	if m.Err != nil {
		return pricing.Quote{}, false, m.Err
	}
	q, ok := m.quotes[base]
	return q, ok, nil
}

// ListQuotes returns every quote row ordered by base.
func (m *Memory) ListQuotes(_ context.Context) ([]pricing.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]pricing.Quote, 0, len(m.quotes))
	for _, q := range m.quotes {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Base < out[j].Base })
	return out, nil
}

// GetOverride implements pricing.OverrideStore.
func (m *Memory) GetOverride(_ context.Context, itemID, currency string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, false, m.Err
	}
	v, ok := m.overrides[overrideKey(itemID, currency)]
	return v, ok, nil
}

// UpsertOverride implements pricing.OverrideStore.
func (m *Memory) UpsertOverride(_ context.Context, o pricing.Override) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.overrides[overrideKey(o.ItemID, o.Currency)] = o.PriceMinor
	m.Writes++
	return nil
}

// GetSettings implements pricing.SettingsStore.
func (m *Memory) GetSettings(_ context.Context) (pricing.Settings, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return pricing.Settings{}, false, m.Err
	}
	if m.settings == nil {
		return pricing.Settings{}, false, nil
	}
	return *m.settings, true, nil
}

// GetCoupon implements pricing.CouponStore.
func (m *Memory) GetCoupon(_ context.Context, code string) (pricing.Coupon, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return pricing.Coupon{}, false, m.Err
	}
	c, ok := m.coupons[pricing.CanonicalCode(code)]
	return c, ok, nil
}

// CountRedemptions implements pricing.CouponStore.
func (m *Memory) CountRedemptions(_ context.Context, code, userID string) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, 0, m.Err
	}
	users := m.redemptions[pricing.CanonicalCode(code)]
	var perUser int64
	for _, u := range users {
		if userID != "" && u == userID {
			perUser++
		}
	}
	return int64(len(users)), perUser, nil
}

// ListTests implements pricing.PriceTestStore.
func (m *Memory) ListTests(_ context.Context, itemID, region string, includeEnded bool) ([]pricing.PriceTest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]pricing.PriceTest, 0)
	for _, t := range m.tests {
		if t.ItemID != itemID || (region != "" && t.Region != region) {
			continue
		}
		if !includeEnded && !t.IsActive {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].Variant < out[j].Variant
	})
	return out, nil
}

// WithinTx implements pricing.PriceTestStore.
func (m *Memory) WithinTx(ctx context.Context, itemID, region string, fn func(tx pricing.PriceTestTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	tx := &memoryTx{
		tests:     append([]pricing.PriceTest(nil), m.tests...),
		overrides: make(map[string]int64, len(m.overrides)),
		stats:     m.stats,
	}
	for k, v := range m.overrides {
		tx.overrides[k] = v
	}

	if err := fn(tx); err != nil {
		return err
	}

	m.tests = tx.tests
	m.overrides = tx.overrides
	m.Writes += tx.writes
	return nil
}

type memoryTx struct {
	tests     []pricing.PriceTest
	overrides map[string]int64
	stats     []pricing.VariantStat
	writes    int
}

func (t *memoryTx) TopVariant(_ context.Context, itemID, region string) (pricing.VariantStat, bool, error) {
	var (
		best  pricing.VariantStat
		found bool
	)
	for _, s := range t.stats {
		if s.ItemID != itemID || s.Region != region {
			continue
		}
		if !found || better(s, best) {
			best, found = s, true
		}
	}
	return best, found, nil
}

func better(a, b pricing.VariantStat) bool {
	if c := a.ConversionRate.Cmp(b.ConversionRate); c != 0 {
		return c > 0
	}
	return a.RevenueMinor > b.RevenueMinor
}

func (t *memoryTx) DeactivateActive(_ context.Context, itemID, region string, endedAt time.Time) (int64, error) {
	var n int64
	for i := range t.tests {
		if t.tests[i].ItemID == itemID && t.tests[i].Region == region && t.tests[i].IsActive {
			ended := endedAt
			t.tests[i].IsActive = false
			t.tests[i].EndedAt = &ended
			n++
		}
	}
	if n > 0 {
		t.writes++
	}
	return n, nil
}

func (t *memoryTx) InsertVariants(_ context.Context, variants []pricing.PriceTest) error {
	t.tests = append(t.tests, variants...)
	t.writes++
	return nil
}

func (t *memoryTx) UpsertOverride(_ context.Context, o pricing.Override) error {
	t.overrides[overrideKey(o.ItemID, o.Currency)] = o.PriceMinor
	t.writes++
	return nil
}

var (
	_ pricing.ItemStore      = (*Memory)(nil)
	_ pricing.RateStore      = (*Memory)(nil)
	_ pricing.OverrideStore  = (*Memory)(nil)
	_ pricing.SettingsStore  = (*Memory)(nil)
	_ pricing.PriceTestStore = (*Memory)(nil)
	_ pricing.CouponStore    = (*Memory)(nil)
)
