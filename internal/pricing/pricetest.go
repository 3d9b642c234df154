package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Variant labels of a price test batch, low to high.
const (
	VariantLow  = "A"
	VariantMid  = "B"
	VariantHigh = "C"
)

// ProposeRequest seeds a new A/B/C batch around a suggested price.
type ProposeRequest struct {
	ItemID              string
	Region              string
	Currency            string
	BaseSuggestionMinor int64
	SpreadPct           float64
}

// VariantSet is the batch created by ProposeVariants.
type VariantSet struct {
	Low         PriceTest `json:"low"`
	Mid         PriceTest `json:"mid"`
	High        PriceTest `json:"high"`
	Deactivated int64     `json:"deactivated"`
}

// AdoptResult is the winning variant and how many variants were ended.
type AdoptResult struct {
	Winner      VariantStat `json:"winning_variant"`
	Deactivated int64       `json:"deactivated"`
}

// TestManager runs the price test lifecycle for (item, region) keys:
// no test → active batch → ended. Ended rows are never reactivated.
type TestManager struct {
	store PriceTestStore
	now   func() time.Time
	newID func() string
}

// NewTestManager builds a manager over store.
func NewTestManager(store PriceTestStore) *TestManager {
	return &TestManager{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// WithClock overrides the time source.
func (m *TestManager) WithClock(now func() time.Time) *TestManager {
	m.now = now
	return m
}

// ProposeVariants ends any active batch for the key, inserts three new
// active variants and upserts an override at the suggested price.
func (m *TestManager) ProposeVariants(ctx context.Context, req ProposeRequest) (VariantSet, error) {
	req.ItemID = strings.TrimSpace(req.ItemID)
	req.Region = NormalizeRegion(req.Region)
	req.Currency = NormalizeCode(req.Currency)
	if err := req.validate(); err != nil {
		return VariantSet{}, err
	}

	now := m.now()
	low, mid, high := SpreadPrices(req.BaseSuggestionMinor, req.SpreadPct)
	set := VariantSet{
		Low:  m.newVariant(req, VariantLow, low, now),
		Mid:  m.newVariant(req, VariantMid, mid, now),
		High: m.newVariant(req, VariantHigh, high, now),
	}

	err := m.store.WithinTx(ctx, req.ItemID, req.Region, func(tx PriceTestTx) error {
		ended, err := tx.DeactivateActive(ctx, req.ItemID, req.Region, now)
		if err != nil {
			return fmt.Errorf("deactivate variants: %w", err)
		}
		set.Deactivated = ended

		if err := tx.InsertVariants(ctx, []PriceTest{set.Low, set.Mid, set.High}); err != nil {
			return fmt.Errorf("insert variants: %w", err)
		}

		override := Override{ItemID: req.ItemID, Currency: req.Currency, PriceMinor: req.BaseSuggestionMinor}
		if err := tx.UpsertOverride(ctx, override); err != nil {
			return fmt.Errorf("upsert override: %w", err)
		}
		return nil
	})
	if err != nil {
		return VariantSet{}, err
	}
	return set, nil
}

// AdoptWinner writes the best converting variant as a permanent override and
// ends the active batch. It performs no writes when there are no stats.
func (m *TestManager) AdoptWinner(ctx context.Context, itemID, region string) (AdoptResult, error) {
	itemID = strings.TrimSpace(itemID)
	region = NormalizeRegion(region)
	if itemID == "" || region == "" {
		return AdoptResult{}, fmt.Errorf("%w: item id and region are required", ErrInvalidInput)
	}

	var result AdoptResult
	err := m.store.WithinTx(ctx, itemID, region, func(tx PriceTestTx) error {
		top, ok, err := tx.TopVariant(ctx, itemID, region)
		if err != nil {
			return fmt.Errorf("load top variant: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: %s/%s", ErrNoResults, itemID, region)
		}

		override := Override{ItemID: itemID, Currency: NormalizeCode(top.Currency), PriceMinor: clampMinor(top.PriceMinor)}
		if err := tx.UpsertOverride(ctx, override); err != nil {
			return fmt.Errorf("upsert override: %w", err)
		}

		ended, err := tx.DeactivateActive(ctx, itemID, region, m.now())
		if err != nil {
			return fmt.Errorf("deactivate variants: %w", err)
		}
		result = AdoptResult{Winner: top, Deactivated: ended}
		return nil
	})
	if err != nil {
		return AdoptResult{}, err
	}
	return result, nil
}

// ListTests returns the variants for a key, newest first.
func (m *TestManager) ListTests(ctx context.Context, itemID, region string, includeEnded bool) ([]PriceTest, error) {
	return m.store.ListTests(ctx, strings.TrimSpace(itemID), NormalizeRegion(region), includeEnded)
}

func (m *TestManager) newVariant(req ProposeRequest, variant string, price int64, now time.Time) PriceTest {
	return PriceTest{
		ID:         m.newID(),
		ItemID:     req.ItemID,
		Region:     req.Region,
		Variant:    variant,
		Currency:   req.Currency,
		PriceMinor: price,
		IsActive:   true,
		StartedAt:  now,
	}
}

// SpreadPrices returns base*(1-spread), base, base*(1+spread) in whole minor units.
func SpreadPrices(baseMinor int64, spread float64) (low, mid, high int64) {
	base := decimal.NewFromInt(baseMinor)
	s := decimal.NewFromFloat(spread)
	one := decimal.NewFromInt(1)
	low = roundMinor(base.Mul(one.Sub(s)))
	mid = clampMinor(baseMinor)
	high = roundMinor(base.Mul(one.Add(s)))
	return low, mid, high
}

// NormalizeRegion upper-cases a region code.
func NormalizeRegion(region string) string {
	return strings.ToUpper(strings.TrimSpace(region))
}

func (r ProposeRequest) validate() error {
	switch {
	case r.ItemID == "":
		return fmt.Errorf("%w: item id is required", ErrInvalidInput)
	case r.Region == "":
		return fmt.Errorf("%w: region is required", ErrInvalidInput)
	case len(r.Currency) != 3:
		return fmt.Errorf("%w: currency %q is not an ISO 4217 code", ErrInvalidInput, r.Currency)
	case r.BaseSuggestionMinor < 0:
		return fmt.Errorf("%w: base suggestion cannot be negative", ErrInvalidInput)
	case r.SpreadPct < 0 || r.SpreadPct > 1:
		return fmt.Errorf("%w: spread must be within [0,1]", ErrInvalidInput)
	}
	return nil
}
