package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Resolver turns an item's base price into a price in any supported currency.
type Resolver struct {
	items     ItemStore
	overrides OverrideStore
	rates     RateStore
}

// NewResolver wires the stores a resolution reads from.
func NewResolver(items ItemStore, overrides OverrideStore, rates RateStore) *Resolver {
	return &Resolver{items: items, overrides: overrides, rates: rates}
}

// Resolve returns the price of itemID in target, falling back through
// override, base currency, direct FX, USD pivot and finally the base price.
func (r *Resolver) Resolve(ctx context.Context, settings Settings, itemID, target string) (Result, error) {
	return r.resolve(ctx, settings, itemID, target, nil)
}

// ResolveWithBreakdown runs the same resolution and records every intermediate value.
func (r *Resolver) ResolveWithBreakdown(ctx context.Context, settings Settings, itemID, target string) (Result, Breakdown, error) {
	var trace Breakdown
	res, err := r.resolve(ctx, settings, itemID, target, &trace)
	if err != nil {
		return Result{}, Breakdown{}, err
	}
	return res, trace, nil
}

func (r *Resolver) resolve(ctx context.Context, settings Settings, itemID, target string, trace *Breakdown) (Result, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return Result{}, fmt.Errorf("%w: item id is required", ErrInvalidInput)
	}
	settings = settings.Normalized()
	currency, corrected := settings.TargetCurrency(target)

	item, ok, err := r.items.GetItem(ctx, itemID)
	if err != nil {
		return Result{}, fmt.Errorf("load item %s: %w", itemID, err)
	}
	if !ok {
		return Result{}, fmt.Errorf("%w: item %s", ErrNotFound, itemID)
	}
	item.BaseCurrency = NormalizeCode(item.BaseCurrency)

	if trace != nil {
		*trace = Breakdown{
			ItemID:            item.ID,
			RequestedCurrency: target,
			Currency:          currency,
			CurrencyCorrected: corrected,
			BaseCurrency:      item.BaseCurrency,
			BaseAmountMinor:   item.BasePriceMinor,
			Path:              RatePathNone,
			Rate:              decimal.Zero,
		}
	}

	// An override wins even in the item's own base currency.
	override, ok, err := r.overrides.GetOverride(ctx, item.ID, currency)
	if err != nil {
		return Result{}, fmt.Errorf("load override %s/%s: %w", item.ID, currency, err)
	}
	if ok {
		amount := clampMinor(override)
		if trace != nil {
			trace.OverrideMinor = &amount
			trace.RoundedMinor = amount
			trace.Source = SourceOverride
		}
		return Result{ItemID: item.ID, Currency: currency, AmountMinor: amount, Source: SourceOverride}, nil
	}

	if currency == item.BaseCurrency {
		return baseResult(item, settings, trace), nil
	}

	rate, err := r.lookupRate(ctx, item.BaseCurrency, currency, trace)
	if errors.Is(err, errRateUnavailable) {
		if trace != nil {
			trace.FxUnavailable = true
			trace.Currency = item.BaseCurrency
		}
		return baseResult(item, settings, trace), nil
	}
	if err != nil {
		return Result{}, err
	}

	raw := Convert(item.BasePriceMinor, rate)
	buffered := ApplyBuffer(raw, settings.BufferBps)
	rounded := PsychologicalRound(buffered, currency, settings.CNYRoundingMode)
	if trace != nil {
		trace.Rate = rate
		trace.BufferBps = settings.BufferBps
		trace.RawMinor = raw
		trace.BufferedMinor = buffered
		trace.RoundedMinor = rounded
		trace.Source = SourceFX
	}
	return Result{ItemID: item.ID, Currency: currency, AmountMinor: rounded, Source: SourceFX}, nil
}

// baseResult prices the item in its own currency: rounding, no buffer.
func baseResult(item Item, settings Settings, trace *Breakdown) Result {
	raw := clampMinor(item.BasePriceMinor)
	rounded := PsychologicalRound(raw, item.BaseCurrency, settings.CNYRoundingMode)
	if trace != nil {
		trace.RawMinor = raw
		trace.BufferedMinor = raw
		trace.RoundedMinor = rounded
		trace.Source = SourceBase
	}
	return Result{ItemID: item.ID, Currency: item.BaseCurrency, AmountMinor: rounded, Source: SourceBase}
}

// lookupRate finds base→target directly, else through the USD pivot.
// Each quote row is read at most once.
func (r *Resolver) lookupRate(ctx context.Context, base, target string, trace *Breakdown) (decimal.Decimal, error) {
	direct, ok, err := r.rates.GetQuote(ctx, base)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load quote %s: %w", base, err)
	}
	if ok {
		if rate, found := direct.Rate(target); found {
			if trace != nil {
				trace.Path = RatePathDirect
				updated := direct.UpdatedAt
				trace.QuoteUpdatedAt = &updated
			}
			return rate, nil
		}
	}

	pivot := direct
	if base != PivotCurrency {
		pivot, ok, err = r.rates.GetQuote(ctx, PivotCurrency)
		if err != nil {
			return decimal.Zero, fmt.Errorf("load quote %s: %w", PivotCurrency, err)
		}
	}
	if !ok {
		return decimal.Zero, errRateUnavailable
	}

	toTarget, okTarget := pivotLeg(pivot, target)
	toBase, okBase := pivotLeg(pivot, base)
	if !okTarget || !okBase {
		return decimal.Zero, errRateUnavailable
	}

	if trace != nil {
		trace.Path = RatePathPivot
		trace.PivotCurrency = PivotCurrency
		updated := pivot.UpdatedAt
		trace.QuoteUpdatedAt = &updated
	}
	return toTarget.Div(toBase), nil
}

// pivotLeg returns the pivot→code rate; the pivot to itself is 1.
func pivotLeg(pivot Quote, code string) (decimal.Decimal, bool) {
	if code == PivotCurrency {
		return decimal.NewFromInt(1), true
	}
	return pivot.Rate(code)
}

func clampMinor(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// QuoteAge reports how old a quote is relative to now.
func QuoteAge(q Quote, now time.Time) time.Duration {
	if q.UpdatedAt.IsZero() {
		return 0
	}
	return now.Sub(q.UpdatedAt)
}
