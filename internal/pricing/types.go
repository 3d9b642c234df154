package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemKind distinguishes the catalog a priceable item belongs to.
type ItemKind string

const (
	KindTicket ItemKind = "ticket"
	KindOffer  ItemKind = "offer"
)

// Item is anything with a base price: a ticket or an offer.
type Item struct {
	ID                string
	Kind              ItemKind
	BaseCurrency      string
	BasePriceMinor    int64
	QuantityRemaining *int64
}

// Source records which branch of the resolution produced a price.
type Source string

const (
	SourceOverride Source = "override"
	SourceBase     Source = "base"
	SourceFX       Source = "fx"
)

// Result is a resolved price. The amount is both displayed and charged.
type Result struct {
	ItemID      string `json:"item_id"`
	Currency    string `json:"currency"`
	AmountMinor int64  `json:"amount_minor_units"`
	Source      Source `json:"source"`
}

// RatePath describes how an FX rate was obtained.
type RatePath string

const (
	RatePathNone   RatePath = "none"
	RatePathDirect RatePath = "direct"
	RatePathPivot  RatePath = "pivot"
)

// Breakdown carries every intermediate value of a resolution for audit tooling.
type Breakdown struct {
	ItemID            string          `json:"item_id"`
	RequestedCurrency string          `json:"requested_currency"`
	Currency          string          `json:"currency"`
	CurrencyCorrected bool            `json:"currency_corrected"`
	BaseCurrency      string          `json:"base_currency"`
	BaseAmountMinor   int64           `json:"base_amount_minor_units"`
	OverrideMinor     *int64          `json:"override_minor_units,omitempty"`
	Path              RatePath        `json:"rate_path"`
	PivotCurrency     string          `json:"pivot_currency,omitempty"`
	Rate              decimal.Decimal `json:"rate"`
	QuoteUpdatedAt    *time.Time      `json:"quote_updated_at,omitempty"`
	FxUnavailable     bool            `json:"fx_unavailable"`
	BufferBps         int64           `json:"buffer_bps"`
	RawMinor          int64           `json:"raw_minor_units"`
	BufferedMinor     int64           `json:"buffered_minor_units"`
	RoundedMinor      int64           `json:"rounded_minor_units"`
	Source            Source          `json:"source"`
}

// Override is an admin-set price that bypasses FX computation.
type Override struct {
	ItemID     string
	Currency   string
	PriceMinor int64
}

// Quote is one row of the FX table: rates from Base to each target currency.
type Quote struct {
	Base      string
	Rates     map[string]decimal.Decimal
	UpdatedAt time.Time
}

// Rate returns the positive rate for target, if any.
func (q Quote) Rate(target string) (decimal.Decimal, bool) {
	rate, ok := q.Rates[target]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, false
	}
	return rate, true
}

// PriceTest is one variant row of an A/B price test.
type PriceTest struct {
	ID         string     `json:"id"`
	ItemID     string     `json:"item_id"`
	Region     string     `json:"region"`
	Variant    string     `json:"variant"`
	Currency   string     `json:"currency"`
	PriceMinor int64      `json:"price_minor_units"`
	IsActive   bool       `json:"is_active"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// VariantStat is a row of the externally computed conversion ranking.
type VariantStat struct {
	ItemID         string          `json:"item_id"`
	Region         string          `json:"region"`
	Variant        string          `json:"variant"`
	Currency       string          `json:"currency"`
	PriceMinor     int64           `json:"price_minor_units"`
	Impressions    int64           `json:"impressions"`
	Conversions    int64           `json:"conversions"`
	ConversionRate decimal.Decimal `json:"conversion_rate"`
	RevenueMinor   int64           `json:"revenue_minor_units"`
}
