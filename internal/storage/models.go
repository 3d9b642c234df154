package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ticket-pricing/internal/pricing"
)

// quoteRow mirrors a currency_rates row before the JSONB rates are decoded.
type quoteRow struct {
	Base      string
	Rates     []byte
	UpdatedAt time.Time
}

// toQuote decodes the rates document. Each entry is parsed on its own so the
// NUMERIC precision survives into decimal. Null or non-numeric entries are
// skipped and later read as missing rates; only a document that is not an
// object fails the row.
func (r quoteRow) toQuote() (pricing.Quote, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(r.Rates, &raw); err != nil {
		return pricing.Quote{}, fmt.Errorf("decode rates for %s: %w", r.Base, err)
	}

	quote := pricing.Quote{
		Base:      pricing.NormalizeCode(r.Base),
		Rates:     make(map[string]decimal.Decimal, len(raw)),
		UpdatedAt: r.UpdatedAt,
	}
	for target, value := range raw {
		if rate, ok := parseRate(value); ok {
			quote.Rates[pricing.NormalizeCode(target)] = rate
		}
	}
	return quote, nil
}

// parseRate accepts a JSON number or a numeric string.
func parseRate(value json.RawMessage) (decimal.Decimal, bool) {
	text := strings.TrimSpace(string(value))
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return decimal.Zero, false
		}
		text = strings.TrimSpace(s)
	}
	if text == "" || text == "null" {
		return decimal.Zero, false
	}
	rate, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, false
	}
	return rate, true
}
