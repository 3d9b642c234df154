package pricing

import (
	"fmt"
	"strings"
)

const (
	// DefaultCurrency is used when a caller asks for no particular currency.
	DefaultCurrency = "USD"
	// PivotCurrency derives cross rates when no direct quote exists.
	PivotCurrency = "USD"
)

// RoundingMode selects how CNY prices end.
type RoundingMode string

const (
	// RoundingYuan keeps CNY prices on whole yuan (¥x.00).
	RoundingYuan RoundingMode = "yuan"
	// RoundingFen99 ends CNY prices in .99 like every other currency.
	RoundingFen99 RoundingMode = "fen99"
)

// ParseRoundingMode validates a CNY rounding mode string.
func ParseRoundingMode(v string) (RoundingMode, error) {
	switch RoundingMode(strings.ToLower(strings.TrimSpace(v))) {
	case RoundingYuan:
		return RoundingYuan, nil
	case RoundingFen99:
		return RoundingFen99, nil
	default:
		return "", fmt.Errorf("%w: unknown cny rounding mode %q", ErrInvalidInput, v)
	}
}

// Settings is a snapshot of the global pricing configuration.
type Settings struct {
	SupportedCurrencies []string     `json:"supported_currencies"`
	BufferBps           int64        `json:"buffer_bps"`
	CNYRoundingMode     RoundingMode `json:"cny_rounding_mode"`
}

// Validate checks the snapshot is usable for resolution.
func (s Settings) Validate() error {
	if s.BufferBps < 0 {
		return fmt.Errorf("%w: buffer_bps cannot be negative", ErrInvalidInput)
	}
	if _, err := ParseRoundingMode(string(s.CNYRoundingMode)); err != nil {
		return err
	}
	for _, code := range s.SupportedCurrencies {
		if len(strings.TrimSpace(code)) != 3 {
			return fmt.Errorf("%w: currency %q is not an ISO 4217 code", ErrInvalidInput, code)
		}
	}
	return nil
}

// Normalized returns a copy with upper-cased, de-duplicated currencies.
func (s Settings) Normalized() Settings {
	seen := make(map[string]struct{}, len(s.SupportedCurrencies))
	currencies := make([]string, 0, len(s.SupportedCurrencies))
	for _, code := range s.SupportedCurrencies {
		code = NormalizeCode(code)
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		currencies = append(currencies, code)
	}
	s.SupportedCurrencies = currencies
	if mode, err := ParseRoundingMode(string(s.CNYRoundingMode)); err == nil {
		s.CNYRoundingMode = mode
	}
	return s
}

// Supports reports whether code is in the supported list.
func (s Settings) Supports(code string) bool {
	for _, c := range s.SupportedCurrencies {
		if c == code {
			return true
		}
	}
	return false
}

// TargetCurrency normalizes a requested currency. Unsupported codes are
// silently replaced by the first supported currency; corrected reports it.
func (s Settings) TargetCurrency(requested string) (code string, corrected bool) {
	code = NormalizeCode(requested)
	if code == "" {
		code = DefaultCurrency
	}
	if len(s.SupportedCurrencies) == 0 || s.Supports(code) {
		return code, false
	}
	return s.SupportedCurrencies[0], true
}

// NormalizeCode trims and upper-cases a currency code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
