package pricing

import "github.com/shopspring/decimal"

// MinorPerMajor is the number of minor units in one major unit. Every
// supported currency is priced in hundredths.
const MinorPerMajor = 100

var (
	bpsDenominator = decimal.NewFromInt(10_000)
	hundred        = decimal.NewFromInt(100)
)

// roundMinor rounds to the nearest minor unit, half away from zero, floored at zero.
func roundMinor(v decimal.Decimal) int64 {
	rounded := v.Round(0).IntPart()
	if rounded < 0 {
		return 0
	}
	return rounded
}

// Convert multiplies a minor-unit amount by an FX rate.
func Convert(amountMinor int64, rate decimal.Decimal) int64 {
	return roundMinor(decimal.NewFromInt(amountMinor).Mul(rate))
}

// ApplyBuffer adds a margin of bufferBps basis points.
func ApplyBuffer(amountMinor, bufferBps int64) int64 {
	factor := bpsDenominator.Add(decimal.NewFromInt(bufferBps)).Div(bpsDenominator)
	return roundMinor(decimal.NewFromInt(amountMinor).Mul(factor))
}

// PsychologicalRound rounds up to the next whole major unit and, except for
// CNY in yuan mode, drops one minor unit so the price ends in .99.
func PsychologicalRound(amountMinor int64, currency string, mode RoundingMode) int64 {
	if amountMinor < 0 {
		amountMinor = 0
	}
	whole := (amountMinor + MinorPerMajor - 1) / MinorPerMajor * MinorPerMajor
	if NormalizeCode(currency) == "CNY" && mode != RoundingFen99 {
		return whole
	}
	if whole-1 < 0 {
		return 0
	}
	return whole - 1
}
