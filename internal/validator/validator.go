// Package validator rejects price series whose latest close is implausible
// for the asset.
package validator

import (
	"log"
	"math"

	"CryptoLens/internal/model"
)

// Extended range multipliers applied to the nominal range. Hard-coded ranges
// age quickly, so only the extended range rejects.
const (
	ExtendedLow  = 0.5
	ExtendedHigh = 2.0

	// DefaultCeiling bounds assets without a registered range.
	DefaultCeiling = 1_000_000.0
)

// Range is an inclusive nominal USD price range.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Extended returns the accept/reject boundary.
func (r Range) Extended() Range {
	return Range{Min: r.Min * ExtendedLow, Max: r.Max * ExtendedHigh}
}

func (r Range) contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// DefaultRanges returns the built-in nominal ranges keyed by base asset.
func DefaultRanges() map[string]Range {
	return map[string]Range{
		"BTC":  {Min: 25000, Max: 150000},
		"ETH":  {Min: 1000, Max: 10000},
		"SOL":  {Min: 50, Max: 500},
		"BNB":  {Min: 200, Max: 1500},
		"XRP":  {Min: 0.2, Max: 3.0},
		"ADA":  {Min: 0.2, Max: 2.0},
		"DOGE": {Min: 0.05, Max: 0.5},
		"SHIB": {Min: 0.000005, Max: 0.0001},
	}
}

// Validator holds the range table. The zero value uses no ranges, so every
// asset falls back to the loose sanity bound.
type Validator struct {
	ranges map[string]Range
}

// New builds a validator from the defaults with overrides applied on top.
func New(overrides map[string]Range) *Validator {
	ranges := DefaultRanges()
	for base, r := range overrides {
		ranges[base] = r
	}
	return &Validator{ranges: ranges}
}

// Range returns the nominal range registered for base.
func (v *Validator) Range(base string) (Range, bool) {
	r, ok := v.ranges[base]
	return r, ok
}

// IsReasonable reports whether the latest close of series is plausible for
// base. Ranges are USD bounds; pairs quoted in anything else only get the
// sanity check.
func (v *Validator) IsReasonable(series *model.PriceSeries, base string) bool {
	last, ok := series.Latest()
	if !ok {
		return false
	}
	price := last.Close
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return false
	}

	r, known := v.ranges[base]
	if !known || !series.Pair.QuoteIsUSD() {
		return price > 0 && price < DefaultCeiling
	}
	if !r.Extended().contains(price) {
		return false
	}
	if !r.contains(price) {
		log.Printf("[WARN] validator: %s price %.8g outside nominal range [%g, %g], within extended range",
			base, price, r.Min, r.Max)
	}
	return true
}
