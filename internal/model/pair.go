package model

import (
	"fmt"
	"strings"
	"time"
)

// AssetPair is a base/quote symbol pair such as BTC/USDT.
type AssetPair struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

// ParsePair accepts "BTC/USDT", "btc-usdt" or "BTC_USDT".
func ParsePair(s string) (AssetPair, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	sep := strings.IndexAny(s, "/-_")
	if sep <= 0 || sep == len(s)-1 {
		return AssetPair{}, fmt.Errorf("invalid pair %q: want BASE/QUOTE", s)
	}
	base, quote := s[:sep], s[sep+1:]
	if strings.ContainsAny(quote, "/-_") {
		return AssetPair{}, fmt.Errorf("invalid pair %q: want BASE/QUOTE", s)
	}
	return AssetPair{Base: base, Quote: quote}, nil
}

func (p AssetPair) String() string {
	return p.Base + "/" + p.Quote
}

// Symbol is the concatenated exchange form, e.g. BTCUSDT.
func (p AssetPair) Symbol() string {
	return p.Base + p.Quote
}

var usdQuotes = map[string]bool{
	"USD": true, "USDT": true, "USDC": true, "BUSD": true,
	"DAI": true, "TUSD": true, "FDUSD": true,
}

// QuoteIsUSD reports whether the quote asset is USD or a USD-pegged stablecoin.
func (p AssetPair) QuoteIsUSD() bool {
	return usdQuotes[p.Quote]
}

// SupportedPairs lists the default dashboard pairs.
func SupportedPairs() []AssetPair {
	bases := []string{"BTC", "ETH", "SOL", "BNB", "XRP", "ADA", "DOGE", "SHIB"}
	out := make([]AssetPair, len(bases))
	for i, b := range bases {
		out[i] = AssetPair{Base: b, Quote: "USDT"}
	}
	return out
}

// Timeframe is the bar interval of a series.
type Timeframe string

const (
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
	TF1w  Timeframe = "1w"
)

var timeframes = []Timeframe{TF15m, TF1h, TF4h, TF1d, TF1w}

// AllTimeframes returns the supported timeframes from finest to coarsest.
func AllTimeframes() []Timeframe {
	out := make([]Timeframe, len(timeframes))
	copy(out, timeframes)
	return out
}

func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range timeframes {
		if tf == known {
			return tf, nil
		}
	}
	return "", fmt.Errorf("unsupported timeframe %q", s)
}

// Duration returns the length of one bar.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF15m:
		return 15 * time.Minute
	case TF1h:
		return time.Hour
	case TF4h:
		return 4 * time.Hour
	case TF1d:
		return 24 * time.Hour
	case TF1w:
		return 7 * 24 * time.Hour
	}
	return 0
}

// Neighbors returns the timeframes used for multi-timeframe analysis:
// the previous, the timeframe itself and up to two coarser ones.
func (tf Timeframe) Neighbors() []Timeframe {
	idx := -1
	for i, known := range timeframes {
		if known == tf {
			idx = i
		}
	}
	if idx < 0 {
		return nil
	}
	lo := idx - 1
	if lo < 0 {
		lo = 0
	}
	hi := idx + 3
	if hi > len(timeframes) {
		hi = len(timeframes)
	}
	return AllTimeframes()[lo:hi]
}
