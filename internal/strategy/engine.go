package strategy

import "CryptoLens/internal/model"

// RSI boundaries of the decision table.
const (
	OversoldRSI   = 30.0
	OverboughtRSI = 70.0
)

// MomentumSignal is the RSI half of the table: buy below OversoldRSI, sell
// above OverboughtRSI.
func MomentumSignal(rsi float64) model.Recommendation {
	switch {
	case rsi < OversoldRSI:
		return model.RecBuy
	case rsi > OverboughtRSI:
		return model.RecSell
	default:
		return model.RecNeutral
	}
}

// TrendSignal is the trend half: buy when a bullish trend trades above MA20,
// sell when a bearish trend trades below it.
func TrendSignal(trend model.Trend, close, ma20 float64) model.Recommendation {
	switch {
	case trend == model.TrendBullish && close > ma20:
		return model.RecBuy
	case trend == model.TrendBearish && close < ma20:
		return model.RecSell
	default:
		return model.RecNeutral
	}
}

// Recommend applies the decision table. RSI extremes win over the trend.
func Recommend(trend model.Trend, close, ma20, rsi float64) model.Recommendation {
	if m := MomentumSignal(rsi); m != model.RecNeutral {
		return m
	}
	return TrendSignal(trend, close, ma20)
}
