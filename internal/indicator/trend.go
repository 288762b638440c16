package indicator

import "CryptoLens/internal/model"

// Trend strength clamps. They are heuristic confidence bounds, not
// calibrated probabilities.
const (
	BullishStrengthMin = 0.5
	BullishStrengthMax = 0.9
	BearishStrengthMin = 0.3
	BearishStrengthMax = 0.7
	DefaultStrength    = 0.5
)

// ClassifyTrend is bullish when the short average is above the long one.
func ClassifyTrend(ma20, ma50 float64) model.Trend {
	if ma20 > ma50 {
		return model.TrendBullish
	}
	return model.TrendBearish
}

// TrendStrength maps close/MA20 into the direction's clamp range. Bearish
// mirrors the ratio around 1 so that a deeper discount lowers the score.
func TrendStrength(trend model.Trend, close, ma20 float64) float64 {
	if ma20 <= 0 {
		return DefaultStrength
	}
	ratio := close / ma20
	switch trend {
	case model.TrendBullish:
		return clamp(ratio, BullishStrengthMin, BullishStrengthMax)
	case model.TrendBearish:
		return clamp(1-(1-ratio)*2, BearishStrengthMin, BearishStrengthMax)
	}
	return DefaultStrength
}
