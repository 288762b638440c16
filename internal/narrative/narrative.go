// Package narrative turns indicator results into structured commentary and
// prose. Build is pure; Format only assembles text.
package narrative

import (
	"fmt"
	"math"

	"CryptoLens/internal/indicator"
	"CryptoLens/internal/model"
	"CryptoLens/internal/strategy"
)

// Confidence label thresholds applied to trend strength.
const (
	HighConfidence   = 0.7
	MediumConfidence = 0.4

	// bandProximity marks a close within this fraction of a band.
	bandProximity = 0.01
)

// Narrative is the structured summary of one analysis.
type Narrative struct {
	Pair            model.AssetPair      `json:"pair"`
	Timeframe       model.Timeframe      `json:"timeframe"`
	Sentiment       model.Trend          `json:"sentiment"`
	Confidence      float64              `json:"confidence"`
	ConfidenceLabel string               `json:"confidence_label"`
	Recommendation  model.Recommendation `json:"recommendation"`
	Observations    []string             `json:"observations"`
	Outlook         string               `json:"outlook"`
}

// ConfidenceLabel maps a strength score to high, medium or low.
func ConfidenceLabel(strength float64) string {
	switch {
	case strength > HighConfidence:
		return "high"
	case strength > MediumConfidence:
		return "medium"
	default:
		return "low"
	}
}

// Build derives the narrative fields from r.
func Build(pair model.AssetPair, tf model.Timeframe, r model.IndicatorResult) Narrative {
	n := Narrative{
		Pair:            pair,
		Timeframe:       tf,
		Sentiment:       r.Trend,
		Confidence:      r.TrendStrength,
		ConfidenceLabel: ConfidenceLabel(r.TrendStrength),
		Recommendation:  r.Recommendation,
	}
	n.Observations = observations(r)
	n.Outlook = outlook(r)
	return n
}

func observations(r model.IndicatorResult) []string {
	var obs []string

	switch {
	case !r.RSIReady:
		obs = append(obs, "Not enough bars for RSI(14); momentum is treated as neutral.")
	case r.Overbought:
		obs = append(obs, fmt.Sprintf("RSI at %.1f is overbought (above %.0f).", r.RSI, strategy.OverboughtRSI))
	case r.Oversold:
		obs = append(obs, fmt.Sprintf("RSI at %.1f is oversold (below %.0f).", r.RSI, strategy.OversoldRSI))
	default:
		obs = append(obs, fmt.Sprintf("RSI at %.1f is in the neutral zone.", r.RSI))
	}

	if r.TrendReady {
		side := "above"
		if r.Price < r.MA20 {
			side = "below"
		}
		obs = append(obs, fmt.Sprintf("Price %s trades %s MA20 (%s); MA20 vs MA50 reads %s.",
			FormatPrice(r.Price), side, FormatPrice(r.MA20), r.Trend))
		if r.UpperBand > 0 && r.Price >= r.UpperBand*(1-bandProximity) {
			obs = append(obs, fmt.Sprintf("Price is pressing the upper band at %s.", FormatPrice(r.UpperBand)))
		} else if r.LowerBand > 0 && r.Price <= r.LowerBand*(1+bandProximity) {
			obs = append(obs, fmt.Sprintf("Price is pressing the lower band at %s.", FormatPrice(r.LowerBand)))
		}
	} else {
		obs = append(obs, "Not enough bars for MA20/MA50; trend is reported as neutral.")
	}

	if r.Price > 0 && r.NearSupport > 0 && r.NearResistance > 0 {
		obs = append(obs, fmt.Sprintf("Nearest support %s (%.1f%% below), nearest resistance %s (%.1f%% above).",
			FormatPrice(r.NearSupport), pctDistance(r.Price, r.NearSupport),
			FormatPrice(r.NearResistance), pctDistance(r.NearResistance, r.Price)))
		pos := indicator.RangePosition(r.Price, r.NearSupport, r.NearResistance)
		obs = append(obs, fmt.Sprintf("Price sits %.0f%% of the way from support to resistance.", pos*100))
	}

	if r.Liquidity == model.LiquidityHigh {
		obs = append(obs, "Latest volume is more than 1.5x its 20-bar average.")
	}
	if r.MomentumUp {
		obs = append(obs, "RSI rose more than 5 points over the last 5 bars.")
	} else if r.MomentumDown {
		obs = append(obs, "RSI fell more than 5 points over the last 5 bars.")
	}
	return obs
}

func pctDistance(hi, lo float64) float64 {
	if lo == 0 {
		return 0
	}
	return math.Abs(hi-lo) / lo * 100
}

func outlook(r model.IndicatorResult) string {
	switch r.Recommendation {
	case model.RecBuy:
		if r.Oversold {
			return fmt.Sprintf("Oversold conditions favour a rebound toward %s; a break below %s invalidates it.",
				FormatPrice(r.NearResistance), FormatPrice(r.StrongSupport))
		}
		return fmt.Sprintf("The uptrend is intact above MA20; watch %s as the next hurdle.", FormatPrice(r.NearResistance))
	case model.RecSell:
		if r.Overbought {
			return fmt.Sprintf("Overbought conditions favour a pullback toward %s; a close above %s invalidates it.",
				FormatPrice(r.NearSupport), FormatPrice(r.StrongResistance))
		}
		return fmt.Sprintf("The downtrend is intact below MA20; %s is the next support to watch.", FormatPrice(r.NearSupport))
	default:
		return fmt.Sprintf("No clear edge; range between %s and %s until a side breaks.",
			FormatPrice(r.NearSupport), FormatPrice(r.NearResistance))
	}
}

// FormatPrice prints a price with precision suited to its magnitude.
func FormatPrice(p float64) string {
	a := math.Abs(p)
	switch {
	case a >= 1:
		return fmt.Sprintf("$%.2f", p)
	case a >= 0.01:
		return fmt.Sprintf("$%.4f", p)
	default:
		return fmt.Sprintf("$%.8f", p)
	}
}
