package strategy

import "CryptoLens/internal/model"

// Confidence of a single timeframe view.
const (
	AlignedConfidence   = 0.8
	UnalignedConfidence = 0.5
)

// StrengthTiers maps a consensus score to a label.
var StrengthTiers = []struct {
	MinScore float64
	Strength model.ConsensusStrength
}{
	{75, model.ConsensusStrong},
	{50, model.ConsensusMedium},
}

func mapStrength(score float64) model.ConsensusStrength {
	for _, t := range StrengthTiers {
		if score >= t.MinScore {
			return t.Strength
		}
	}
	return model.ConsensusWeak
}

// View summarizes one timeframe. A view is aligned when the trend and
// momentum halves of the decision table agree.
func View(tf model.Timeframe, r model.IndicatorResult) model.TimeframeView {
	aligned := r.TrendSignal == r.MomentumSignal
	conf := UnalignedConfidence
	if aligned {
		conf = AlignedConfidence
	}
	return model.TimeframeView{
		Timeframe:      tf,
		Trend:          r.Trend,
		TrendStrength:  r.TrendStrength,
		RSI:            r.RSI,
		Recommendation: r.Recommendation,
		Confidence:     conf,
		Aligned:        aligned,
	}
}

// Consensus scores how many views share the majority trend. Ties resolve
// to bearish.
func Consensus(views []model.TimeframeView) model.Consensus {
	c := model.Consensus{Direction: model.TrendNeutral, Strength: model.ConsensusWeak, Views: views}
	if len(views) == 0 {
		return c
	}

	var bullish, bearish int
	for _, v := range views {
		switch v.Trend {
		case model.TrendBullish:
			bullish++
		case model.TrendBearish:
			bearish++
		}
	}

	count := bearish
	c.Direction = model.TrendBearish
	if bullish > bearish {
		count = bullish
		c.Direction = model.TrendBullish
	}
	c.Score = float64(count) / float64(len(views)) * 100
	c.Strength = mapStrength(c.Score)
	for _, v := range views {
		if v.Trend == c.Direction {
			c.Aligned = append(c.Aligned, v.Timeframe)
		}
	}
	return c
}
