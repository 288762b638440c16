// Package indicator derives an IndicatorResult from a validated price series.
// Every function here is total: short series degrade to documented defaults
// instead of failing.
package indicator

import (
	"CryptoLens/internal/model"
	"CryptoLens/internal/strategy"
)

const (
	ShortWindow = 20
	LongWindow  = 50
	BandK       = 2.0
	RSIPeriod   = 14

	// MinTrendBars and MinLevelBars gate the trend and support/resistance
	// sections.
	MinTrendBars = ShortWindow
	MinLevelBars = RSIPeriod

	MomentumLookback  = 5
	MomentumThreshold = 5.0
	LiquidityMultiple = 1.5

	KeySupportFactor    = 0.97
	KeyResistanceFactor = 1.03

	// Fallback level offsets when no levels can be computed.
	DefaultLevelOffset = 0.05
)

// Analyze computes the indicator snapshot for the latest bar of series.
func Analyze(series *model.PriceSeries) model.IndicatorResult {
	r := model.IndicatorResult{
		Trend:          model.TrendNeutral,
		TrendStrength:  DefaultStrength,
		Liquidity:      model.LiquidityNormal,
		RSI:            NeutralRSI,
		TrendSignal:    model.RecNeutral,
		MomentumSignal: model.RecNeutral,
		Recommendation: model.RecNeutral,
	}
	last, ok := series.Latest()
	if !ok {
		return r
	}
	r.Price = last.Close
	r.Timestamp = last.Timestamp
	r.Bars = series.Len()

	closes := series.Closes()
	analyzeMomentum(&r, closes)
	analyzeLevels(&r, series)
	analyzeTrend(&r, series, closes)

	r.MomentumSignal = strategy.MomentumSignal(r.RSI)
	if r.TrendReady {
		r.TrendSignal = strategy.TrendSignal(r.Trend, r.Price, r.MA20)
	}
	r.Recommendation = strategy.Recommend(r.Trend, r.Price, r.MA20, r.RSI)
	return r
}

func analyzeMomentum(r *model.IndicatorResult, closes []float64) {
	if len(closes) < RSIPeriod+1 {
		return
	}
	rsi := RSISeries(closes, RSIPeriod)
	n := len(rsi)
	r.RSI = rsi[n-1]
	r.RSIReady = true
	r.Overbought = r.RSI > strategy.OverboughtRSI
	r.Oversold = r.RSI < strategy.OversoldRSI

	if n > MomentumLookback {
		change := rsi[n-1] - rsi[n-1-MomentumLookback]
		r.MomentumUp = change > MomentumThreshold
		r.MomentumDown = change < -MomentumThreshold
	}
}

func analyzeLevels(r *model.IndicatorResult, series *model.PriceSeries) {
	price := r.Price
	if series.Len() < MinLevelBars {
		r.NearResistance = price * (1 + DefaultLevelOffset)
		r.StrongResistance = r.NearResistance * (1 + DefaultLevelOffset)
		r.NearSupport = price * (1 - DefaultLevelOffset)
		r.StrongSupport = r.NearSupport * (1 - DefaultLevelOffset)
		r.SupportStrength, r.ResistanceStrength = 1, 1
		return
	}

	lv := FindLevels(series.Highs(), series.Lows(), series.Volumes(), price)
	r.ATR = lv.ATR
	r.NearResistance, r.StrongResistance = nearest(lv.Resistance, price*(1+DefaultLevelOffset), 1+DefaultLevelOffset)
	r.NearSupport, r.StrongSupport = nearest(lv.Support, price*(1-DefaultLevelOffset), 1-DefaultLevelOffset)
	r.ResistanceStrength = Strength(lv.Resistance)
	r.SupportStrength = Strength(lv.Support)
	r.ResistanceLevels = Prices(lv.Resistance, MaxLevels)
	r.SupportLevels = Prices(lv.Support, MaxLevels)
}

// nearest returns the first two levels, deriving missing ones from fallback.
func nearest(levels []Level, fallback, step float64) (near, strong float64) {
	near = fallback
	if len(levels) > 0 {
		near = levels[0].Price
	}
	strong = near * step
	if len(levels) > 1 {
		strong = levels[1].Price
	}
	return near, strong
}

func analyzeTrend(r *model.IndicatorResult, series *model.PriceSeries, closes []float64) {
	if len(closes) < MinTrendBars {
		return
	}
	r.TrendReady = true
	r.MA20, _ = SMA(closes, ShortWindow)
	ma50, longReady := SMA(closes, LongWindow)
	r.MA50 = ma50
	if bands, ok := Bollinger(closes, ShortWindow, BandK); ok {
		r.UpperBand, r.LowerBand = bands.Upper, bands.Lower
	}
	// Without a full long window there is no crossover to read.
	r.Trend = model.TrendBearish
	if longReady {
		r.Trend = ClassifyTrend(r.MA20, r.MA50)
	}
	r.TrendStrength = TrendStrength(r.Trend, r.Price, r.MA20)
	r.KeySupport = r.LowerBand * KeySupportFactor
	r.KeyResistance = r.UpperBand * KeyResistanceFactor

	volumes := series.Volumes()
	if volMA, ok := SMA(volumes, ShortWindow); ok && volumes[len(volumes)-1] > volMA*LiquidityMultiple {
		r.Liquidity = model.LiquidityHigh
	}
}
