package model

import "time"

type Trend string

const (
	TrendBullish Trend = "bullish"
	TrendBearish Trend = "bearish"
	// TrendNeutral only appears in the default result for short series.
	TrendNeutral Trend = "neutral"
)

type Recommendation string

const (
	RecBuy     Recommendation = "buy"
	RecSell    Recommendation = "sell"
	RecNeutral Recommendation = "neutral"
)

type Liquidity string

const (
	LiquidityHigh   Liquidity = "high"
	LiquidityNormal Liquidity = "normal"
)

// IndicatorResult is the snapshot computed from the latest bar of a series.
type IndicatorResult struct {
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
	Bars      int       `json:"bars"`

	MA20      float64 `json:"ma20"`
	MA50      float64 `json:"ma50"`
	UpperBand float64 `json:"upper_band"`
	LowerBand float64 `json:"lower_band"`

	Trend         Trend     `json:"trend"`
	TrendStrength float64   `json:"trend_strength"`
	Liquidity     Liquidity `json:"liquidity"`
	KeySupport    float64   `json:"key_support"`
	KeyResistance float64   `json:"key_resistance"`

	RSI          float64 `json:"rsi"`
	Overbought   bool    `json:"overbought"`
	Oversold     bool    `json:"oversold"`
	MomentumUp   bool    `json:"momentum_up"`
	MomentumDown bool    `json:"momentum_down"`

	ATR                float64   `json:"atr"`
	NearSupport        float64   `json:"near_support"`
	StrongSupport      float64   `json:"strong_support"`
	NearResistance     float64   `json:"near_resistance"`
	StrongResistance   float64   `json:"strong_resistance"`
	SupportStrength    float64   `json:"support_strength"`
	ResistanceStrength float64   `json:"resistance_strength"`
	SupportLevels      []float64 `json:"support_levels"`
	ResistanceLevels   []float64 `json:"resistance_levels"`

	TrendSignal    Recommendation `json:"trend_signal"`
	MomentumSignal Recommendation `json:"momentum_signal"`
	Recommendation Recommendation `json:"recommendation"`

	// TrendReady and RSIReady are false when the series was too short and
	// the corresponding fields hold defaults.
	TrendReady bool `json:"trend_ready"`
	RSIReady   bool `json:"rsi_ready"`
}
