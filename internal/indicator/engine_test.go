package indicator

import (
	"testing"

	"CryptoLens/internal/model"
)

// uptrend rises by 1 for 90 bars then drops by 3 for 10, pushing RSI below
// 30 while MA20 stays above MA50.
func uptrendWithSelloff() []float64 {
	closes := make([]float64, 0, 100)
	for i := 0; i < 90; i++ {
		closes = append(closes, 100+float64(i))
	}
	for k := 0; k < 10; k++ {
		closes = append(closes, 189-3*float64(k+1))
	}
	return closes
}

func TestAnalyze_OversoldUptrendBuys(t *testing.T) {
	r := Analyze(seriesFromCloses(uptrendWithSelloff()))

	if r.Trend != model.TrendBullish {
		t.Errorf("trend = %s, want bullish (ma20 %.2f ma50 %.2f)", r.Trend, r.MA20, r.MA50)
	}
	if r.RSI >= 30 || !r.Oversold {
		t.Errorf("rsi = %.2f oversold = %v", r.RSI, r.Oversold)
	}
	if r.Recommendation != model.RecBuy {
		t.Errorf("recommendation = %s, want buy", r.Recommendation)
	}
	if !near(r.MA20, 178.5, 1e-9) || !near(r.MA50, 170.1, 1e-9) {
		t.Errorf("ma20 = %v ma50 = %v", r.MA20, r.MA50)
	}
	if !r.MomentumDown || r.MomentumUp {
		t.Errorf("momentum up=%v down=%v", r.MomentumUp, r.MomentumDown)
	}
	if r.TrendSignal != model.RecNeutral || r.MomentumSignal != model.RecBuy {
		t.Errorf("signals trend=%s momentum=%s", r.TrendSignal, r.MomentumSignal)
	}
	if r.Price != 159 || r.Bars != 100 {
		t.Errorf("price %v bars %d", r.Price, r.Bars)
	}
}

func TestAnalyze_LevelsOrdering(t *testing.T) {
	r := Analyze(seriesFromCloses(uptrendWithSelloff()))
	if !(r.NearResistance > r.Price && r.StrongResistance >= r.NearResistance) {
		t.Errorf("resistance near %v strong %v price %v", r.NearResistance, r.StrongResistance, r.Price)
	}
	if !(r.NearSupport < r.Price && r.StrongSupport <= r.NearSupport) {
		t.Errorf("support near %v strong %v price %v", r.NearSupport, r.StrongSupport, r.Price)
	}
	if len(r.ResistanceLevels) > MaxLevels || len(r.SupportLevels) > MaxLevels {
		t.Errorf("too many levels: %d / %d", len(r.ResistanceLevels), len(r.SupportLevels))
	}
	if r.SupportStrength > MaxLevelStrength || r.ResistanceStrength > MaxLevelStrength {
		t.Errorf("strengths %v %v", r.SupportStrength, r.ResistanceStrength)
	}
	if !near(r.KeySupport, r.LowerBand*0.97, 1e-9) || !near(r.KeyResistance, r.UpperBand*1.03, 1e-9) {
		t.Errorf("key levels %v %v", r.KeySupport, r.KeyResistance)
	}
}

func TestAnalyze_ShortSeriesDefaults(t *testing.T) {
	r := Analyze(seriesFromCloses([]float64{10, 11, 12, 13, 14}))
	if r.TrendReady || r.RSIReady {
		t.Fatal("5 bars must not be ready")
	}
	if r.Trend != model.TrendNeutral || r.TrendStrength != DefaultStrength || r.RSI != 50 {
		t.Errorf("defaults: %+v", r)
	}
	if r.Recommendation != model.RecNeutral {
		t.Errorf("recommendation = %s", r.Recommendation)
	}
	if !near(r.NearResistance, 14*1.05, 1e-9) || !near(r.NearSupport, 14*0.95, 1e-9) {
		t.Errorf("default levels %v %v", r.NearResistance, r.NearSupport)
	}
}

func TestAnalyze_RSIReadyBeforeTrend(t *testing.T) {
	closes := make([]float64, 16)
	for i := range closes {
		closes[i] = 100 - float64(i)*2
	}
	r := Analyze(seriesFromCloses(closes))
	if !r.RSIReady || r.TrendReady {
		t.Fatalf("ready flags rsi=%v trend=%v", r.RSIReady, r.TrendReady)
	}
	// all losses: avg gain 0 -> RSI 0 -> oversold buy, trend untouched
	if r.RSI != 0 || r.Recommendation != model.RecBuy || r.Trend != model.TrendNeutral {
		t.Errorf("rsi %v rec %s trend %s", r.RSI, r.Recommendation, r.Trend)
	}
}

func TestAnalyze_PartialLongWindowIsBearish(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	r := Analyze(seriesFromCloses(closes))
	if !r.TrendReady {
		t.Fatal("30 bars should be enough for trend")
	}
	if r.MA50 != 0 {
		t.Errorf("MA50 over 30 bars = %v, want 0", r.MA50)
	}
	if !near(r.MA20, 20.5, 1e-9) {
		t.Errorf("MA20 = %v", r.MA20)
	}
	if r.Trend != model.TrendBearish {
		t.Errorf("trend = %s, want bearish without a full MA50 window", r.Trend)
	}
}

func TestAnalyze_HighLiquidity(t *testing.T) {
	s := seriesFromCloses(uptrendWithSelloff())
	s.Bars[len(s.Bars)-1].Volume = 1000
	if r := Analyze(s); r.Liquidity != model.LiquidityHigh {
		t.Errorf("liquidity = %s", r.Liquidity)
	}
}

func TestAnalyze_Empty(t *testing.T) {
	r := Analyze(&model.PriceSeries{})
	if r.Recommendation != model.RecNeutral || r.Bars != 0 {
		t.Errorf("empty: %+v", r)
	}
}
