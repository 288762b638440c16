package recorder

import (
	"time"

	"github.com/google/uuid"

	"CryptoLens/internal/model"
)

// AnalysisRecord is one persisted analysis run.
type AnalysisRecord struct {
	RunID             string
	CreatedAt         time.Time
	Pair              string
	Timeframe         string
	Source            string
	Bars              int
	Price             float64
	MA20              float64
	MA50              float64
	RSI               float64
	Trend             string
	TrendStrength     float64
	Support           float64
	Resistance        float64
	Recommendation    string
	NarrativeFallback bool
}

// NewAnalysisRecord flattens a result under a fresh run id.
func NewAnalysisRecord(series *model.PriceSeries, r model.IndicatorResult, narrativeFallback bool) *AnalysisRecord {
	return &AnalysisRecord{
		RunID:             uuid.NewString(),
		CreatedAt:         time.Now(),
		Pair:              series.Pair.String(),
		Timeframe:         string(series.Timeframe),
		Source:            series.Source,
		Bars:              series.Len(),
		Price:             r.Price,
		MA20:              r.MA20,
		MA50:              r.MA50,
		RSI:               r.RSI,
		Trend:             string(r.Trend),
		TrendStrength:     r.TrendStrength,
		Support:           r.NearSupport,
		Resistance:        r.NearResistance,
		Recommendation:    string(r.Recommendation),
		NarrativeFallback: narrativeFallback,
	}
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordAnalysis(rec *AnalysisRecord) error
	RecordAttempt(a *model.FetchAttempt) error
	// RecentAnalyses returns the newest n runs for pair/timeframe, newest first.
	RecentAnalyses(pair, timeframe string, n int) ([]AnalysisRecord, error)
	Close() error
}
