package recorder

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CryptoLens/internal/model"
)

func openTemp(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func testSeries() *model.PriceSeries {
	return &model.PriceSeries{
		Pair:      model.AssetPair{Base: "BTC", Quote: "USDT"},
		Timeframe: model.TF1h,
		Source:    "coingecko",
		Bars:      make([]model.PriceBar, 60),
	}
}

func TestRecordAndQueryAnalyses(t *testing.T) {
	r := openTemp(t)
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		rec := NewAnalysisRecord(testSeries(), model.IndicatorResult{
			Price:          100 + float64(i),
			RSI:            40,
			Trend:          model.TrendBullish,
			Recommendation: model.RecBuy,
		}, i == 2)
		rec.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, r.RecordAnalysis(rec))
	}
	other := NewAnalysisRecord(testSeries(), model.IndicatorResult{Price: 1}, false)
	other.Timeframe = "4h"
	require.NoError(t, r.RecordAnalysis(other))

	got, err := r.RecentAnalyses("BTC/USDT", "1h", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 102.0, got[0].Price)
	assert.True(t, got[0].NarrativeFallback)
	assert.Equal(t, 101.0, got[1].Price)
	assert.Equal(t, "coingecko", got[0].Source)
	assert.Equal(t, 60, got[0].Bars)
	assert.Equal(t, "buy", got[0].Recommendation)
	assert.True(t, got[0].CreatedAt.Equal(base.Add(2*time.Hour)))
	assert.NotEqual(t, got[0].RunID, got[1].RunID)
}

func TestDuplicateRunIDRejected(t *testing.T) {
	r := openTemp(t)
	rec := NewAnalysisRecord(testSeries(), model.IndicatorResult{}, false)
	require.NoError(t, r.RecordAnalysis(rec))
	assert.Error(t, r.RecordAnalysis(rec))
}

func TestRecordAttempt(t *testing.T) {
	r := openTemp(t)
	pair := model.AssetPair{Base: "ETH", Quote: "USDT"}
	require.NoError(t, r.RecordAttempt(&model.FetchAttempt{
		Provider: "cryptoapis", Pair: pair, Timeframe: model.TF1d,
		Outcome: model.OutcomeFailed, Err: errors.New("timeout"), Duration: 1500 * time.Millisecond,
	}))
	require.NoError(t, r.RecordAttempt(&model.FetchAttempt{
		Provider: "coincap", Pair: pair, Timeframe: model.TF1d, Outcome: model.OutcomeOK,
	}))

	n, err := r.AttemptCount("cryptoapis")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	assert.NoError(t, r.RecordAnalysis(&AnalysisRecord{}))
	assert.NoError(t, r.RecordAttempt(&model.FetchAttempt{}))
	got, err := r.RecentAnalyses("BTC/USDT", "1h", 5)
	assert.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, r.Close())
}
