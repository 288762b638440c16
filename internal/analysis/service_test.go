package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CryptoLens/internal/collector"
	"CryptoLens/internal/metrics"
	"CryptoLens/internal/model"
	"CryptoLens/internal/narrative"
	"CryptoLens/internal/publish"
	"CryptoLens/internal/recorder"
)

var btcUSDT = model.AssetPair{Base: "BTC", Quote: "USDT"}

// trendSeries moves linearly by step per bar.
func trendSeries(tf model.Timeframe, start, step float64, n int) *model.PriceSeries {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &model.PriceSeries{Pair: btcUSDT, Timeframe: tf, Source: "fake", FetchedAt: t0}
	for i := 0; i < n; i++ {
		c := start + step*float64(i)
		s.Bars = append(s.Bars, model.PriceBar{
			Timestamp: t0.Add(time.Duration(i) * tf.Duration()),
			Open:      c, High: c * 1.001, Low: c * 0.999, Close: c, Volume: 10,
		})
	}
	return s
}

type fakeFetcher struct {
	mu     sync.Mutex
	series map[model.Timeframe]*model.PriceSeries
	limits map[model.Timeframe]int
}

func (f *fakeFetcher) GetCryptoData(_ context.Context, _ model.AssetPair, tf model.Timeframe, limit int) (*model.PriceSeries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.limits == nil {
		f.limits = map[model.Timeframe]int{}
	}
	f.limits[tf] = limit
	s, ok := f.series[tf]
	if !ok {
		return nil, fmt.Errorf("%w for %s", collector.ErrNoProviderSucceeded, tf)
	}
	return s.Tail(limit), nil
}

type fakeRecorder struct {
	recorder.NoopRecorder
	records []*recorder.AnalysisRecord
}

func (r *fakeRecorder) RecordAnalysis(rec *recorder.AnalysisRecord) error {
	r.records = append(r.records, rec)
	return nil
}

type fakePublisher struct {
	publish.NoopPublisher
	payloads map[string][]byte
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, pair model.AssetPair, tf model.Timeframe, payload []byte) error {
	if p.err != nil {
		return p.err
	}
	if p.payloads == nil {
		p.payloads = map[string][]byte{}
	}
	p.payloads[publish.Channel(pair, tf)] = payload
	return nil
}

func TestAnalyze(t *testing.T) {
	f := &fakeFetcher{series: map[model.Timeframe]*model.PriceSeries{
		model.TF1h: trendSeries(model.TF1h, 50000, 100, 80),
	}}
	rec := &fakeRecorder{}
	pub := &fakePublisher{}
	m := metrics.NewMetrics()
	svc := NewService(f, nil, rec, pub, m)

	var broadcast []string
	svc.Broadcast = func(channel string, _ []byte) { broadcast = append(broadcast, channel) }

	report, err := svc.Analyze(context.Background(), btcUSDT, model.TF1h, 60)
	require.NoError(t, err)

	assert.Equal(t, 60, f.limits[model.TF1h])
	assert.Equal(t, 60, report.Indicators.Bars)
	assert.Equal(t, model.TrendBullish, report.Indicators.Trend)
	assert.Equal(t, model.RecBuy, report.Indicators.Recommendation)
	assert.Equal(t, "fake", report.Source)
	assert.True(t, report.NarrativeFallback)
	assert.Contains(t, report.Commentary, "BTC/USDT 1h market summary")
	assert.Equal(t, model.TrendBullish, report.Summary.Sentiment)

	require.Len(t, rec.records, 1)
	assert.Equal(t, report.RunID, rec.records[0].RunID)
	assert.Equal(t, "buy", rec.records[0].Recommendation)

	channel := publish.Channel(btcUSDT, model.TF1h)
	require.Contains(t, pub.payloads, channel)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(pub.payloads[channel], &decoded))
	assert.Equal(t, report.RunID, decoded["run_id"])
	assert.NotContains(t, decoded, "Series")
	assert.Equal(t, []string{channel}, broadcast)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Analyses.WithLabelValues("1h", "buy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NarrativeFallbacks))
}

type stubLLM struct{}

func (stubLLM) Complete(context.Context, string) (string, error) { return "model view", nil }

func TestAnalyzeUsesLLM(t *testing.T) {
	f := &fakeFetcher{series: map[model.Timeframe]*model.PriceSeries{
		model.TF4h: trendSeries(model.TF4h, 3000, -5, 60),
	}}
	svc := NewService(f, &narrative.Narrator{LLM: stubLLM{}}, nil, nil, nil)

	report, err := svc.Analyze(context.Background(), btcUSDT, model.TF4h, 100)
	require.NoError(t, err)
	assert.False(t, report.NarrativeFallback)
	assert.Equal(t, "model view", report.Commentary)
	assert.Equal(t, model.TrendBearish, report.Indicators.Trend)
}

func TestAnalyzeFetchFailure(t *testing.T) {
	rec := &fakeRecorder{}
	svc := NewService(&fakeFetcher{}, nil, rec, nil, nil)

	_, err := svc.Analyze(context.Background(), btcUSDT, model.TF1d, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, collector.ErrNoProviderSucceeded)
	assert.Empty(t, rec.records)
}

func TestAnalyzePublishFailureIsNotFatal(t *testing.T) {
	f := &fakeFetcher{series: map[model.Timeframe]*model.PriceSeries{
		model.TF1h: trendSeries(model.TF1h, 100, 1, 30),
	}}
	m := metrics.NewMetrics()
	svc := NewService(f, nil, nil, &fakePublisher{err: errors.New("redis down")}, m)

	_, err := svc.Analyze(context.Background(), btcUSDT, model.TF1h, 30)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishErrors))
}

func TestMultiTimeframe(t *testing.T) {
	f := &fakeFetcher{series: map[model.Timeframe]*model.PriceSeries{
		model.TF15m: trendSeries(model.TF15m, 100, 1, 300),
		model.TF1h:  trendSeries(model.TF1h, 100, 1, 300),
		model.TF4h:  trendSeries(model.TF4h, 400, -1, 300),
		// 1d is missing and must be skipped
	}}
	svc := NewService(f, nil, nil, nil, nil)

	rep, err := svc.MultiTimeframe(context.Background(), btcUSDT, model.TF1h)
	require.NoError(t, err)

	assert.Equal(t, map[model.Timeframe]int{
		model.TF15m: 100, model.TF1h: 150, model.TF4h: 200, model.TF1d: 250,
	}, f.limits)
	c := rep.Consensus
	require.Len(t, c.Views, 3)
	assert.Equal(t, model.TF15m, c.Views[0].Timeframe)
	assert.Equal(t, model.TF4h, c.Views[2].Timeframe)
	assert.Equal(t, model.TrendBullish, c.Direction)
	assert.InDelta(t, 66.67, c.Score, 0.01)
	assert.Equal(t, model.ConsensusMedium, c.Strength)
	assert.Equal(t, []model.Timeframe{model.TF15m, model.TF1h}, c.Aligned)
	assert.Equal(t, []string{"1d"}, rep.Skipped)
	assert.Contains(t, rep.Summary, "multi-timeframe consensus")
}

func TestMultiTimeframeSkipsShortSeries(t *testing.T) {
	f := &fakeFetcher{series: map[model.Timeframe]*model.PriceSeries{
		model.TF1w: trendSeries(model.TF1w, 100, 1, 10),
		model.TF1d: trendSeries(model.TF1d, 100, -1, 60),
	}}
	svc := NewService(f, nil, nil, nil, nil)

	rep, err := svc.MultiTimeframe(context.Background(), btcUSDT, model.TF1w)
	require.NoError(t, err)
	require.Len(t, rep.Consensus.Views, 1)
	assert.Equal(t, model.TrendBearish, rep.Consensus.Direction)
	assert.Equal(t, 100.0, rep.Consensus.Score)
	assert.Equal(t, []string{"1w"}, rep.Skipped)
}

func TestMultiTimeframeUnsupported(t *testing.T) {
	_, err := NewService(&fakeFetcher{}, nil, nil, nil, nil).MultiTimeframe(context.Background(), btcUSDT, "3m")
	assert.Error(t, err)
}
