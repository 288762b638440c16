// Package analysis runs the full pipeline for one request: fetch through the
// provider chain, compute indicators, narrate, then record and publish.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"CryptoLens/internal/indicator"
	"CryptoLens/internal/metrics"
	"CryptoLens/internal/model"
	"CryptoLens/internal/narrative"
	"CryptoLens/internal/publish"
	"CryptoLens/internal/recorder"
	"CryptoLens/internal/strategy"
)

// Multi-timeframe fetch sizes: the i-th neighbour asks for BaseLimit+i*LimitStep bars.
const (
	BaseLimit = 100
	LimitStep = 50
)

// Fetcher is the price-series source, normally the collector.
type Fetcher interface {
	GetCryptoData(ctx context.Context, pair model.AssetPair, tf model.Timeframe, limit int) (*model.PriceSeries, error)
}

// Report is the result of one analysis.
type Report struct {
	RunID             string                `json:"run_id"`
	Pair              model.AssetPair       `json:"pair"`
	Timeframe         model.Timeframe       `json:"timeframe"`
	Source            string                `json:"source"`
	FetchedAt         time.Time             `json:"fetched_at"`
	GeneratedAt       time.Time             `json:"generated_at"`
	Indicators        model.IndicatorResult `json:"indicators"`
	Summary           narrative.Narrative   `json:"summary"`
	Commentary        string                `json:"commentary"`
	NarrativeFallback bool                  `json:"narrative_fallback"`

	Series *model.PriceSeries `json:"-"`
}

// MTFReport is a multi-timeframe consensus.
type MTFReport struct {
	Pair        model.AssetPair `json:"pair"`
	Timeframe   model.Timeframe `json:"timeframe"`
	Consensus   model.Consensus `json:"consensus"`
	Summary     string          `json:"summary"`
	Skipped     []string        `json:"skipped,omitempty"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Service wires the pipeline stages together.
type Service struct {
	Fetcher   Fetcher
	Narrator  *narrative.Narrator
	Recorder  recorder.Recorder
	Publisher publish.Publisher
	Metrics   *metrics.Metrics

	// Broadcast, when set, receives every published payload for local
	// websocket fan-out.
	Broadcast func(channel string, payload []byte)

	now func() time.Time
}

// NewService fills nil dependencies with no-op implementations.
func NewService(f Fetcher, n *narrative.Narrator, rec recorder.Recorder, pub publish.Publisher, m *metrics.Metrics) *Service {
	if n == nil {
		n = &narrative.Narrator{}
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if pub == nil {
		pub = publish.NewNoopPublisher()
	}
	return &Service{Fetcher: f, Narrator: n, Recorder: rec, Publisher: pub, Metrics: m, now: time.Now}
}

// Analyze fetches limit bars and produces a full report. Only fetch errors
// are returned; recording and publishing failures are logged.
func (s *Service) Analyze(ctx context.Context, pair model.AssetPair, tf model.Timeframe, limit int) (*Report, error) {
	start := s.clock()
	series, err := s.Fetcher.GetCryptoData(ctx, pair, tf, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", pair, tf, err)
	}

	result := indicator.Analyze(series)
	text, fallback := s.Narrator.Narrate(ctx, series, result)

	rec := recorder.NewAnalysisRecord(series, result, fallback)
	report := &Report{
		RunID:             rec.RunID,
		Pair:              pair,
		Timeframe:         tf,
		Source:            series.Source,
		FetchedAt:         series.FetchedAt,
		GeneratedAt:       s.clock(),
		Indicators:        result,
		Summary:           narrative.Build(pair, tf, result),
		Commentary:        text,
		NarrativeFallback: fallback,
		Series:            series,
	}

	if err := s.Recorder.RecordAnalysis(rec); err != nil {
		log.Printf("[ERROR] record analysis %s %s: %v", pair, tf, err)
	}
	s.publish(ctx, report)

	if s.Metrics != nil {
		s.Metrics.ObserveAnalysis(tf, result.Recommendation, s.clock().Sub(start), fallback)
	}
	log.Printf("[INFO] analysis %s %s: %s (trend %s, rsi %.1f, source %s)",
		pair, tf, result.Recommendation, result.Trend, result.RSI, series.Source)
	return report, nil
}

func (s *Service) publish(ctx context.Context, report *Report) {
	payload, err := json.Marshal(report)
	if err != nil {
		log.Printf("[ERROR] encode report: %v", err)
		return
	}
	if err := s.Publisher.Publish(ctx, report.Pair, report.Timeframe, payload); err != nil {
		log.Printf("[WARN] publish %s %s: %v", report.Pair, report.Timeframe, err)
		if s.Metrics != nil {
			s.Metrics.PublishErrors.Inc()
		}
	}
	if s.Broadcast != nil {
		s.Broadcast(publish.Channel(report.Pair, report.Timeframe), payload)
	}
}

// MultiTimeframe analyzes tf and its neighbours concurrently and scores how
// far their trends agree. Timeframes without data or with too few bars for
// a trend are skipped.
func (s *Service) MultiTimeframe(ctx context.Context, pair model.AssetPair, tf model.Timeframe) (*MTFReport, error) {
	tfs := tf.Neighbors()
	if len(tfs) == 0 {
		return nil, fmt.Errorf("unsupported timeframe %q", tf)
	}

	views := make([]*model.TimeframeView, len(tfs))
	g, gctx := errgroup.WithContext(ctx)
	for i, ntf := range tfs {
		i, ntf := i, ntf
		g.Go(func() error {
			series, err := s.Fetcher.GetCryptoData(gctx, pair, ntf, BaseLimit+i*LimitStep)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("[WARN] mtf %s %s skipped: %v", pair, ntf, err)
				return nil
			}
			r := indicator.Analyze(series)
			if !r.TrendReady {
				return nil
			}
			v := strategy.View(ntf, r)
			views[i] = &v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var ordered []model.TimeframeView
	var skipped []string
	for i, v := range views {
		if v == nil {
			skipped = append(skipped, string(tfs[i]))
			continue
		}
		ordered = append(ordered, *v)
	}
	c := strategy.Consensus(ordered)
	return &MTFReport{
		Pair:        pair,
		Timeframe:   tf,
		Consensus:   c,
		Summary:     narrative.FormatConsensus(pair, c),
		Skipped:     skipped,
		GeneratedAt: s.clock(),
	}, nil
}

func (s *Service) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}
