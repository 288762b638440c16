package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"CryptoLens/internal/cache"
	"CryptoLens/internal/model"
	"CryptoLens/internal/validator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func fixedSeries(source string, close float64, n int) *model.PriceSeries {
	s := &model.PriceSeries{Pair: btcUSDT, Timeframe: model.TF1h, Source: source}
	for i := 0; i < n; i++ {
		s.Bars = append(s.Bars, model.PriceBar{
			Timestamp: fixedNow.Add(time.Duration(i-n) * time.Hour),
			Open:      close, High: close * 1.01, Low: close * 0.99, Close: close, Volume: 10,
		})
	}
	return s
}

func newTestCollector(clock cache.Clock, opts Options, providers ...Provider) (*Collector, *cache.Cache) {
	c := cache.New(5*time.Minute, clock)
	return NewCollector(providers, validator.New(nil), c, opts), c
}

func TestRejectedPrimaryFallsThrough(t *testing.T) {
	bad := &MockProvider{ProviderName: "p1", Series: fixedSeries("p1", 1000, 60)}
	good := &MockProvider{ProviderName: "p2", Series: fixedSeries("p2", 60000, 60)}
	spare := &MockProvider{ProviderName: "p3", Series: fixedSeries("p3", 61000, 60)}
	col, c := newTestCollector(nil, Options{}, bad, good, spare)

	var outcomes []model.AttemptOutcome
	col.OnAttempt = func(a model.FetchAttempt) { outcomes = append(outcomes, a.Outcome) }

	got, err := col.GetCryptoData(context.Background(), btcUSDT, model.TF1h, 60)
	require.NoError(t, err)
	assert.Equal(t, "p2", got.Source)
	assert.Equal(t, good.Series.Bars, got.Bars)
	assert.Equal(t, 0, spare.Calls(), "lower priority provider must not run")
	assert.Equal(t, []model.AttemptOutcome{model.OutcomeRejected, model.OutcomeOK}, outcomes)

	cached, ok := c.Get(cache.Key{Pair: btcUSDT, Timeframe: model.TF1h})
	require.True(t, ok)
	assert.Equal(t, "p2", cached.Source)
	assert.True(t, validator.New(nil).IsReasonable(got, "BTC"))
}

func TestCacheHitIsIdempotent(t *testing.T) {
	clock := &fakeClock{now: fixedNow}
	p := &MockProvider{ProviderName: "p1", Series: fixedSeries("p1", 60000, 100)}
	col, _ := newTestCollector(clock, Options{}, p)

	hits := 0
	col.OnCacheLookup = func(hit bool) {
		if hit {
			hits++
		}
	}

	first, err := col.GetCryptoData(context.Background(), btcUSDT, model.TF1h, 100)
	require.NoError(t, err)
	clock.Advance(4 * time.Minute)
	second, err := col.GetCryptoData(context.Background(), btcUSDT, model.TF1h, 100)
	require.NoError(t, err)

	assert.Equal(t, 1, p.Calls())
	assert.Equal(t, 1, hits)
	assert.Equal(t, first, second)

	clock.Advance(2 * time.Minute)
	_, err = col.GetCryptoData(context.Background(), btcUSDT, model.TF1h, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Calls(), "expired entry should trigger a refetch")
}

func TestCachedSeriesTrimmedToLimit(t *testing.T) {
	p := &MockProvider{ProviderName: "p1", Series: fixedSeries("p1", 60000, 100)}
	col, _ := newTestCollector(nil, Options{}, p)

	_, err := col.GetCryptoData(context.Background(), btcUSDT, model.TF1h, 100)
	require.NoError(t, err)
	short, err := col.GetCryptoData(context.Background(), btcUSDT, model.TF1h, 30)
	require.NoError(t, err)
	assert.Equal(t, 30, short.Len())
	assert.Equal(t, 100, p.Series.Len(), "cached series must not be mutated")
}

func TestAllProvidersFail(t *testing.T) {
	netErr := errors.New("connection refused")
	p1 := &MockProvider{ProviderName: "p1", Err: netErr}
	p2 := &MockProvider{ProviderName: "p2", Series: fixedSeries("p2", 5, 60)}
	col, c := newTestCollector(nil, Options{}, p1, p2)

	_, err := col.GetCryptoData(context.Background(), btcUSDT, model.TF1h, 60)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoProviderSucceeded)
	assert.ErrorIs(t, err, netErr)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, 0, c.Len(), "rejected data must never be cached")
}

func TestExhaustionDropsStaleEntry(t *testing.T) {
	p := &MockProvider{ProviderName: "p1", Err: errors.New("down")}
	col, c := newTestCollector(nil, Options{}, p)
	key := cache.Key{Pair: btcUSDT, Timeframe: model.TF1h}

	// An entry written while the chain is running is stale by the time it exhausts.
	p.Delay = 20 * time.Millisecond
	go func() {
		time.Sleep(5 * time.Millisecond)
		c.Set(key, fixedSeries("old", 60000, 10))
	}()
	_, err := col.GetCryptoData(context.Background(), btcUSDT, model.TF1h, 10)
	require.ErrorIs(t, err, ErrNoProviderSucceeded)
	_, ok := c.Get(key)
	assert.False(t, ok)
}

func TestShortCachedSeriesIsRefetched(t *testing.T) {
	p := &MockProvider{ProviderName: "p1", Price: 60000}
	col, _ := newTestCollector(nil, Options{}, p)

	first, err := col.GetCryptoData(context.Background(), btcUSDT, model.TF1h, 100)
	require.NoError(t, err)
	require.Equal(t, 100, first.Len())

	longer, err := col.GetCryptoData(context.Background(), btcUSDT, model.TF1h, 150)
	require.NoError(t, err)
	assert.Equal(t, 150, longer.Len())
	assert.Equal(t, 2, p.Calls())
}

func TestProviderTimeoutAdvances(t *testing.T) {
	slow := &MockProvider{ProviderName: "slow", Delay: time.Second, Series: fixedSeries("slow", 60000, 10)}
	fast := &MockProvider{ProviderName: "fast", Series: fixedSeries("fast", 60000, 10)}
	col, _ := newTestCollector(nil, Options{Timeout: 20 * time.Millisecond}, slow, fast)

	got, err := col.GetCryptoData(context.Background(), btcUSDT, model.TF1h, 10)
	require.NoError(t, err)
	assert.Equal(t, "fast", got.Source)
}

func TestBreakerSkipsFailingProvider(t *testing.T) {
	flaky := &MockProvider{ProviderName: "flaky", Err: errors.New("503")}
	backup := &MockProvider{ProviderName: "backup", Series: fixedSeries("backup", 60000, 10)}
	col, _ := newTestCollector(nil, Options{BreakerFailures: 1, BreakerReset: time.Hour}, flaky, backup)

	var last model.FetchAttempt
	col.OnAttempt = func(a model.FetchAttempt) {
		if a.Provider == "flaky" {
			last = a
		}
	}

	_, err := col.GetCryptoData(context.Background(), btcUSDT, model.TF1h, 10)
	require.NoError(t, err)
	require.True(t, col.Invalidate(btcUSDT, model.TF1h))

	_, err = col.GetCryptoData(context.Background(), btcUSDT, model.TF1h, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, flaky.Calls())
	assert.Equal(t, model.OutcomeSkipped, last.Outcome)
	assert.ErrorIs(t, last.Err, ErrCircuitOpen)
	assert.Equal(t, "open", col.BreakerStates()["flaky"])
}

func TestConcurrentRequestsShareFetch(t *testing.T) {
	p := &MockProvider{ProviderName: "p1", Delay: 50 * time.Millisecond, Series: fixedSeries("p1", 60000, 10)}
	col, _ := newTestCollector(nil, Options{}, p)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := col.GetCryptoData(context.Background(), btcUSDT, model.TF1h, 10)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, p.Calls())
}

func TestAbandonedRequestStillFillsCache(t *testing.T) {
	p := &MockProvider{ProviderName: "p1", Delay: 30 * time.Millisecond, Series: fixedSeries("p1", 60000, 10)}
	col, c := newTestCollector(nil, Options{}, p)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := col.GetCryptoData(ctx, btcUSDT, model.TF1h, 10)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Eventually(t, func() bool { return c.Len() == 1 }, time.Second, 5*time.Millisecond)
}

func TestInvalidLimit(t *testing.T) {
	col, _ := newTestCollector(nil, Options{}, &MockProvider{})
	_, err := col.GetCryptoData(context.Background(), btcUSDT, model.TF1h, 0)
	assert.Error(t, err)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	now := fixedNow
	b := NewBreaker(2, time.Minute)
	b.now = func() time.Time { return now }

	b.Record(errors.New("x"))
	assert.Equal(t, BreakerClosed, b.State())
	b.Record(errors.New("x"))
	assert.Equal(t, BreakerOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	now = now.Add(2 * time.Minute)
	assert.NoError(t, b.Allow())
	assert.Equal(t, BreakerHalfOpen, b.State())
	b.Record(nil)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestExhaustionAndBreakerHooks(t *testing.T) {
	p := &MockProvider{ProviderName: "p1", Err: errors.New("down")}
	col, _ := newTestCollector(nil, Options{BreakerFailures: 1, BreakerReset: time.Hour}, p)

	var exhausted []model.Timeframe
	var transitions []string
	col.OnExhausted = func(_ model.AssetPair, tf model.Timeframe) { exhausted = append(exhausted, tf) }
	col.OnBreakerChange = func(provider string, from, to BreakerState) {
		transitions = append(transitions, provider+":"+from.String()+"->"+to.String())
	}

	_, err := col.GetCryptoData(context.Background(), btcUSDT, model.TF4h, 10)
	require.ErrorIs(t, err, ErrNoProviderSucceeded)
	assert.Equal(t, []model.Timeframe{model.TF4h}, exhausted)
	assert.Equal(t, []string{"p1:closed->open"}, transitions)
}

// btcOnlyProvider serves BTC and reports every other base as unsupported.
type btcOnlyProvider struct {
	MockProvider
}

func (p *btcOnlyProvider) Fetch(ctx context.Context, pair model.AssetPair, tf model.Timeframe, limit int) (*model.PriceSeries, error) {
	if pair.Base != "BTC" {
		p.calls.Add(1)
		return nil, fmt.Errorf("%s: %w", pair, ErrUnsupportedPair)
	}
	return p.MockProvider.Fetch(ctx, pair, tf, limit)
}

func TestPairSpecificFailuresLeaveBreakerClosed(t *testing.T) {
	primary := &btcOnlyProvider{MockProvider{ProviderName: "primary", Price: 60000}}
	secondary := &MockProvider{ProviderName: "secondary"}
	col, _ := newTestCollector(nil, Options{BreakerFailures: 3, BreakerReset: time.Hour}, primary, secondary)

	pepe := model.AssetPair{Base: "PEPE", Quote: "USDT"}
	for i := 0; i < 5; i++ {
		require.True(t, i == 0 || col.Invalidate(pepe, model.TF1h))
		got, err := col.GetCryptoData(context.Background(), pepe, model.TF1h, 10)
		require.NoError(t, err)
		assert.Equal(t, "secondary", got.Source)
	}
	assert.Equal(t, "closed", col.BreakerStates()["primary"])

	got, err := col.GetCryptoData(context.Background(), btcUSDT, model.TF1h, 10)
	require.NoError(t, err)
	assert.Equal(t, "primary", got.Source)
	assert.Equal(t, 6, primary.Calls())
}

func TestRejectedSeriesDoNotOpenBreaker(t *testing.T) {
	bad := &MockProvider{ProviderName: "p1", Series: fixedSeries("p1", 1000, 10)}
	good := &MockProvider{ProviderName: "p2", Series: fixedSeries("p2", 60000, 10)}
	col, _ := newTestCollector(nil, Options{BreakerFailures: 1, BreakerReset: time.Hour}, bad, good)

	for i := 0; i < 3; i++ {
		if i > 0 {
			require.True(t, col.Invalidate(btcUSDT, model.TF1h))
		}
		_, err := col.GetCryptoData(context.Background(), btcUSDT, model.TF1h, 10)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, bad.Calls())
	assert.Equal(t, "closed", col.BreakerStates()["p1"])
}

func TestRangeCheckUsesRequestedPair(t *testing.T) {
	unlabeled := fixedSeries("p1", 1000, 10)
	unlabeled.Pair = model.AssetPair{}
	bad := &MockProvider{ProviderName: "p1", Series: unlabeled}
	good := &MockProvider{ProviderName: "p2", Series: fixedSeries("p2", 60000, 10)}
	col, _ := newTestCollector(nil, Options{}, bad, good)

	var outcomes []model.AttemptOutcome
	col.OnAttempt = func(a model.FetchAttempt) { outcomes = append(outcomes, a.Outcome) }

	got, err := col.GetCryptoData(context.Background(), btcUSDT, model.TF1h, 10)
	require.NoError(t, err)
	assert.Equal(t, "p2", got.Source)
	assert.Equal(t, []model.AttemptOutcome{model.OutcomeRejected, model.OutcomeOK}, outcomes)
}
