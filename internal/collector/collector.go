package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"CryptoLens/internal/cache"
	"CryptoLens/internal/model"
	"CryptoLens/internal/validator"

	"golang.org/x/sync/singleflight"
)

// Options tunes the orchestrator.
type Options struct {
	// Timeout bounds each provider call.
	Timeout time.Duration
	// BreakerFailures enables per-provider circuit breakers when > 0.
	BreakerFailures int
	BreakerReset    time.Duration
}

// Collector walks the providers in priority order and caches the first
// series that passes validation.
type Collector struct {
	providers []Provider
	breakers  map[string]*Breaker
	validator *validator.Validator
	cache     *cache.Cache
	timeout   time.Duration
	group     singleflight.Group

	// OnAttempt, when set, observes every provider attempt.
	OnAttempt func(model.FetchAttempt)
	// OnCacheLookup, when set, observes cache hits and misses.
	OnCacheLookup func(hit bool)
	// OnBreakerChange, when set, observes breaker transitions.
	OnBreakerChange func(provider string, from, to BreakerState)
	// OnExhausted, when set, is called after every provider has failed.
	OnExhausted func(pair model.AssetPair, tf model.Timeframe)
}

// NewCollector creates a collector. Providers are tried in slice order.
func NewCollector(providers []Provider, v *validator.Validator, c *cache.Cache, opts Options) *Collector {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	col := &Collector{
		providers: providers,
		breakers:  make(map[string]*Breaker),
		validator: v,
		cache:     c,
		timeout:   opts.Timeout,
	}
	if opts.BreakerFailures > 0 {
		for _, p := range providers {
			name := p.Name()
			b := NewBreaker(opts.BreakerFailures, opts.BreakerReset)
			b.OnStateChange = func(from, to BreakerState) {
				log.Printf("[WARN] collector: %s breaker %s -> %s", name, from, to)
				if col.OnBreakerChange != nil {
					col.OnBreakerChange(name, from, to)
				}
			}
			col.breakers[name] = b
		}
	}
	return col
}

// Providers returns provider names in priority order.
func (c *Collector) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// BreakerStates reports the breaker state per provider.
func (c *Collector) BreakerStates() map[string]string {
	out := make(map[string]string, len(c.breakers))
	for name, b := range c.breakers {
		out[name] = b.State().String()
	}
	return out
}

// GetCryptoData returns at most limit bars for pair and tf, from cache when
// fresh. Only ErrNoProviderSucceeded (or the caller's context error) is
// returned; individual provider failures are absorbed.
//
// A cached series shorter than limit is refetched.
// A caller that gives up early does not cancel the fetch: it completes in
// the background and fills the cache for the next request.
func (c *Collector) GetCryptoData(ctx context.Context, pair model.AssetPair, tf model.Timeframe, limit int) (*model.PriceSeries, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	key := cache.Key{Pair: pair, Timeframe: tf}
	if s, ok := c.cache.Get(key); ok && s.Len() >= limit {
		c.observeCache(true)
		return s.Tail(limit), nil
	}
	c.observeCache(false)

	flightKey := fmt.Sprintf("%s|%d", key, limit)
	ch := c.group.DoChan(flightKey, func() (any, error) {
		if s, ok := c.cache.Get(key); ok && s.Len() >= limit {
			return s, nil
		}
		return c.fetchChain(context.WithoutCancel(ctx), key, limit)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*model.PriceSeries).Tail(limit), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops the cached series for pair and tf.
func (c *Collector) Invalidate(pair model.AssetPair, tf model.Timeframe) bool {
	return c.cache.Delete(cache.Key{Pair: pair, Timeframe: tf})
}

func (c *Collector) fetchChain(ctx context.Context, key cache.Key, limit int) (*model.PriceSeries, error) {
	var errs []error
	for _, p := range c.providers {
		series, err := c.try(ctx, p, key, limit)
		if err != nil {
			log.Printf("[WARN] collector: %s failed for %s: %v", p.Name(), key, err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		c.cache.Set(key, series)
		log.Printf("[INFO] collector: %s served %s (%d bars)", p.Name(), key, series.Len())
		return series, nil
	}

	if c.cache.Delete(key) {
		log.Printf("[WARN] collector: dropped stale cache entry for %s", key)
	}
	if c.OnExhausted != nil {
		c.OnExhausted(key.Pair, key.Timeframe)
	}
	return nil, fmt.Errorf("%w for %s: %w", ErrNoProviderSucceeded, key, errors.Join(errs...))
}

// try runs one provider and validates its result.
func (c *Collector) try(ctx context.Context, p Provider, key cache.Key, limit int) (*model.PriceSeries, error) {
	attempt := model.FetchAttempt{
		Provider:  p.Name(),
		Pair:      key.Pair,
		Timeframe: key.Timeframe,
		At:        time.Now(),
	}
	defer func() {
		if c.OnAttempt != nil {
			c.OnAttempt(attempt)
		}
	}()

	breaker := c.breakers[p.Name()]
	if breaker != nil {
		if err := breaker.Allow(); err != nil {
			attempt.Outcome, attempt.Err = model.OutcomeSkipped, err
			return nil, err
		}
	}

	pctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	series, err := p.Fetch(pctx, key.Pair, key.Timeframe, limit)
	attempt.Duration = time.Since(attempt.At)
	if err == nil && series.Len() == 0 {
		err = ErrEmptyPayload
	}
	if err != nil {
		c.record(breaker, err)
		attempt.Outcome, attempt.Err = model.OutcomeFailed, err
		return nil, err
	}

	if series.Pair != key.Pair || series.Timeframe != key.Timeframe {
		fixed := *series
		fixed.Pair, fixed.Timeframe = key.Pair, key.Timeframe
		series = &fixed
	}

	if !c.validator.IsReasonable(series, key.Pair.Base) {
		last, _ := series.Latest()
		err = fmt.Errorf("%w: latest close %g", ErrRejected, last.Close)
		c.record(breaker, err)
		attempt.Outcome, attempt.Err = model.OutcomeRejected, err
		return nil, err
	}
	c.record(breaker, nil)
	attempt.Outcome = model.OutcomeOK
	return series, nil
}

// record feeds a provider outcome into its breaker. Failures tied to one
// pair say nothing about the provider's health and are not counted.
func (c *Collector) record(b *Breaker, err error) {
	if b == nil || pairSpecific(err) {
		return
	}
	b.Record(err)
}

func pairSpecific(err error) bool {
	return errors.Is(err, ErrUnsupportedPair) ||
		errors.Is(err, ErrRejected) ||
		errors.Is(err, ErrNotConfigured)
}

func (c *Collector) observeCache(hit bool) {
	if c.OnCacheLookup != nil {
		c.OnCacheLookup(hit)
	}
}
