package collector

import (
	"math/rand"
	"sync"
	"time"

	"CryptoLens/internal/model"
)

// Close-only providers get synthesized open/high/low values: small bounded
// random perturbations around the close. This is a deliberate approximation
// of the missing candle, and downstream band/ATR figures inherit it.
const (
	OpenSpread = 0.002
	HighSpread = 0.003
	LowSpread  = 0.003
	// WalkJitter spreads the closes of a series built from a single rate.
	WalkJitter = 0.005
	// MaxSpread caps any synthesized deviation from the close.
	MaxSpread = 0.03

	// Estimated volume is close * U(VolumeMin, VolumeMax).
	VolumeMin = 10.0
	VolumeMax = 100.0
)

// Synthesizer builds approximate bars. It is safe for concurrent use.
type Synthesizer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSynthesizer seeds a synthesizer; tests pass a fixed seed.
func NewSynthesizer(seed int64) *Synthesizer {
	return &Synthesizer{rng: rand.New(rand.NewSource(seed))}
}

func (s *Synthesizer) uniform(lo, hi float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + s.rng.Float64()*(hi-lo)
}

func capSpread(v float64) float64 {
	if v > MaxSpread {
		return MaxSpread
	}
	return v
}

// Bar synthesizes one bar around close. volume <= 0 is replaced by an estimate.
func (s *Synthesizer) Bar(ts time.Time, close, volume float64) model.PriceBar {
	open := close * (1 - s.uniform(0, capSpread(OpenSpread)))
	high := close * (1 + s.uniform(0, capSpread(HighSpread)))
	low := close * (1 - s.uniform(0, capSpread(LowSpread)))
	if open > high {
		high = open
	}
	if open < low {
		low = open
	}
	if volume <= 0 {
		volume = close * s.uniform(VolumeMin, VolumeMax)
	}
	return model.PriceBar{Timestamp: ts, Open: open, High: high, Low: low, Close: close, Volume: volume}
}

// Series builds n bars spaced by tf ending at end, jittered around rate. The
// last bar closes exactly at rate.
func (s *Synthesizer) Series(rate float64, end time.Time, tf model.Timeframe, n int) []model.PriceBar {
	step := tf.Duration()
	end = end.Truncate(step)
	bars := make([]model.PriceBar, n)
	for i := 0; i < n; i++ {
		ts := end.Add(-time.Duration(n-1-i) * step)
		price := rate
		if i < n-1 {
			price = rate * (1 + s.uniform(-capSpread(WalkJitter), capSpread(WalkJitter)))
		}
		bars[i] = s.Bar(ts, price, 0)
	}
	return bars
}
