package indicator

import (
	"math"

	"github.com/markcheno/go-talib"
)

// SMA returns the simple moving average of the last period values. ok is
// false when there are fewer values than period.
func SMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	out := talib.Sma(values, period)
	return out[len(out)-1], true
}

// Bands holds a Bollinger-style envelope at the latest bar.
type Bands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Bollinger computes middle = SMA(period) and upper/lower = middle ± k·σ,
// with σ the sample standard deviation (n-1) over the same window.
func Bollinger(closes []float64, period int, k float64) (Bands, bool) {
	if period <= 1 || len(closes) < period {
		return Bands{}, false
	}
	// talib's deviation is the population one; rescale to the sample one.
	dev := k * math.Sqrt(float64(period)/float64(period-1))
	upper, middle, lower := talib.BBands(closes, period, dev, dev, talib.SMA)
	last := len(closes) - 1
	return Bands{Upper: upper[last], Middle: middle[last], Lower: lower[last]}, true
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
