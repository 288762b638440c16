package indicator

import "math"

// ATR returns the mean high-low spread over the last period bars, or over
// all bars when fewer are available.
func ATR(highs, lows []float64, period int) float64 {
	n := len(highs)
	if len(lows) < n {
		n = len(lows)
	}
	if n == 0 {
		return 0
	}
	start := n - period
	if start < 0 {
		start = 0
	}
	sum := 0.0
	for i := start; i < n; i++ {
		sum += highs[i] - lows[i]
	}
	return sum / float64(n-start)
}

// RangePosition returns where current sits between low and high (0.0~1.0).
func RangePosition(current, low, high float64) float64 {
	if high <= low {
		return 0.5
	}
	return clamp((current-low)/(high-low), 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
