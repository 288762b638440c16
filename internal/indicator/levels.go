package indicator

import (
	"math"
	"sort"
)

// Support/resistance tuning.
const (
	PivotWindow      = 3
	RecencyFactor    = 0.85
	ATRPeriod        = 14
	SyntheticLevels  = 3
	SyntheticWeight  = 0.5
	MaxLevelStrength = 2.0
	MaxLevels        = 5
	minLevelsPerSide = 2
)

// Level is a candidate price level with its weight.
type Level struct {
	Price  float64
	Weight float64
}

// Levels holds the sorted support and resistance candidates.
type Levels struct {
	Support    []Level // descending, nearest first
	Resistance []Level // ascending, nearest first
	ATR        float64
}

// isPeak reports whether highs[i] is strictly above the window bars on
// each side. Ties disqualify.
func isPeak(highs []float64, i, window int) bool {
	for j := 1; j <= window; j++ {
		if highs[i] <= highs[i-j] || highs[i] <= highs[i+j] {
			return false
		}
	}
	return true
}

func isTrough(lows []float64, i, window int) bool {
	for j := 1; j <= window; j++ {
		if lows[i] >= lows[i-j] || lows[i] >= lows[i+j] {
			return false
		}
	}
	return true
}

// FindLevels scans for local peaks above current (resistance) and troughs
// below it (support). Each is weighted by relative volume and decays by
// RecencyFactor per bar from the end. A side with fewer than two candidates
// is padded with levels at current ± k·ATR.
func FindLevels(highs, lows, volumes []float64, current float64) Levels {
	n := len(highs)
	meanVol := mean(volumes)
	var out Levels

	for i := PivotWindow; i < n-PivotWindow; i++ {
		volFactor := 1.0
		if meanVol > 0 && i < len(volumes) {
			volFactor = volumes[i] / meanVol
		}
		weight := volFactor * math.Pow(RecencyFactor, float64(n-i-1))

		if isPeak(highs, i, PivotWindow) && highs[i] > current {
			out.Resistance = append(out.Resistance, Level{Price: highs[i], Weight: weight})
		}
		if isTrough(lows, i, PivotWindow) && lows[i] < current {
			out.Support = append(out.Support, Level{Price: lows[i], Weight: weight})
		}
	}

	out.ATR = ATR(highs, lows, ATRPeriod)
	if len(out.Resistance) < minLevelsPerSide {
		for k := 0; k < SyntheticLevels; k++ {
			out.Resistance = append(out.Resistance, Level{
				Price:  current + float64(k+1)*out.ATR,
				Weight: SyntheticWeight / float64(k+1),
			})
		}
	}
	if len(out.Support) < minLevelsPerSide {
		for k := 0; k < SyntheticLevels; k++ {
			out.Support = append(out.Support, Level{
				Price:  current - float64(k+1)*out.ATR,
				Weight: SyntheticWeight / float64(k+1),
			})
		}
	}

	sort.SliceStable(out.Resistance, func(i, j int) bool { return out.Resistance[i].Price < out.Resistance[j].Price })
	sort.SliceStable(out.Support, func(i, j int) bool { return out.Support[i].Price > out.Support[j].Price })
	return out
}

// Strength sums the weights, capped at MaxLevelStrength.
func Strength(levels []Level) float64 {
	sum := 0.0
	for _, l := range levels {
		sum += l.Weight
	}
	return math.Min(sum, MaxLevelStrength)
}

// Prices returns up to max level prices in order.
func Prices(levels []Level, max int) []float64 {
	if len(levels) > max {
		levels = levels[:max]
	}
	out := make([]float64, len(levels))
	for i, l := range levels {
		out[i] = l.Price
	}
	return out
}
