package collector

import (
	"math"
	"sort"
	"time"

	"CryptoLens/internal/model"
)

// normalize enforces the series invariants on raw provider bars: positive
// finite prices, low <= open,close <= high, non-negative volume, ascending
// unique timestamps and at most limit bars.
func normalize(bars []model.PriceBar, limit int) ([]model.PriceBar, error) {
	out := make([]model.PriceBar, 0, len(bars))
	for _, b := range bars {
		if !positive(b.Close) || b.Timestamp.IsZero() {
			continue
		}
		if !positive(b.Open) {
			b.Open = b.Close
		}
		if !positive(b.High) {
			b.High = b.Close
		}
		if !positive(b.Low) {
			b.Low = b.Close
		}
		b.High = math.Max(b.High, math.Max(b.Open, b.Close))
		b.Low = math.Min(b.Low, math.Min(b.Open, b.Close))
		if b.Volume < 0 || math.IsNaN(b.Volume) || math.IsInf(b.Volume, 0) {
			b.Volume = 0
		}
		out = append(out, b)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })

	// Duplicate timestamps: the later entry wins.
	dedup := out[:0]
	for _, b := range out {
		if n := len(dedup); n > 0 && dedup[n-1].Timestamp.Equal(b.Timestamp) {
			dedup[n-1] = b
			continue
		}
		dedup = append(dedup, b)
	}

	if len(dedup) == 0 {
		return nil, ErrEmptyPayload
	}
	if limit > 0 && len(dedup) > limit {
		dedup = dedup[len(dedup)-limit:]
	}
	return dedup, nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// bucketStart returns the start of the tf bucket containing t. Weekly
// buckets start on ISO Monday 00:00 UTC.
func bucketStart(t time.Time, tf model.Timeframe) time.Time {
	t = t.UTC()
	if tf == model.TF1w {
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, time.UTC)
	}
	return t.Truncate(tf.Duration())
}

// resample aggregates ascending finer-grained bars into tf buckets.
func resample(bars []model.PriceBar, tf model.Timeframe) []model.PriceBar {
	if len(bars) == 0 {
		return nil
	}
	var out []model.PriceBar
	var cur model.PriceBar
	started := false

	for _, b := range bars {
		start := bucketStart(b.Timestamp, tf)
		if !started || !start.Equal(cur.Timestamp) {
			if started {
				out = append(out, cur)
			}
			cur = model.PriceBar{Timestamp: start, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
			started = true
			continue
		}
		if b.High > cur.High {
			cur.High = b.High
		}
		if b.Low < cur.Low {
			cur.Low = b.Low
		}
		cur.Close = b.Close
		cur.Volume += b.Volume
	}
	out = append(out, cur)
	return out
}
