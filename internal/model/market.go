package model

import "time"

// PriceBar represents a single candlestick bar.
type PriceBar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// PriceSeries holds bars ascending by timestamp. A series returned by the
// collector is treated as immutable; derive new slices instead of editing Bars.
type PriceSeries struct {
	Pair      AssetPair  `json:"pair"`
	Timeframe Timeframe  `json:"timeframe"`
	Source    string     `json:"source"`
	FetchedAt time.Time  `json:"fetched_at"`
	Bars      []PriceBar `json:"bars"`
}

// Len returns the number of bars.
func (s *PriceSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// Latest returns the most recent bar. ok is false for an empty series.
func (s *PriceSeries) Latest() (PriceBar, bool) {
	if s.Len() == 0 {
		return PriceBar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Tail returns a shallow copy holding at most the last n bars.
func (s *PriceSeries) Tail(n int) *PriceSeries {
	out := *s
	if n > 0 && len(s.Bars) > n {
		out.Bars = s.Bars[len(s.Bars)-n:]
	}
	return &out
}

func (s *PriceSeries) Closes() []float64 {
	return s.column(func(b PriceBar) float64 { return b.Close })
}

func (s *PriceSeries) Highs() []float64 {
	return s.column(func(b PriceBar) float64 { return b.High })
}

func (s *PriceSeries) Lows() []float64 {
	return s.column(func(b PriceBar) float64 { return b.Low })
}

func (s *PriceSeries) Volumes() []float64 {
	return s.column(func(b PriceBar) float64 { return b.Volume })
}

func (s *PriceSeries) column(pick func(PriceBar) float64) []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = pick(b)
	}
	return out
}
