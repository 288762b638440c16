package collector

import (
	"context"
	"sync/atomic"
	"time"

	"CryptoLens/internal/model"
)

// MockProvider returns generated or fixed data for development and testing.
type MockProvider struct {
	ProviderName string
	Price        float64
	Series       *model.PriceSeries
	Err          error
	Delay        time.Duration

	calls atomic.Int64
}

func (m *MockProvider) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

// Calls returns how many times Fetch ran.
func (m *MockProvider) Calls() int {
	return int(m.calls.Load())
}

func (m *MockProvider) Fetch(ctx context.Context, pair model.AssetPair, tf model.Timeframe, limit int) (*model.PriceSeries, error) {
	m.calls.Add(1)
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Series != nil {
		return m.Series, nil
	}
	price := m.Price
	if price <= 0 {
		price = BackupPrices[pair.Base]
	}
	if price <= 0 {
		price = 100
	}
	return &model.PriceSeries{
		Pair:      pair,
		Timeframe: tf,
		Source:    m.Name(),
		FetchedAt: time.Now(),
		Bars:      generateMockBars(price, tf, limit),
	}, nil
}

// generateMockBars produces a gentle uptrend ending at basePrice.
func generateMockBars(basePrice float64, tf model.Timeframe, count int) []model.PriceBar {
	end := time.Now().Truncate(tf.Duration())
	bars := make([]model.PriceBar, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count+1)*0.001)
		bars[i] = model.PriceBar{
			Timestamp: end.Add(-time.Duration(count-1-i) * tf.Duration()),
			Open:      p * 0.999,
			High:      p * 1.005,
			Low:       p * 0.995,
			Close:     p,
			Volume:    1000000,
		}
	}
	return bars
}
