package collector

import (
	"context"
	"errors"

	"CryptoLens/internal/model"
)

// Provider fetches a price series from one upstream API.
type Provider interface {
	Fetch(ctx context.Context, pair model.AssetPair, tf model.Timeframe, limit int) (*model.PriceSeries, error)
	Name() string
}

var (
	ErrNoProviderSucceeded = errors.New("no provider succeeded")
	ErrUnsupportedPair     = errors.New("pair not supported by provider")
	ErrEmptyPayload        = errors.New("empty payload")
	ErrRejected            = errors.New("series failed reasonability check")
	ErrNotConfigured       = errors.New("provider not configured")
)
