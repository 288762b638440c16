// Package publish pushes finished analyses to Redis so other processes and
// websocket gateways can fan them out.
package publish

import (
	"context"
	"errors"

	"CryptoLens/internal/model"
)

const (
	channelPrefix = "cryptolens:analysis:"
	latestPrefix  = "cryptolens:latest:"

	// ChannelPattern matches every analysis channel.
	ChannelPattern = channelPrefix + "*"
)

// ErrNotFound is returned by Latest when nothing was published yet.
var ErrNotFound = errors.New("no published analysis")

// Channel is the pub/sub channel for pair and tf, e.g. cryptolens:analysis:BTCUSDT:1h.
func Channel(pair model.AssetPair, tf model.Timeframe) string {
	return channelPrefix + pair.Symbol() + ":" + string(tf)
}

// LatestKey holds the most recent payload for pair and tf.
func LatestKey(pair model.AssetPair, tf model.Timeframe) string {
	return latestPrefix + pair.Symbol() + ":" + string(tf)
}

// Publisher distributes encoded analysis payloads.
type Publisher interface {
	Publish(ctx context.Context, pair model.AssetPair, tf model.Timeframe, payload []byte) error
	Latest(ctx context.Context, pair model.AssetPair, tf model.Timeframe) ([]byte, error)
	Close() error
}

// NoopPublisher is used when Redis is not configured.
type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher { return &NoopPublisher{} }

func (NoopPublisher) Publish(context.Context, model.AssetPair, model.Timeframe, []byte) error {
	return nil
}

func (NoopPublisher) Latest(context.Context, model.AssetPair, model.Timeframe) ([]byte, error) {
	return nil, ErrNotFound
}

func (NoopPublisher) Close() error { return nil }
