package publish

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"CryptoLens/internal/model"
)

const defaultLatestTTL = 30 * time.Minute

// Config configures the Redis publisher.
type Config struct {
	Addr      string // e.g. "localhost:6379"
	Password  string
	DB        int
	LatestTTL time.Duration
}

// RedisPublisher writes the latest payload and publishes it in one pipeline.
type RedisPublisher struct {
	client    *goredis.Client
	latestTTL time.Duration
}

// New connects to Redis and pings the server.
func New(cfg Config) (*RedisPublisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[INFO] redis publisher connected to %s", cfg.Addr)
	return NewWithClient(client, cfg.LatestTTL), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, latestTTL time.Duration) *RedisPublisher {
	if latestTTL <= 0 {
		latestTTL = defaultLatestTTL
	}
	return &RedisPublisher{client: client, latestTTL: latestTTL}
}

// Client returns the underlying Redis client for health checks.
func (p *RedisPublisher) Client() *goredis.Client { return p.client }

func (p *RedisPublisher) Publish(ctx context.Context, pair model.AssetPair, tf model.Timeframe, payload []byte) error {
	pipe := p.client.Pipeline()
	pipe.Set(ctx, LatestKey(pair, tf), payload, p.latestTTL)
	pipe.Publish(ctx, Channel(pair, tf), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish %s %s: %w", pair, tf, err)
	}
	return nil
}

func (p *RedisPublisher) Latest(ctx context.Context, pair model.AssetPair, tf model.Timeframe) ([]byte, error) {
	data, err := p.client.Get(ctx, LatestKey(pair, tf)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis GET %s: %w", LatestKey(pair, tf), err)
	}
	return data, nil
}

// Subscribe delivers every analysis published by any instance to handle.
// Blocks until ctx is cancelled.
func (p *RedisPublisher) Subscribe(ctx context.Context, handle func(channel string, payload []byte)) {
	pubsub := p.client.PSubscribe(ctx, ChannelPattern)
	defer pubsub.Close()

	log.Printf("[INFO] subscribed to %s", ChannelPattern)
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			handle(msg.Channel, []byte(msg.Payload))
		}
	}
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
