// Package redis opens the Redis connection that carries ledger events to
// live subscribers.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"aidtrace/internal/platform/config"
)

// Client is a connected Redis client bound to the event channel.
type Client struct {
	redis.UniversalClient
	channel string
}

// Open connects with cfg. It returns nil, nil when no URL is configured.
// Zero pool and timeout settings keep the go-redis defaults.
func Open(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse AIDTRACE_REDIS_URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	return &Client{UniversalClient: rdb, channel: cfg.Channel}, nil
}

// Channel is the pub/sub channel ledger events are published on.
func (c *Client) Channel() string { return c.channel }

// Health is the /healthz probe.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// SubscribeEvents subscribes to the event channel and waits until the server
// confirms, so no event published afterwards is missed.
func (c *Client) SubscribeEvents(ctx context.Context) (*redis.PubSub, error) {
	sub := c.Subscribe(ctx, c.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", c.channel, err)
	}
	return sub, nil
}
