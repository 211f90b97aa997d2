// Package redis backs the market's shared coordination state with
// go-redis/v9: the event bus, distributed locks, rate limits and request
// nonces.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces every key this package writes.
const keyPrefix = "nftmart:"

const clientName = "nftmartd"

// ClientConfig holds connection parameters for the Redis client. Addr is
// either host:port or a redis:// or rediss:// URL; URL fields win over the
// discrete ones.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
}

// Client wraps a go-redis Client.
type Client struct {
	rdb *redis.Client
}

// New connects and pings the server.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb}, nil
}

func options(cfg ClientConfig) (*redis.Options, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if strings.HasPrefix(cfg.Addr, "redis://") || strings.HasPrefix(cfg.Addr, "rediss://") {
		parsed, err := redis.ParseURL(cfg.Addr)
		if err != nil {
			return nil, fmt.Errorf("redis: parse addr: %w", err)
		}
		opts = parsed
	}
	opts.ClientName = clientName
	opts.PoolSize = cfg.PoolSize
	opts.MaxRetries = cfg.MaxRetries
	opts.DialTimeout = 5 * time.Second
	opts.ContextTimeoutEnabled = true
	if cfg.TLSEnabled && opts.TLSConfig == nil {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}

// Wrap adopts an existing go-redis client.
func Wrap(rdb *redis.Client) *Client { return &Client{rdb: rdb} }

// Ping checks the connection; the health handler calls it.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Underlying returns the raw driver client.
func (c *Client) Underlying() *redis.Client {
	return c.rdb
}
