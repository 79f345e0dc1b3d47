package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/pelotond/config"
)

// Nil is returned by reads of missing keys.
var Nil = redis.Nil

// Client wraps a go-redis client with the handful of helpers the
// repositories share. GetClient exposes the underlying client for pipelines,
// scripts and pub/sub.
type Client struct {
	cli      *redis.Client
	embedded *miniredis.Miniredis
}

func NewClient(cfg config.RedisConfig) (*Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	cli := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})
	return &Client{cli: cli}, nil
}

// NewEmbedded starts an in-process Redis. It backs single-instance
// deployments running with REDIS_ENABLED=false, and tests.
func NewEmbedded() (*Client, error) {
	mr, err := miniredis.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start embedded redis: %w", err)
	}
	return &Client{cli: redis.NewClient(&redis.Options{Addr: mr.Addr()}), embedded: mr}, nil
}

func (c *Client) GetClient() *redis.Client {
	return c.cli
}

// Embedded returns the in-process server, or nil for a real connection.
func (c *Client) Embedded() *miniredis.Miniredis {
	return c.embedded
}

func (c *Client) Ping(ctx context.Context) error {
	return c.cli.Ping(ctx).Err()
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	return c.cli.Get(ctx, key).Bytes()
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.cli.Set(ctx, key, value, ttl).Err()
}

func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	return c.cli.Incr(ctx, key).Result()
}

func (c *Client) Close() error {
	err := c.cli.Close()
	if c.embedded != nil {
		c.embedded.Close()
	}
	return err
}
