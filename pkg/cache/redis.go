// Package cache provides Redis-based coordination utilities.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps redis.Client with additional functionality.
type Client struct {
	*redis.Client
	logger    *slog.Logger
	keyPrefix string
}

// Connect creates a new Redis connection from a redis:// URL and verifies it.
func Connect(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Client{
		Client: client,
		logger: slog.Default(),
	}, nil
}

// WithLogger sets the logger for the client.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// WithKeyPrefix sets a prefix for all keys.
func (c *Client) WithKeyPrefix(prefix string) *Client {
	c.keyPrefix = prefix
	return c
}

func (c *Client) prefixedKey(key string) string {
	if c.keyPrefix == "" {
		return key
	}
	return c.keyPrefix + ":" + key
}

// Get retrieves a value. A missing key returns "" with no error.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	result, err := c.Client.Get(ctx, c.prefixedKey(key)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return result, err
}

// Set stores a string value with an expiration.
func (c *Client) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	return c.Client.Set(ctx, c.prefixedKey(key), value, expiration).Err()
}

// Incr increments a counter.
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	return c.Client.Incr(ctx, c.prefixedKey(key)).Result()
}

// Counter reads a counter, treating a missing key as zero.
func (c *Client) Counter(ctx context.Context, key string) (int64, error) {
	result, err := c.Client.Get(ctx, c.prefixedKey(key)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return result, err
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.Client.Close()
}

// Lease is a best-effort cross-process mutex built on SET NX with a TTL.
// The TTL bounds how long a crashed holder can block other processes.
type Lease struct {
	client *Client
	key    string
	token  string
	ttl    time.Duration
}

// NewLease creates a lease on the given key.
func NewLease(client *Client, key, token string, ttl time.Duration) *Lease {
	return &Lease{client: client, key: key, token: token, ttl: ttl}
}

// Acquire attempts to take the lease. Returns false if another holder has it.
func (l *Lease) Acquire(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.client.prefixedKey(l.key), l.token, l.ttl).Result()
}

// Release gives up the lease if this holder still owns it.
func (l *Lease) Release(ctx context.Context) error {
	key := l.client.prefixedKey(l.key)
	current, err := l.client.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if current != l.token {
		// Expired and re-acquired by someone else; nothing to release.
		return nil
	}
	return l.client.Client.Del(ctx, key).Err()
}
