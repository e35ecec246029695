// Package summarycache keeps the library summary in Redis for a short time.
package summarycache

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"github.com/AntonStoeckl/library-lending-go/lending/statistics"
)

const (
	// DefaultKey is the Redis key of the cached summary.
	DefaultKey = "library:summary"

	// DefaultTTL is how long a cached summary is served.
	DefaultTTL = 30 * time.Second
)

var (
	// ErrNilClient is returned when no Redis client is given.
	ErrNilClient = errors.New("redis client must not be nil")

	// ErrInvalidTTL is returned for a non-positive TTL.
	ErrInvalidTTL = errors.New("cache ttl must be positive")

	// ErrInvalidPayload is returned when the cached value is not valid JSON.
	ErrInvalidPayload = errors.New("cached library summary is not valid json")
)

// Cache is a statistics.SummaryCache on top of Redis.
type Cache struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

// Option configures a Cache.
type Option func(*Cache) error

// WithKey overrides DefaultKey.
func WithKey(key string) Option {
	return func(c *Cache) error {
		if key != "" {
			c.key = key
		}

		return nil
	}
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) error {
		if ttl <= 0 {
			return ErrInvalidTTL
		}

		c.ttl = ttl

		return nil
	}
}

// New creates a Cache using client.
func New(client redis.Cmdable, options ...Option) (Cache, error) {
	if client == nil {
		return Cache{}, ErrNilClient
	}

	c := Cache{client: client, key: DefaultKey, ttl: DefaultTTL}

	for _, option := range options {
		if err := option(&c); err != nil {
			return Cache{}, err
		}
	}

	return c, nil
}

// Load returns the cached summary. A missing or expired key is a miss, not an error.
func (c Cache) Load(ctx context.Context) (statistics.LibrarySummary, bool, error) {
	payload, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return statistics.LibrarySummary{}, false, nil
	}

	if err != nil {
		return statistics.LibrarySummary{}, false, fmt.Errorf("load library summary: %w", err)
	}

	if !jsoniter.ConfigFastest.Valid(payload) {
		return statistics.LibrarySummary{}, false, ErrInvalidPayload
	}

	var summary statistics.LibrarySummary
	if err = jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(payload, &summary); err != nil {
		return statistics.LibrarySummary{}, false, fmt.Errorf("decode library summary: %w", err)
	}

	return summary, true, nil
}

// Save stores summary for the configured TTL.
func (c Cache) Save(ctx context.Context, summary statistics.LibrarySummary) error {
	payload, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode library summary: %w", err)
	}

	if err = c.client.Set(ctx, c.key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("save library summary: %w", err)
	}

	return nil
}

// Invalidate drops the cached summary.
func (c Cache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("invalidate library summary: %w", err)
	}

	return nil
}
