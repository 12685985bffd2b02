package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL constants
const (
	TTLDirectory = 5 * time.Minute  // employee directory (changes rarely)
	TTLSnapshot  = 15 * time.Second // inbox/sent snapshots (bounded staleness)
	TTLDefault   = 1 * time.Minute  // fallback
)

// Cache key prefixes
const (
	PrefixDirectory = "directory:"
	PrefixSnapshot  = "snapshot:"
)

// Service Redis-backed cache shared by gateway replicas
type Service interface {
	// Generic operations
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Employee directory (one blob per tenant)
	GetDirectory(ctx context.Context, companyID string, dest interface{}) error
	SetDirectory(ctx context.Context, companyID string, data interface{}) error
	InvalidateDirectory(ctx context.Context, companyID string) error

	// Per-user inbox/sent snapshots
	GetSnapshot(ctx context.Context, userID string, dest interface{}) error
	SetSnapshot(ctx context.Context, userID string, data interface{}) error
	InvalidateSnapshot(ctx context.Context, userID string) error

	// Utility
	IsAvailable() bool
	Ping(ctx context.Context) error
}

// redisCache Redis-backed implementation. All operations are nil-safe so
// the gateway keeps working (uncached) when Redis is down or not configured.
type redisCache struct {
	client *redis.Client
}

// NewService creates a cache service
func NewService(client *redis.Client) Service {
	return &redisCache{client: client}
}

// IsAvailable reports whether a Redis client is attached
func (c *redisCache) IsAvailable() bool {
	return c.client != nil
}

// Ping tests the Redis connection
func (c *redisCache) Ping(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return c.client.Ping(ctx).Err()
}

// Get reads a JSON value from the cache
func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return fmt.Errorf("redis not available")
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}

	return json.Unmarshal(data, dest)
}

// Set stores a JSON value in the cache
func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil {
		return nil // no Redis, silently skip
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if ttl <= 0 {
		ttl = TTLDefault
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

// Delete removes keys from the cache
func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Exists reports whether a key is present
func (c *redisCache) Exists(ctx context.Context, key string) (bool, error) {
	if c.client == nil {
		return false, nil
	}
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetDirectory reads the cached employee directory for a tenant
func (c *redisCache) GetDirectory(ctx context.Context, companyID string, dest interface{}) error {
	return c.Get(ctx, PrefixDirectory+companyID, dest)
}

// SetDirectory caches the employee directory for a tenant
func (c *redisCache) SetDirectory(ctx context.Context, companyID string, data interface{}) error {
	return c.Set(ctx, PrefixDirectory+companyID, data, TTLDirectory)
}

// InvalidateDirectory drops the cached directory for a tenant
func (c *redisCache) InvalidateDirectory(ctx context.Context, companyID string) error {
	return c.Delete(ctx, PrefixDirectory+companyID)
}

// GetSnapshot reads the cached message snapshot for a user
func (c *redisCache) GetSnapshot(ctx context.Context, userID string, dest interface{}) error {
	return c.Get(ctx, PrefixSnapshot+userID, dest)
}

// SetSnapshot caches the message snapshot for a user
func (c *redisCache) SetSnapshot(ctx context.Context, userID string, data interface{}) error {
	return c.Set(ctx, PrefixSnapshot+userID, data, TTLSnapshot)
}

// InvalidateSnapshot drops the cached snapshot for a user
func (c *redisCache) InvalidateSnapshot(ctx context.Context, userID string) error {
	return c.Delete(ctx, PrefixSnapshot+userID)
}
