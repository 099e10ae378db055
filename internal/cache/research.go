package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResearchCache stores research text keyed by model + question content,
// so repeated runs over the same question reuse one research call.
type ResearchCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, text string) error
	Close() error
}

type redisResearchCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisResearchCache connects a research cache to redis.
func NewRedisResearchCache(addr, password string, db int, ttl time.Duration) (ResearchCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &redisResearchCache{client: client, ttl: ttl, prefix: "research"}, nil
}

func (c *redisResearchCache) key(k string) string {
	return fmt.Sprintf("%s:%s", c.prefix, k)
}

func (c *redisResearchCache) Get(ctx context.Context, key string) (string, bool, error) {
	if c == nil || c.client == nil {
		return "", false, nil
	}
	val, err := c.client.Get(ctx, c.key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *redisResearchCache) Set(ctx context.Context, key string, text string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Set(ctx, c.key(key), text, c.ttl).Err()
}

func (c *redisResearchCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Key derives a stable cache key as the SHA256 of the provided strings
// with newline separators.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
