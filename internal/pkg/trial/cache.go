package trial

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/BookfoldAR/app/models"
)

const (
	cacheKeyPrefix = "trial:"
	// cacheGrace keeps an expired copy around for a while so a store outage
	// right after expiry still resolves to "expired" instead of "unknown".
	cacheGrace = 7 * 24 * time.Hour
)

// Cache is the advisory local copy of trial records. It is consulted only
// when the store cannot be reached and is never authoritative.
type Cache interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, email string) (*models.Trial, error)
	Put(ctx context.Context, trial *models.Trial) error
	Delete(ctx context.Context, email string) error
}

// RedisCache keeps trial copies in redis as JSON.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, email string) (*models.Trial, error) {
	raw, err := c.client.Get(ctx, cacheKeyPrefix+email).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var t models.Trial
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *RedisCache) Put(ctx context.Context, trial *models.Trial) error {
	raw, err := json.Marshal(trial)
	if err != nil {
		return err
	}
	ttl := time.Until(trial.ExpiryTime) + cacheGrace
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return c.client.Set(ctx, cacheKeyPrefix+trial.Email, raw, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, email string) error {
	return c.client.Del(ctx, cacheKeyPrefix+email).Err()
}

// NopCache never stores anything.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*models.Trial, error) { return nil, nil }
func (NopCache) Put(context.Context, *models.Trial) error           { return nil }
func (NopCache) Delete(context.Context, string) error               { return nil }

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu     sync.Mutex
	trials map[string]models.Trial
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{trials: make(map[string]models.Trial)}
}

func (c *MemoryCache) Get(_ context.Context, email string) (*models.Trial, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.trials[email]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (c *MemoryCache) Put(_ context.Context, trial *models.Trial) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trials[trial.Email] = *trial
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, email string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.trials, email)
	return nil
}
