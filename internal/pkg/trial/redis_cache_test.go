package trial

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/BookfoldAR/app/models"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/env"
)

const isolatedTrialTestRedisDB = 13

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := fmt.Sprintf("%s:%s", env.GetEnv("CACHE_HOST", "localhost"), env.GetEnv("CACHE_PORT", "6379"))
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       isolatedTrialTestRedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Skipping Redis-dependent test: no reachable Redis endpoint (%v)", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisCache_RoundTrip(t *testing.T) {
	client := newTestRedis(t)
	cache := NewRedisCache(client)
	ctx := context.Background()
	email := fmt.Sprintf("redis-%d@example.com", time.Now().UnixNano())
	t.Cleanup(func() { _ = cache.Delete(ctx, email) })

	miss, err := cache.Get(ctx, email)
	require.NoError(t, err)
	assert.Nil(t, miss)

	start := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, cache.Put(ctx, &models.Trial{Email: email, StartTime: start, ExpiryTime: start.Add(Duration)}))

	got, err := cache.Get(ctx, email)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, start.Add(Duration).Equal(got.ExpiryTime))

	ttl, err := client.TTL(ctx, cacheKeyPrefix+email).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, Duration)

	require.NoError(t, cache.Delete(ctx, email))
	gone, err := cache.Get(ctx, email)
	require.NoError(t, err)
	assert.Nil(t, gone)
}
