package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ManuelReschke/BookfoldAR/internal/pkg/config"
)

// NewClient creates the redis client shared by the trial cache and the rate
// limiter. An unreachable server is logged, not fatal: the cache is advisory.
func NewClient(cfg config.CacheConfig, log *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     Addr(cfg),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("could not connect to cache", zap.String("addr", Addr(cfg)), zap.Error(err))
	} else {
		log.Info("connected to cache", zap.String("addr", Addr(cfg)))
	}
	return client
}

func Addr(cfg config.CacheConfig) string {
	return fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
}

// NewLimiterStorage returns redis-backed storage for the rate limiter on the
// database after the cache's. It returns nil when redis is unreachable, which
// makes the limiter fall back to in-process counters.
func NewLimiterStorage(cfg config.CacheConfig, client *redis.Client, log *zap.Logger) fiber.Storage {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("rate limiter uses in-memory storage", zap.Error(err))
		return nil
	}

	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		port = 6379
	}
	return redisstorage.New(redisstorage.Config{
		Host:     cfg.Host,
		Port:     port,
		Password: cfg.Password,
		Database: cfg.DB + 1,
		Reset:    false,
	})
}
