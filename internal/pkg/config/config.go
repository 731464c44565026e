// Package config turns the environment into one typed Config that is built
// once at startup and handed to every component.
package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/ManuelReschke/BookfoldAR/internal/pkg/apperrors"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/env"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Stripe   StripeConfig
	Product  ProductConfig
	Archive  ArchiveConfig
}

type AppConfig struct {
	Env            string
	Host           string
	Port           string
	RequestTimeout time.Duration
	RateLimitMax   int
	MetricsUser    string
	MetricsPass    string
}

type DatabaseConfig struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
}

type CacheConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	PriceID       string
}

// ProductConfig describes the single one-time product.
type ProductConfig struct {
	Name        string
	Description string
	// Amount is in minor units (cents).
	Amount   int64
	Currency string
}

type ArchiveConfig struct {
	Enabled         bool
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string
}

// Load reads the configuration from env.GetEnv. It does not validate.
func Load() *Config {
	return &Config{
		App: AppConfig{
			Env:            env.GetEnv("APP_ENV", "prod"),
			Host:           env.GetEnv("APP_HOST", "localhost"),
			Port:           env.GetEnv("APP_PORT", "4000"),
			RequestTimeout: getDuration("REQUEST_TIMEOUT", 15*time.Second),
			RateLimitMax:   getInt("RATE_LIMIT_MAX", 30),
			MetricsUser:    env.GetEnv("METRICS_USER", ""),
			MetricsPass:    env.GetEnv("METRICS_PASSWORD", ""),
		},
		Database: DatabaseConfig{
			User:     env.GetEnv("DB_USER", ""),
			Password: env.GetEnv("DB_PASSWORD", ""),
			Host:     env.GetEnv("DB_HOST", "127.0.0.1"),
			Port:     env.GetEnv("DB_PORT", "3306"),
			Name:     env.GetEnv("DB_NAME", ""),
		},
		Cache: CacheConfig{
			Host:     env.GetEnv("CACHE_HOST", "localhost"),
			Port:     env.GetEnv("CACHE_PORT", "6379"),
			Password: env.GetEnv("CACHE_PASSWORD", ""),
			DB:       getInt("CACHE_DB", 0),
		},
		Stripe: StripeConfig{
			SecretKey:     strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
			WebhookSecret: strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
			PriceID:       strings.TrimSpace(env.GetEnv("STRIPE_PRICE_ID", "")),
		},
		Product: ProductConfig{
			Name:        env.GetEnv("PRODUCT_NAME", "BookfoldAR Full Access"),
			Description: env.GetEnv("PRODUCT_DESCRIPTION", "One-time payment for lifetime access to all AR features"),
			Amount:      int64(getInt("PRODUCT_AMOUNT", 2499)),
			Currency:    strings.ToLower(env.GetEnv("PRODUCT_CURRENCY", "usd")),
		},
		Archive: ArchiveConfig{
			Enabled:         env.GetEnv("S3_ARCHIVE_ENABLED", "false") == "true",
			AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
			Region:          env.GetEnv("S3_REGION", "us-east-1"),
			BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
			EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		},
	}
}

// Validate reports every missing required key in one configuration error.
// Values are never included.
func (c *Config) Validate() error {
	var missing []string
	required := []struct {
		key   string
		value string
	}{
		{"STRIPE_SECRET_KEY", c.Stripe.SecretKey},
		{"STRIPE_WEBHOOK_SECRET", c.Stripe.WebhookSecret},
		{"STRIPE_PRICE_ID", c.Stripe.PriceID},
		{"DB_USER", c.Database.User},
		{"DB_PASSWORD", c.Database.Password},
		{"DB_NAME", c.Database.Name},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	if c.Archive.Enabled {
		if c.Archive.AccessKeyID == "" {
			missing = append(missing, "S3_ACCESS_KEY_ID")
		}
		if c.Archive.SecretAccessKey == "" {
			missing = append(missing, "S3_SECRET_ACCESS_KEY")
		}
		if c.Archive.BucketName == "" {
			missing = append(missing, "S3_BUCKET_NAME")
		}
	}
	if len(missing) > 0 {
		return apperrors.Configuration(missing...)
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.App.Env == "dev"
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(env.GetEnv(key, ""))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(env.GetEnv(key, ""))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
