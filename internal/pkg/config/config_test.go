package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/BookfoldAR/internal/pkg/apperrors"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/env"
)

func withEnv(t *testing.T, values map[string]string) {
	t.Helper()
	prev := env.Env
	env.Env = values
	t.Cleanup(func() { env.Env = prev })
}

func TestLoadDefaults(t *testing.T) {
	withEnv(t, map[string]string{})

	cfg := Load()
	assert.Equal(t, "4000", cfg.App.Port)
	assert.Equal(t, 15*time.Second, cfg.App.RequestTimeout)
	assert.Equal(t, int64(2499), cfg.Product.Amount)
	assert.Equal(t, "usd", cfg.Product.Currency)
	assert.False(t, cfg.Archive.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	withEnv(t, map[string]string{
		"REQUEST_TIMEOUT":  "5s",
		"RATE_LIMIT_MAX":   "not-a-number",
		"PRODUCT_CURRENCY": "EUR",
	})

	cfg := Load()
	assert.Equal(t, 5*time.Second, cfg.App.RequestTimeout)
	assert.Equal(t, 30, cfg.App.RateLimitMax)
	assert.Equal(t, "eur", cfg.Product.Currency)
}

func TestValidateListsMissingKeysWithoutValues(t *testing.T) {
	withEnv(t, map[string]string{
		"STRIPE_SECRET_KEY": "sk_test_supersecret",
		"DB_USER":           "bookfoldar",
	})

	err := Load().Validate()
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConfiguration))
	assert.Contains(t, err.Error(), "STRIPE_WEBHOOK_SECRET")
	assert.Contains(t, err.Error(), "STRIPE_PRICE_ID")
	assert.Contains(t, err.Error(), "DB_PASSWORD")
	assert.NotContains(t, err.Error(), "sk_test_supersecret")
	assert.NotContains(t, err.Error(), "STRIPE_SECRET_KEY")
}

func TestValidateComplete(t *testing.T) {
	withEnv(t, map[string]string{
		"STRIPE_SECRET_KEY":     "sk_test_1",
		"STRIPE_WEBHOOK_SECRET": "whsec_1",
		"STRIPE_PRICE_ID":       "price_1",
		"DB_USER":               "u",
		"DB_PASSWORD":           "p",
		"DB_NAME":               "bookfoldar",
	})
	assert.NoError(t, Load().Validate())
}

func TestValidateArchiveRequiresBucket(t *testing.T) {
	withEnv(t, map[string]string{
		"STRIPE_SECRET_KEY":     "sk_test_1",
		"STRIPE_WEBHOOK_SECRET": "whsec_1",
		"STRIPE_PRICE_ID":       "price_1",
		"DB_USER":               "u",
		"DB_PASSWORD":           "p",
		"DB_NAME":               "bookfoldar",
		"S3_ARCHIVE_ENABLED":    "true",
		"S3_ACCESS_KEY_ID":      "key",
		"S3_SECRET_ACCESS_KEY":  "secret",
	})
	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3_BUCKET_NAME")
}
