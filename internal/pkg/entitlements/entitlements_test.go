package entitlements

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ManuelReschke/BookfoldAR/app/models"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/apperrors"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/store"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/trial"
)

var now = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestResolver() (*Resolver, *store.MemoryRepository, *trial.MemoryCache) {
	repo := store.NewMemoryRepository()
	cache := trial.NewMemoryCache()
	ledger := trial.NewLedger(repo, cache, zap.NewNop()).WithClock(func() time.Time { return now })
	return NewResolver(repo, ledger, zap.NewNop()), repo, cache
}

func paid(email string) models.Purchase {
	p := models.NewPendingPurchase(email, "cs_"+email, 2499, "usd")
	p.Status = models.PurchaseStatusPaid
	return *p
}

func TestCheckAccess(t *testing.T) {
	tests := []struct {
		name  string
		seed  func(repo *store.MemoryRepository)
		email string
		want  Decision
	}{
		{
			name:  "unknown email gets a fresh trial",
			email: "new@example.com",
			want:  Decision{HasActiveAccess: false, Tier: TierTrial, TrialDaysRemaining: 3},
		},
		{
			name: "active trial",
			seed: func(repo *store.MemoryRepository) {
				repo.PutTrial(models.Trial{Email: "reader@example.com", StartTime: now.Add(-30 * time.Hour), ExpiryTime: now.Add(42 * time.Hour)})
			},
			email: "reader@example.com",
			want:  Decision{HasActiveAccess: false, Tier: TierTrial, TrialDaysRemaining: 2},
		},
		{
			name: "expired trial is not re-provisioned",
			seed: func(repo *store.MemoryRepository) {
				repo.PutTrial(models.Trial{Email: "reader@example.com", StartTime: now.Add(-100 * time.Hour), ExpiryTime: now.Add(-28 * time.Hour)})
			},
			email: "reader@example.com",
			want:  Decision{HasActiveAccess: false, Tier: TierNone, TrialDaysRemaining: 0},
		},
		{
			name: "paid beats an unexpired trial",
			seed: func(repo *store.MemoryRepository) {
				repo.PutTrial(models.Trial{Email: "reader@example.com", StartTime: now, ExpiryTime: now.Add(trial.Duration)})
				repo.PutPurchase(paid("reader@example.com"))
			},
			email: "Reader@Example.com",
			want:  Decision{HasActiveAccess: true, Tier: TierLifetime, TrialDaysRemaining: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver, repo, _ := newTestResolver()
			if tt.seed != nil {
				tt.seed(repo)
			}

			got, err := resolver.CheckAccess(context.Background(), tt.email)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckAccess_InvalidEmail(t *testing.T) {
	resolver, repo, _ := newTestResolver()

	_, err := resolver.CheckAccess(context.Background(), "nope")
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	assert.Equal(t, 0, repo.Mutations())
}

func TestCheckAccess_PaidDropsCachedTrial(t *testing.T) {
	resolver, repo, cache := newTestResolver()
	ctx := context.Background()

	_, err := resolver.CheckAccess(ctx, "reader@example.com")
	require.NoError(t, err)
	cached, _ := cache.Get(ctx, "reader@example.com")
	require.NotNil(t, cached)

	repo.PutPurchase(paid("reader@example.com"))
	got, err := resolver.CheckAccess(ctx, "reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, TierLifetime, got.Tier)

	cached, _ = cache.Get(ctx, "reader@example.com")
	assert.Nil(t, cached)
}

func TestCheckAccess_ConcurrentFirstCallsProvisionOnce(t *testing.T) {
	resolver, repo, _ := newTestResolver()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := resolver.CheckAccess(context.Background(), "reader@example.com")
			assert.NoError(t, err)
			assert.Equal(t, TierTrial, got.Tier)
			assert.Equal(t, 3, got.TrialDaysRemaining)
		}()
	}
	wg.Wait()

	assert.Len(t, repo.Trials(), 1)
}

func TestCheckAccess_StoreDownFailsClosed(t *testing.T) {
	resolver, repo, _ := newTestResolver()
	repo.FailAll(errors.New("connection refused"))

	got, err := resolver.CheckAccess(context.Background(), "reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, Decision{Tier: TierNone}, got)
}

func TestCheckAccess_StoreDownUsesUnexpiredCachedTrial(t *testing.T) {
	resolver, repo, cache := newTestResolver()
	ctx := context.Background()
	require.NoError(t, cache.Put(ctx, &models.Trial{Email: "reader@example.com", StartTime: now, ExpiryTime: now.Add(trial.Duration)}))
	require.NoError(t, cache.Put(ctx, &models.Trial{Email: "old@example.com", StartTime: now.Add(-96 * time.Hour), ExpiryTime: now.Add(-24 * time.Hour)}))

	repo.FailAll(errors.New("connection refused"))

	got, err := resolver.CheckAccess(ctx, "reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, Decision{Tier: TierTrial, TrialDaysRemaining: 3}, got)

	got, err = resolver.CheckAccess(ctx, "old@example.com")
	require.NoError(t, err)
	assert.Equal(t, Decision{Tier: TierNone}, got)
}

func TestCheckAccess_ProvisioningFailureIsStoreError(t *testing.T) {
	resolver, repo, _ := newTestResolver()
	repo.FailOn("CreateTrialIfNotExists", errors.New("deadlock"))

	_, err := resolver.CheckAccess(context.Background(), "reader@example.com")
	assert.True(t, apperrors.IsKind(err, apperrors.KindStore))
	assert.Equal(t, 500, apperrors.StatusCode(err))
}
