package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/BookfoldAR/app/models"
)

func TestMemoryRepository_CreateTrialIfNotExists(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	created, first, err := repo.CreateTrialIfNotExists(ctx, &models.Trial{
		Email: "reader@example.com", StartTime: start, ExpiryTime: start.Add(72 * time.Hour),
	})
	require.NoError(t, err)
	assert.True(t, created)

	later := start.Add(time.Hour)
	created, second, err := repo.CreateTrialIfNotExists(ctx, &models.Trial{
		Email: "reader@example.com", StartTime: later, ExpiryTime: later.Add(72 * time.Hour),
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ExpiryTime, second.ExpiryTime)
	assert.Len(t, repo.Trials(), 1)
}

func TestMemoryRepository_ConcurrentClaims(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := repo.ClaimEvent(ctx, &models.ProcessedEvent{ProcessorEventID: "evt_1", EventType: "x"})
			assert.NoError(t, err)
			if claimed {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Len(t, repo.Events(), 1)
}

func TestMemoryRepository_TransactionRollback(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	boom := errors.New("boom")

	err := repo.Transaction(ctx, func(tx Repository) error {
		if _, err := tx.ClaimEvent(ctx, &models.ProcessedEvent{ProcessorEventID: "evt_1"}); err != nil {
			return err
		}
		if err := tx.CreatePurchase(ctx, models.NewPendingPurchase("reader@example.com", "cs_1", 2499, "usd")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, repo.Events())
	assert.Empty(t, repo.Purchases())
	assert.Equal(t, 0, repo.Mutations())
}

func TestMemoryRepository_UniqueSessionID(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.CreatePurchase(ctx, models.NewPendingPurchase("a@example.com", "cs_1", 2499, "usd")))
	err := repo.CreatePurchase(ctx, models.NewPendingPurchase("b@example.com", "cs_1", 2499, "usd"))
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestMemoryRepository_UpdatePurchaseIsConditional(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	p := models.NewPendingPurchase("a@example.com", "cs_1", 2499, "usd")
	require.NoError(t, repo.CreatePurchase(ctx, p))

	require.NoError(t, p.MarkPaid())
	changed, err := repo.UpdatePurchase(ctx, p, models.PurchaseStatusPending)
	require.NoError(t, err)
	assert.True(t, changed)

	p.Status = models.PurchaseStatusFailed
	changed, err = repo.UpdatePurchase(ctx, p, models.PurchaseStatusPending)
	require.NoError(t, err)
	assert.False(t, changed)

	paid, err := repo.FindPaidPurchaseByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, p.ID, paid.ID)
}

func TestMemoryRepository_FailAll(t *testing.T) {
	repo := NewMemoryRepository()
	down := errors.New("connection refused")
	repo.FailAll(down)

	_, err := repo.FindTrialByEmail(context.Background(), "a@example.com")
	assert.ErrorIs(t, err, down)
	assert.ErrorIs(t, repo.Ping(context.Background()), down)

	repo.FailAll(nil)
	_, err = repo.FindTrialByEmail(context.Background(), "a@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}
