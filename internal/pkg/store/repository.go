// Package store is the persisted account store: purchases, trials and
// processed webhook event markers. Every check-then-insert race is closed by
// a unique key and an insert-if-absent primitive here, never by in-process locks.
package store

import (
	"context"
	"errors"

	"github.com/ManuelReschke/BookfoldAR/app/models"
)

// ErrNotFound is returned by the Find* methods when no row matches.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateKey is returned when a write collides with a unique key.
var ErrDuplicateKey = errors.New("duplicate key")

// Repository provides DB operations used by the trial ledger, the checkout
// manager and the webhook processor.
type Repository interface {
	// Transaction runs fn against a repository bound to one DB transaction.
	// Returning an error rolls back every write made through tx.
	Transaction(ctx context.Context, fn func(tx Repository) error) error

	FindPaidPurchaseByEmail(ctx context.Context, email string) (*models.Purchase, error)
	FindPendingPurchaseByEmail(ctx context.Context, email string) (*models.Purchase, error)
	FindPurchaseBySessionID(ctx context.Context, sessionID string) (*models.Purchase, error)
	FindPurchaseByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Purchase, error)
	// LockPurchasesByEmail returns every purchase of email and holds a row
	// lock on them until the surrounding Transaction ends. Concurrent
	// settlements for one email are serialized through it.
	LockPurchasesByEmail(ctx context.Context, email string) ([]models.Purchase, error)
	CreatePurchase(ctx context.Context, purchase *models.Purchase) error
	// UpdatePurchase writes purchase only while the stored row still has
	// fromStatus. It reports whether a row changed.
	UpdatePurchase(ctx context.Context, purchase *models.Purchase, fromStatus string) (bool, error)

	FindTrialByEmail(ctx context.Context, email string) (*models.Trial, error)
	// CreateTrialIfNotExists inserts trial unless a trial for the email exists
	// and returns the stored row either way.
	CreateTrialIfNotExists(ctx context.Context, trial *models.Trial) (bool, *models.Trial, error)

	// ClaimEvent inserts the marker unless the event id was already claimed.
	ClaimEvent(ctx context.Context, event *models.ProcessedEvent) (bool, error)

	Ping(ctx context.Context) error
}
