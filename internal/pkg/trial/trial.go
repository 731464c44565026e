// Package trial owns the 72 hour free trial window: creation, status and the
// advisory local copy used while the store is unreachable.
package trial

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ManuelReschke/BookfoldAR/app/models"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/apperrors"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/emailaddr"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/logger"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/metrics"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/store"
)

// Duration of every trial. It is fixed and never extended.
const Duration = 72 * time.Hour

const day = 24 * time.Hour

// Status is the derived view of a trial at one instant.
type Status struct {
	Found         bool      `json:"-"`
	Active        bool      `json:"active"`
	DaysRemaining int       `json:"daysRemaining"`
	ExpiryTime    time.Time `json:"-"`
	// Advisory is set when the status came from the local cache.
	Advisory bool `json:"-"`
}

// DaysRemaining is ceil((expiry-now)/24h), floored at zero.
func DaysRemaining(expiry, now time.Time) int {
	if !now.Before(expiry) {
		return 0
	}
	left := expiry.Sub(now)
	return int((left + day - 1) / day)
}

// StatusAt derives the status of t at now. A nil trial is "not found".
func StatusAt(t *models.Trial, now time.Time) Status {
	if t == nil {
		return Status{}
	}
	return Status{
		Found:         true,
		Active:        t.StatusAt(now) == models.TrialStatusActive,
		DaysRemaining: DaysRemaining(t.ExpiryTime, now),
		ExpiryTime:    t.ExpiryTime,
	}
}

type Ledger struct {
	repo    store.Repository
	cache   Cache
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewLedger(repo store.Repository, cache Cache, log *zap.Logger) *Ledger {
	if cache == nil {
		cache = NopCache{}
	}
	return &Ledger{repo: repo, cache: cache, log: log, now: time.Now}
}

// WithClock replaces the time source.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

func (l *Ledger) WithMetrics(m *metrics.Metrics) *Ledger {
	l.metrics = m
	return l
}

func (l *Ledger) Now() time.Time {
	return l.now().UTC()
}

// StartTrial creates the trial for email unless one exists and returns the
// stored record. An existing trial is returned unchanged, expired or not.
func (l *Ledger) StartTrial(ctx context.Context, rawEmail string) (*models.Trial, error) {
	email, err := emailaddr.Normalize(rawEmail)
	if err != nil {
		return nil, err
	}

	now := l.Now()
	created, stored, err := l.repo.CreateTrialIfNotExists(ctx, &models.Trial{
		Email:      email,
		StartTime:  now,
		ExpiryTime: now.Add(Duration),
	})
	if err != nil {
		return nil, apperrors.Store("start trial", err)
	}

	if created {
		l.metrics.TrialStarted()
		l.log.Info("trial started", logger.Email(email), zap.Time("expiry_time", stored.ExpiryTime))
	}
	l.remember(ctx, stored)
	return stored, nil
}

// GetTrialStatus reads the store and falls back to the local copy only when
// the store errors.
func (l *Ledger) GetTrialStatus(ctx context.Context, rawEmail string) (Status, error) {
	email, err := emailaddr.Normalize(rawEmail)
	if err != nil {
		return Status{}, err
	}

	t, err := l.Find(ctx, email)
	switch {
	case err == nil:
		return StatusAt(t, l.Now()), nil
	case errors.Is(err, store.ErrNotFound):
		return Status{}, nil
	}

	if cached := l.Cached(ctx, email); cached != nil {
		status := StatusAt(cached, l.Now())
		status.Advisory = true
		return status, nil
	}
	return Status{}, apperrors.Store("read trial", err)
}

// Find returns the persisted trial for an already normalized email and
// refreshes the local copy. Store errors are returned unwrapped.
func (l *Ledger) Find(ctx context.Context, email string) (*models.Trial, error) {
	t, err := l.repo.FindTrialByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	l.remember(ctx, t)
	return t, nil
}

// Cached returns the local copy or nil.
func (l *Ledger) Cached(ctx context.Context, email string) *models.Trial {
	t, err := l.cache.Get(ctx, email)
	if err != nil {
		l.log.Warn("trial cache read failed", logger.Email(email), zap.Error(err))
		return nil
	}
	return t
}

// Forget drops the local copy, e.g. once a purchase supersedes the trial.
func (l *Ledger) Forget(ctx context.Context, email string) {
	if err := l.cache.Delete(ctx, email); err != nil {
		l.log.Warn("trial cache delete failed", logger.Email(email), zap.Error(err))
	}
}

func (l *Ledger) remember(ctx context.Context, t *models.Trial) {
	if err := l.cache.Put(ctx, t); err != nil {
		l.log.Warn("trial cache write failed", logger.Email(t.Email), zap.Error(err))
	}
}
