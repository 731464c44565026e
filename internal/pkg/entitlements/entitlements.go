package entitlements

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ManuelReschke/BookfoldAR/internal/pkg/apperrors"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/emailaddr"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/logger"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/store"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/trial"
)

type Tier string

const (
	TierNone     Tier = "none"
	TierTrial    Tier = "trial"
	TierLifetime Tier = "lifetime"
)

// Decision is the answer to an access check.
type Decision struct {
	HasActiveAccess    bool `json:"hasActiveAccess"`
	Tier               Tier `json:"tier"`
	TrialDaysRemaining int  `json:"trialDaysRemaining"`
}

var (
	lifetime = Decision{HasActiveAccess: true, Tier: TierLifetime}
	none     = Decision{Tier: TierNone}
)

// trialDecision keeps hasActiveAccess false: a trial unlocks the trial
// experience, not paid access.
func trialDecision(status trial.Status) Decision {
	if !status.Active {
		return none
	}
	return Decision{Tier: TierTrial, TrialDaysRemaining: status.DaysRemaining}
}

type Resolver struct {
	repo   store.Repository
	ledger *trial.Ledger
	log    *zap.Logger
}

func NewResolver(repo store.Repository, ledger *trial.Ledger, log *zap.Logger) *Resolver {
	return &Resolver{repo: repo, ledger: ledger, log: log}
}

// CheckAccess resolves the entitlement for email. A paid purchase beats any
// trial. An email with no record at all gets a trial provisioned. When the
// store cannot be read the result fails closed unless the local trial copy is
// still unexpired.
func (r *Resolver) CheckAccess(ctx context.Context, rawEmail string) (Decision, error) {
	email, err := emailaddr.Normalize(rawEmail)
	if err != nil {
		return none, err
	}
	log := r.log.With(logger.Email(email))

	_, err = r.repo.FindPaidPurchaseByEmail(ctx, email)
	switch {
	case err == nil:
		r.ledger.Forget(ctx, email)
		return lifetime, nil
	case !errors.Is(err, store.ErrNotFound):
		log.Error("purchase lookup failed", zap.Error(err))
		return r.failClosed(ctx, email), nil
	}

	t, err := r.ledger.Find(ctx, email)
	switch {
	case err == nil:
		return trialDecision(trial.StatusAt(t, r.ledger.Now())), nil
	case !errors.Is(err, store.ErrNotFound):
		log.Error("trial lookup failed", zap.Error(err))
		return r.failClosed(ctx, email), nil
	}

	provisioned, err := r.ledger.StartTrial(ctx, email)
	if err != nil {
		log.Error("trial auto-provisioning failed", zap.Error(err))
		if apperrors.IsKind(err, apperrors.KindStore) {
			return none, err
		}
		return none, apperrors.Store("provision trial", err)
	}
	return trialDecision(trial.StatusAt(provisioned, r.ledger.Now())), nil
}

func (r *Resolver) failClosed(ctx context.Context, email string) Decision {
	cached := r.ledger.Cached(ctx, email)
	if cached == nil {
		return none
	}
	decision := trialDecision(trial.StatusAt(cached, r.ledger.Now()))
	if decision.Tier == TierTrial {
		r.log.Warn("serving advisory trial decision from local cache", logger.Email(email))
	}
	return decision
}
