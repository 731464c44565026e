package billing

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ManuelReschke/BookfoldAR/app/models"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/apperrors"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/archive"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/emailaddr"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/logger"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/metrics"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/store"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/trial"
)

// WebhookResult is what the webhook endpoint acknowledges.
type WebhookResult struct {
	EventID   string
	EventType string
	Duplicate bool
}

// WebhookProcessor verifies processor events and applies each event id at
// most once.
type WebhookProcessor struct {
	repo     store.Repository
	ledger   *trial.Ledger
	archiver archive.Archiver
	secret   string
	log      *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewWebhookProcessor(repo store.Repository, ledger *trial.Ledger, archiver archive.Archiver, webhookSecret string, log *zap.Logger) *WebhookProcessor {
	if archiver == nil {
		archiver = archive.NopArchiver{}
	}
	return &WebhookProcessor{
		repo:     repo,
		ledger:   ledger,
		archiver: archiver,
		secret:   webhookSecret,
		log:      log,
		now:      time.Now,
	}
}

func (p *WebhookProcessor) WithMetrics(m *metrics.Metrics) *WebhookProcessor {
	p.metrics = m
	return p
}

// Process verifies payload against the signature header and applies the
// event. The marker claim and the side effects share one store transaction:
// a failed apply leaves no marker behind, so the processor's retry applies
// the event again.
func (p *WebhookProcessor) Process(ctx context.Context, payload []byte, signatureHeader string) (*WebhookResult, error) {
	raw, err := VerifyStripeSignature(payload, signatureHeader, p.secret)
	if err != nil {
		p.log.Warn("webhook signature verification failed", zap.Error(err))
		p.metrics.WebhookEvent("unknown", "rejected")
		return nil, apperrors.Signature(err)
	}

	result := &WebhookResult{EventID: raw.ID, EventType: string(raw.Type)}
	log := p.log.With(zap.String("event_id", raw.ID), zap.String("event_type", string(raw.Type)))

	event, err := DecodeEvent(raw)
	if err != nil {
		// Retrying a payload we cannot read would fail the same way forever.
		log.Error("failed to decode verified webhook event", zap.Error(err))
		p.metrics.WebhookEvent(result.EventType, "undecodable")
		return result, nil
	}

	var paidEmail string
	err = p.repo.Transaction(ctx, func(tx store.Repository) error {
		claimed, err := tx.ClaimEvent(ctx, &models.ProcessedEvent{
			ProcessorEventID: event.EventID(),
			EventType:        event.EventType(),
			ProcessedAt:      p.now().UTC(),
		})
		if err != nil {
			return err
		}
		if !claimed {
			result.Duplicate = true
			return nil
		}
		paidEmail, err = p.apply(ctx, tx, event, log)
		return err
	})
	if err != nil {
		log.Error("failed to apply webhook event", zap.Error(err))
		p.metrics.WebhookEvent(result.EventType, "failed")
		return nil, apperrors.Store("apply webhook event", err)
	}

	if result.Duplicate {
		log.Info("webhook event already processed")
		p.metrics.WebhookEvent(result.EventType, "duplicate")
		return result, nil
	}

	if err := p.archiver.Archive(ctx, event.EventID(), p.now(), payload); err != nil {
		log.Warn("failed to archive webhook payload", zap.Error(err))
	}
	if paidEmail != "" && p.ledger != nil {
		p.ledger.Forget(ctx, paidEmail)
	}
	p.metrics.WebhookEvent(result.EventType, "applied")
	return result, nil
}

// apply runs the side effects of event inside tx and returns the email that
// became paid, if any.
func (p *WebhookProcessor) apply(ctx context.Context, tx store.Repository, event Event, log *zap.Logger) (string, error) {
	switch e := event.(type) {
	case CheckoutSessionCompleted:
		return p.applySessionCompleted(ctx, tx, e.Session, e.Session.IsPaid(), log)
	case CheckoutSessionAsyncSucceeded:
		return p.applySessionCompleted(ctx, tx, e.Session, true, log)
	case CheckoutSessionAsyncFailed:
		return "", p.applySessionFailed(ctx, tx, e.Session, log)
	case CheckoutSessionExpired:
		return "", p.applySessionFailed(ctx, tx, e.Session, log)
	case PaymentSucceeded:
		return "", p.applyPaymentIntent(ctx, tx, e.PaymentIntent, log.With(zap.Bool("succeeded", true)))
	case PaymentFailed:
		return "", p.applyPaymentIntent(ctx, tx, e.PaymentIntent, log.With(zap.Bool("succeeded", false)))
	case UnhandledEvent:
		log.Info("webhook event ignored (unhandled type)")
		return "", nil
	default:
		log.Warn("webhook event variant without handler")
		return "", nil
	}
}

func (p *WebhookProcessor) applySessionCompleted(ctx context.Context, tx store.Repository, s CheckoutSession, paid bool, log *zap.Logger) (string, error) {
	log = log.With(zap.String("session_id", s.ID))

	purchase, err := p.locatePurchase(ctx, tx, s)
	if err != nil {
		return "", err
	}
	if purchase == nil {
		email, err := emailaddr.Normalize(s.Email())
		if err != nil {
			log.Warn("completed session carries no usable email, nothing to record")
			return "", nil
		}
		purchase = models.NewPendingPurchase(email, s.ID, s.AmountTotal, string(s.Currency))
		if err := tx.CreatePurchase(ctx, purchase); err != nil {
			return "", err
		}
		log.Info("created purchase from completion event", logger.Email(email))
	}
	log = log.With(logger.Email(purchase.Email), zap.String("purchase_id", purchase.ID))

	if purchase.IsTerminal() {
		log.Info("purchase already settled", zap.String("status", purchase.Status))
		return "", nil
	}

	fromStatus := purchase.Status
	purchase.SetSessionID(s.ID)
	purchase.SetPaymentIntentID(s.PaymentIntentID())
	if s.AmountTotal > 0 {
		purchase.Amount = s.AmountTotal
	}
	if s.Currency != "" {
		purchase.Currency = string(s.Currency)
	}

	if paid {
		// Locking every purchase of the email makes a concurrent completion
		// for another session wait for this one and then see its paid row.
		owned, err := tx.LockPurchasesByEmail(ctx, purchase.Email)
		if err != nil {
			return "", err
		}
		for _, other := range owned {
			if other.ID != purchase.ID && other.Status == models.PurchaseStatusPaid {
				log.Warn("second paid session for an email that already owns lifetime access, not transitioning",
					zap.String("paid_purchase_id", other.ID))
				paid = false
				break
			}
		}
	}

	if paid {
		if err := purchase.MarkPaid(); err != nil {
			return "", err
		}
	}
	changed, err := tx.UpdatePurchase(ctx, purchase, fromStatus)
	if err != nil {
		return "", err
	}
	if !changed {
		log.Warn("purchase changed concurrently, update skipped")
		return "", nil
	}

	if !paid {
		log.Info("checkout completed, payment still pending", zap.String("payment_status", string(s.PaymentStatus)))
		return "", nil
	}
	log.Info("purchase paid", zap.Int64("amount", purchase.Amount), zap.String("currency", purchase.Currency))
	return purchase.Email, nil
}

func (p *WebhookProcessor) applySessionFailed(ctx context.Context, tx store.Repository, s CheckoutSession, log *zap.Logger) error {
	log = log.With(zap.String("session_id", s.ID))

	purchase, err := tx.FindPurchaseBySessionID(ctx, s.ID)
	if errors.Is(err, store.ErrNotFound) {
		log.Info("no purchase recorded for session")
		return nil
	}
	if err != nil {
		return err
	}
	if purchase.IsTerminal() {
		log.Info("purchase already settled", zap.String("status", purchase.Status))
		return nil
	}

	purchase.SetPaymentIntentID(s.PaymentIntentID())
	if err := purchase.MarkFailed(); err != nil {
		return err
	}
	changed, err := tx.UpdatePurchase(ctx, purchase, models.PurchaseStatusPending)
	if err != nil {
		return err
	}
	if changed {
		log.Info("purchase failed", logger.Email(purchase.Email), zap.String("purchase_id", purchase.ID))
	}
	return nil
}

// applyPaymentIntent links the intent to its purchase. Entitlement changes
// are driven by the checkout session events only.
func (p *WebhookProcessor) applyPaymentIntent(ctx context.Context, tx store.Repository, pi PaymentIntent, log *zap.Logger) error {
	log = log.With(zap.String("payment_intent_id", pi.ID))
	if code := pi.FailureCode(); code != "" {
		log = log.With(zap.String("failure_code", code))
	}

	purchase, err := tx.FindPurchaseByPaymentIntentID(ctx, pi.ID)
	if errors.Is(err, store.ErrNotFound) {
		purchase, err = p.pendingByEmail(ctx, tx, pi.Email())
	}
	if err != nil {
		return err
	}
	if purchase == nil {
		log.Info("payment intent has no matching purchase")
		return nil
	}

	log = log.With(logger.Email(purchase.Email), zap.String("purchase_id", purchase.ID))
	if purchase.PaymentIntentID() == "" {
		purchase.SetPaymentIntentID(pi.ID)
		if _, err := tx.UpdatePurchase(ctx, purchase, purchase.Status); err != nil {
			return err
		}
	}
	log.Info("payment intent observed", zap.String("pi_status", string(pi.Status)))
	return nil
}

// locatePurchase finds the purchase for a session by session id, falling
// back to a pending purchase of the same email that has no session yet.
func (p *WebhookProcessor) locatePurchase(ctx context.Context, tx store.Repository, s CheckoutSession) (*models.Purchase, error) {
	purchase, err := tx.FindPurchaseBySessionID(ctx, s.ID)
	if err == nil {
		return purchase, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	purchase, err = p.pendingByEmail(ctx, tx, s.Email())
	if err != nil || purchase == nil {
		return nil, err
	}
	if purchase.SessionID() != "" {
		return nil, nil
	}
	return purchase, nil
}

func (p *WebhookProcessor) pendingByEmail(ctx context.Context, tx store.Repository, rawEmail string) (*models.Purchase, error) {
	email, err := emailaddr.Normalize(rawEmail)
	if err != nil {
		return nil, nil
	}
	purchase, err := tx.FindPendingPurchaseByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return purchase, nil
}
