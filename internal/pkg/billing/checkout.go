package billing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ManuelReschke/BookfoldAR/app/models"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/apperrors"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/config"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/emailaddr"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/logger"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/metrics"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/store"
)

const (
	// idempotencyBucket groups retries of the same checkout without a
	// client supplied key.
	idempotencyBucket = 10 * time.Minute

)

// ErrAlreadyPurchased is returned for an email that already owns lifetime access.
var ErrAlreadyPurchased = apperrors.Conflict("already_purchased", "lifetime access already purchased for this email")

// Manager opens checkout sessions for the one-time lifetime product.
type Manager struct {
	repo      store.Repository
	processor PaymentProcessor
	stripe    config.StripeConfig
	product   config.ProductConfig
	log       *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewManager(repo store.Repository, processor PaymentProcessor, cfg *config.Config, log *zap.Logger) *Manager {
	return &Manager{
		repo:      repo,
		processor: processor,
		stripe:    cfg.Stripe,
		product:   cfg.Product,
		log:       log,
		now:       time.Now,
	}
}

func (m *Manager) WithMetrics(mt *metrics.Metrics) *Manager {
	m.metrics = mt
	return m
}

func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// CreateCheckoutSession validates the request, resolves the processor
// customer and opens a hosted checkout session. A pending purchase is
// recorded for the session on a best-effort basis.
func (m *Manager) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*Session, error) {
	session, err := m.createCheckoutSession(ctx, req)
	switch {
	case err != nil:
		m.metrics.CheckoutSession(outcome(err))
	case session == nil:
		m.metrics.CheckoutSession("empty")
	default:
		m.metrics.CheckoutSession("created")
	}
	return session, err
}

func (m *Manager) createCheckoutSession(ctx context.Context, req CheckoutRequest) (*Session, error) {
	email, err := emailaddr.Normalize(req.Email)
	if err != nil {
		return nil, err
	}
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	if err := emailaddr.ValidateStruct(req); err != nil {
		return nil, requestValidationError(err)
	}
	if err := m.checkConfig(); err != nil {
		return nil, err
	}

	log := m.log.With(logger.Email(email))

	if _, err := m.repo.FindPaidPurchaseByEmail(ctx, email); err == nil {
		log.Info("checkout refused, lifetime access already purchased")
		return nil, ErrAlreadyPurchased
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.Store("find paid purchase", err)
	}

	customerID, err := m.resolveCustomer(ctx, email)
	if err != nil {
		log.Error("failed to resolve processor customer", zap.Error(err))
		return nil, err
	}

	idemKey := req.IdempotencyKey
	if idemKey == "" {
		idemKey = m.sessionIdempotencyKey(email, req)
	}
	session, err := m.processor.CreateCheckoutSession(ctx, SessionParams{
		CustomerID:     customerID,
		PriceID:        m.stripe.PriceID,
		SuccessURL:     req.SuccessURL,
		CancelURL:      req.CancelURL,
		Metadata:       sessionMetadata(email, req.Metadata),
		IdempotencyKey: idemKey,
	})
	if errors.Is(err, ErrIdempotencyConflict) {
		log.Warn("checkout idempotency key reused with different details", zap.Error(err))
		conflict := apperrors.Conflict("idempotency_conflict", "this Idempotency-Key was already used for a different checkout request")
		conflict.Err = err
		return nil, conflict
	}
	if err != nil {
		log.Error("failed to create checkout session", zap.Error(err))
		return nil, err
	}
	if session == nil || session.ID == "" || session.URL == "" {
		log.Error("processor returned no checkout session")
		return nil, nil
	}

	m.recordPending(ctx, email, session)
	log.Info("checkout session created", zap.String("session_id", session.ID))
	return session, nil
}

func (m *Manager) checkConfig() error {
	var missing []string
	if m.stripe.SecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if m.stripe.PriceID == "" {
		missing = append(missing, "STRIPE_PRICE_ID")
	}
	if len(missing) > 0 {
		return apperrors.Configuration(missing...)
	}
	if m.processor == nil {
		return apperrors.Configuration("STRIPE_SECRET_KEY")
	}
	return nil
}

// recordPending stores the pending purchase. A failure only costs us the
// early record; the completion webhook creates it when missing.
func (m *Manager) recordPending(ctx context.Context, email string, session *Session) {
	amount, currency := session.AmountTotal, session.Currency
	if amount == 0 {
		amount = m.product.Amount
	}
	if currency == "" {
		currency = m.product.Currency
	}

	purchase := models.NewPendingPurchase(email, session.ID, amount, currency)
	err := m.repo.CreatePurchase(ctx, purchase)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrDuplicateKey):
		// replayed idempotency key returned a session we already recorded
	default:
		m.log.Warn("failed to record pending purchase",
			logger.Email(email),
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
	}
}

// sessionIdempotencyKey derives the key for requests without an
// Idempotency-Key header. Retries of the same request inside one bucket share
// it; a request with other redirect URLs or metadata gets its own.
func (m *Manager) sessionIdempotencyKey(email string, req CheckoutRequest) string {
	bucket := m.now().UTC().Unix() / int64(idempotencyBucket/time.Second)

	keys := make([]string, 0, len(req.Metadata))
	for k := range req.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "checkout|%s|%s|%d|%s|%s", email, m.stripe.PriceID, bucket, req.SuccessURL, req.CancelURL)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%s", k, req.Metadata[k])
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(b.String())).String()
}

func sessionMetadata(email string, extra map[string]string) map[string]string {
	md := make(map[string]string, len(extra)+3)
	for k, v := range extra {
		md[k] = v
	}
	md["customer_email"] = email
	md["app"] = AppName
	md["source"] = "web_checkout"
	return md
}

// requestValidationError turns the first failed struct tag into the error
// code clients see.
func requestValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.Validation("invalid_request", "invalid checkout request")
	}
	switch field := verrs[0].StructField(); {
	case field == "SuccessURL":
		return apperrors.Validation("invalid_url", "successUrl must be an absolute http(s) URL")
	case field == "CancelURL":
		return apperrors.Validation("invalid_url", "cancelUrl must be an absolute http(s) URL")
	case strings.HasPrefix(field, "Metadata"):
		return apperrors.Validation("invalid_metadata", "metadata allows 20 keys of 1-40 characters with values of at most 500")
	case field == "IdempotencyKey":
		return apperrors.Validation("invalid_idempotency_key", "Idempotency-Key is too long")
	}
	return apperrors.Validation("invalid_request", "invalid checkout request")
}

func outcome(err error) string {
	if appErr, ok := apperrors.As(err); ok {
		if appErr.Kind == apperrors.KindUpstream {
			return string(appErr.Category)
		}
		return string(appErr.Kind)
	}
	return "error"
}
