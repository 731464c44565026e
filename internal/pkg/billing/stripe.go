package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"github.com/ManuelReschke/BookfoldAR/internal/pkg/apperrors"
)

// AppName tags every customer, session and payment intent we create.
const AppName = "bookfoldar"

// defaultRetryAfter is suggested to clients when Stripe rate limits us.
const defaultRetryAfter = 30 * time.Second

// ErrIdempotencyConflict marks a request Stripe refused because the
// idempotency key was already used with different parameters or is in flight.
var ErrIdempotencyConflict = errors.New("idempotency key conflict")

type StripeProcessor struct {
	api *client.API
}

func NewStripeProcessor(secretKey string) *StripeProcessor {
	return &StripeProcessor{api: client.New(secretKey, nil)}
}

func (p *StripeProcessor) FindCustomerByEmail(ctx context.Context, email string) (string, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)
	params.Single = true

	iter := p.api.Customers.List(params)
	if iter.Next() {
		return iter.Customer().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", classifyStripeError(err)
	}
	return "", nil
}

func (p *StripeProcessor) CreateCustomer(ctx context.Context, email, idempotencyKey string) (string, error) {
	params := &stripe.CustomerParams{Email: stripe.String(email)}
	params.Context = ctx
	params.AddMetadata("app", AppName)
	params.SetIdempotencyKey(idempotencyKey)

	c, err := p.api.Customers.New(params)
	if err != nil {
		return "", classifyStripeError(err)
	}
	return c.ID, nil
}

func (p *StripeProcessor) CreateCheckoutSession(ctx context.Context, in SessionParams) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		Customer:           stripe.String(in.CustomerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(in.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:               stripe.String(in.SuccessURL),
		CancelURL:                stripe.String(in.CancelURL),
		AllowPromotionCodes:      stripe.Bool(true),
		BillingAddressCollection: stripe.String("auto"),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: in.Metadata,
		},
	}
	params.Context = ctx
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	params.SetIdempotencyKey(in.IdempotencyKey)

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, classifyStripeError(err)
	}
	if s == nil {
		return nil, nil
	}
	return &Session{
		ID:          s.ID,
		URL:         s.URL,
		AmountTotal: s.AmountTotal,
		Currency:    string(s.Currency),
	}, nil
}

// classifyStripeError maps a Stripe client error to an upstream error category.
func classifyStripeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.Upstream(apperrors.UpstreamAPI, err)
	}

	var se *stripe.Error
	if !errors.As(err, &se) {
		return apperrors.Upstream(apperrors.UpstreamAPI, err)
	}

	if se.Type == stripe.ErrorTypeIdempotency || se.HTTPStatusCode == http.StatusConflict {
		return apperrors.Upstream(apperrors.UpstreamInvalidRequest, fmt.Errorf("%w: %w", ErrIdempotencyConflict, err))
	}

	switch se.HTTPStatusCode {
	case http.StatusBadRequest, http.StatusNotFound:
		return apperrors.Upstream(apperrors.UpstreamInvalidRequest, err)
	case http.StatusUnauthorized:
		return apperrors.Upstream(apperrors.UpstreamAuthentication, err)
	case http.StatusForbidden:
		return apperrors.Upstream(apperrors.UpstreamPermission, err)
	case http.StatusTooManyRequests:
		appErr := apperrors.Upstream(apperrors.UpstreamRateLimit, err)
		appErr.RetryAfter = defaultRetryAfter
		return appErr
	}
	if se.Type == stripe.ErrorTypeInvalidRequest {
		return apperrors.Upstream(apperrors.UpstreamInvalidRequest, err)
	}
	return apperrors.Upstream(apperrors.UpstreamAPI, err)
}
