package billing

import "context"

// CheckoutRequest is the input of Manager.CreateCheckoutSession.
// Email is checked by emailaddr.Normalize, the rest by the struct tags.
type CheckoutRequest struct {
	Email      string
	SuccessURL string            `validate:"required,http_url"`
	CancelURL  string            `validate:"required,http_url"`
	Metadata   map[string]string `validate:"max=20,dive,keys,min=1,max=40,endkeys,max=500"`
	// IdempotencyKey is the caller supplied Idempotency-Key header, if any.
	IdempotencyKey string `validate:"max=255"`
}

// Session is a hosted checkout session the client is redirected to.
type Session struct {
	ID          string `json:"sessionId"`
	URL         string `json:"url"`
	AmountTotal int64  `json:"-"`
	Currency    string `json:"-"`
}

// SessionParams is what the processor needs to open a checkout session.
type SessionParams struct {
	CustomerID     string
	PriceID        string
	SuccessURL     string
	CancelURL      string
	Metadata       map[string]string
	IdempotencyKey string
}

// PaymentProcessor is the outbound side of the payment provider.
// Errors are *apperrors.Error of kind Upstream.
type PaymentProcessor interface {
	// FindCustomerByEmail returns "" when no customer exists.
	FindCustomerByEmail(ctx context.Context, email string) (string, error)
	CreateCustomer(ctx context.Context, email, idempotencyKey string) (string, error)
	// CreateCheckoutSession may return nil, nil when the provider answered
	// without a session.
	CreateCheckoutSession(ctx context.Context, params SessionParams) (*Session, error)
}
