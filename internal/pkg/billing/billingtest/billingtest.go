// Package billingtest provides a scripted payment processor and signed
// webhook payloads for tests.
package billingtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/ManuelReschke/BookfoldAR/internal/pkg/billing"
)

// Processor is an in-memory billing.PaymentProcessor that records calls.
type Processor struct {
	mu sync.Mutex

	customers map[string]string
	sessions  int

	FindErr    error
	CreateErr  error
	SessionErr error
	// NilSession makes CreateCheckoutSession answer nil, nil.
	NilSession bool
	// RaceOnCreate simulates another request creating the customer first.
	RaceOnCreate bool

	Calls         int
	LastParams    billing.SessionParams
	CustomerCalls []string
}

func NewProcessor() *Processor {
	return &Processor{customers: make(map[string]string)}
}

func (p *Processor) FindCustomerByEmail(ctx context.Context, email string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls++
	p.CustomerCalls = append(p.CustomerCalls, "list:"+email)
	if p.FindErr != nil {
		return "", p.FindErr
	}
	return p.customers[email], nil
}

func (p *Processor) CreateCustomer(ctx context.Context, email, idempotencyKey string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls++
	p.CustomerCalls = append(p.CustomerCalls, "create:"+idempotencyKey)
	if p.RaceOnCreate {
		p.customers[email] = "cus_winner"
		return "", fmt.Errorf("create customer: %w", billing.ErrIdempotencyConflict)
	}
	if p.CreateErr != nil {
		return "", p.CreateErr
	}
	id := fmt.Sprintf("cus_%d", len(p.customers)+1)
	p.customers[email] = id
	return id, nil
}

func (p *Processor) CreateCheckoutSession(ctx context.Context, params billing.SessionParams) (*billing.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls++
	p.LastParams = params
	if p.SessionErr != nil {
		return nil, p.SessionErr
	}
	if p.NilSession {
		return nil, nil
	}
	p.sessions++
	id := fmt.Sprintf("cs_test_%d", p.sessions)
	return &billing.Session{
		ID:          id,
		URL:         "https://checkout.stripe.com/c/pay/" + id,
		AmountTotal: 2499,
		Currency:    "usd",
	}, nil
}

// SetCustomer seeds an existing customer.
func (p *Processor) SetCustomer(email, id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customers[email] = id
}

func (p *Processor) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Calls
}

// EventJSON builds a Stripe event envelope around object.
func EventJSON(id, eventType string, object map[string]interface{}) []byte {
	raw, err := json.Marshal(map[string]interface{}{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"api_version": "2025-07-30.basil",
		"created":     time.Now().Unix(),
		"data":        map[string]interface{}{"object": object},
	})
	if err != nil {
		panic(err)
	}
	return raw
}

// Sign returns the payload and its Stripe-Signature header.
func Sign(payload []byte, secret string) ([]byte, string) {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return signed.Payload, signed.Header
}

// CompletedSession is a checkout.session object as Stripe sends it.
func CompletedSession(sessionID, email, paymentStatus string) map[string]interface{} {
	return map[string]interface{}{
		"id":             sessionID,
		"object":         "checkout.session",
		"customer":       "cus_1",
		"customer_email": nil,
		"customer_details": map[string]interface{}{
			"email": email,
		},
		"payment_intent": "pi_" + sessionID,
		"payment_status": paymentStatus,
		"amount_total":   2499,
		"currency":       "usd",
		"metadata": map[string]string{
			"customer_email": email,
			"app":            billing.AppName,
		},
	}
}
