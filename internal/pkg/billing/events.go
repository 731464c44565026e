package billing

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
)

const (
	EventCheckoutSessionCompleted             = "checkout.session.completed"
	EventCheckoutSessionAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventCheckoutSessionAsyncPaymentFailed    = "checkout.session.async_payment_failed"
	EventCheckoutSessionExpired               = "checkout.session.expired"
	EventPaymentIntentSucceeded               = "payment_intent.succeeded"
	EventPaymentIntentFailed                  = "payment_intent.payment_failed"
)

// Event is a verified processor event. The set of implementations is closed:
// every event type we act on has its own struct and everything else decodes
// to UnhandledEvent.
type Event interface {
	EventID() string
	EventType() string
	isEvent()
}

type eventHeader struct {
	ID   string
	Type string
}

func (h eventHeader) EventID() string   { return h.ID }
func (h eventHeader) EventType() string { return h.Type }
func (eventHeader) isEvent()            {}

type CheckoutSessionCompleted struct {
	eventHeader
	Session CheckoutSession
}

type CheckoutSessionAsyncSucceeded struct {
	eventHeader
	Session CheckoutSession
}

type CheckoutSessionAsyncFailed struct {
	eventHeader
	Session CheckoutSession
}

type CheckoutSessionExpired struct {
	eventHeader
	Session CheckoutSession
}

type PaymentSucceeded struct {
	eventHeader
	PaymentIntent PaymentIntent
}

type PaymentFailed struct {
	eventHeader
	PaymentIntent PaymentIntent
}

type UnhandledEvent struct {
	eventHeader
}

// CheckoutSession is a Stripe checkout session as delivered in an event.
type CheckoutSession struct {
	stripe.CheckoutSession
}

// Email returns the buyer email in order of trust: our own metadata, the
// details Stripe collected, the prefilled customer email.
func (s CheckoutSession) Email() string {
	if e := strings.TrimSpace(s.Metadata["customer_email"]); e != "" {
		return e
	}
	if s.CustomerDetails != nil && strings.TrimSpace(s.CustomerDetails.Email) != "" {
		return strings.TrimSpace(s.CustomerDetails.Email)
	}
	return strings.TrimSpace(s.CustomerEmail)
}

// IsPaid reports whether the session settled synchronously.
func (s CheckoutSession) IsPaid() bool {
	return s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid ||
		s.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired
}

// PaymentIntentID is the id of the session's payment intent, expanded or not.
func (s CheckoutSession) PaymentIntentID() string {
	if s.PaymentIntent == nil {
		return ""
	}
	return s.PaymentIntent.ID
}

// PaymentIntent is a Stripe payment intent as delivered in an event.
type PaymentIntent struct {
	stripe.PaymentIntent
}

func (pi PaymentIntent) Email() string {
	return strings.TrimSpace(pi.Metadata["customer_email"])
}

// FailureCode is the decline code of the last failed attempt, if any.
func (pi PaymentIntent) FailureCode() string {
	if pi.LastPaymentError == nil {
		return ""
	}
	return string(pi.LastPaymentError.Code)
}

// DecodeEvent turns a verified Stripe event into one of the Event variants.
func DecodeEvent(event stripe.Event) (Event, error) {
	header := eventHeader{ID: event.ID, Type: string(event.Type)}
	if header.ID == "" {
		return nil, fmt.Errorf("event has no id")
	}
	var raw json.RawMessage
	if event.Data != nil {
		raw = event.Data.Raw
	}

	switch header.Type {
	case EventCheckoutSessionCompleted:
		s, err := decodeSession(raw)
		return CheckoutSessionCompleted{header, s}, err
	case EventCheckoutSessionAsyncPaymentSucceeded:
		s, err := decodeSession(raw)
		return CheckoutSessionAsyncSucceeded{header, s}, err
	case EventCheckoutSessionAsyncPaymentFailed:
		s, err := decodeSession(raw)
		return CheckoutSessionAsyncFailed{header, s}, err
	case EventCheckoutSessionExpired:
		s, err := decodeSession(raw)
		return CheckoutSessionExpired{header, s}, err
	case EventPaymentIntentSucceeded:
		pi, err := decodePaymentIntent(raw)
		return PaymentSucceeded{header, pi}, err
	case EventPaymentIntentFailed:
		pi, err := decodePaymentIntent(raw)
		return PaymentFailed{header, pi}, err
	default:
		return UnhandledEvent{header}, nil
	}
}

func decodeSession(raw json.RawMessage) (CheckoutSession, error) {
	var s stripe.CheckoutSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return CheckoutSession{}, fmt.Errorf("decode checkout.session: %w", err)
	}
	if s.ID == "" {
		return CheckoutSession{}, fmt.Errorf("decode checkout.session: missing id")
	}
	return CheckoutSession{s}, nil
}

func decodePaymentIntent(raw json.RawMessage) (PaymentIntent, error) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(raw, &pi); err != nil {
		return PaymentIntent{}, fmt.Errorf("decode payment_intent: %w", err)
	}
	if pi.ID == "" {
		return PaymentIntent{}, fmt.Errorf("decode payment_intent: missing id")
	}
	return PaymentIntent{pi}, nil
}
