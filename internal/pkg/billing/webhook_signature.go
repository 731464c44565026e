package billing

import (
	"errors"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// SignatureTolerance bounds the age of a signed timestamp.
const SignatureTolerance = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("missing signature header")
	ErrMissingSecret    = errors.New("webhook secret not configured")
)

// VerifyStripeSignature checks the t=...,v1=... HMAC-SHA256 header over the
// exact payload bytes and decodes the event envelope.
func VerifyStripeSignature(payload []byte, signatureHeader, webhookSecret string) (stripe.Event, error) {
	sig := strings.TrimSpace(signatureHeader)
	secret := strings.TrimSpace(webhookSecret)
	if sig == "" {
		return stripe.Event{}, ErrMissingSignature
	}
	if secret == "" {
		return stripe.Event{}, ErrMissingSecret
	}

	return webhook.ConstructEventWithOptions(payload, sig, secret, webhook.ConstructEventOptions{
		Tolerance:                SignatureTolerance,
		IgnoreAPIVersionMismatch: true,
	})
}
