package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"

	"github.com/ManuelReschke/BookfoldAR/internal/pkg/apperrors"
)

func TestClassifyStripeError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category apperrors.UpstreamCategory
		status   int
	}{
		{"invalid request", &stripe.Error{HTTPStatusCode: 400, Type: stripe.ErrorTypeInvalidRequest}, apperrors.UpstreamInvalidRequest, 400},
		{"authentication", &stripe.Error{HTTPStatusCode: 401}, apperrors.UpstreamAuthentication, 500},
		{"permission", &stripe.Error{HTTPStatusCode: 403}, apperrors.UpstreamPermission, 500},
		{"rate limit", &stripe.Error{HTTPStatusCode: 429}, apperrors.UpstreamRateLimit, 429},
		{"server error", &stripe.Error{HTTPStatusCode: 502, Type: stripe.ErrorTypeAPI}, apperrors.UpstreamAPI, 500},
		{"timeout", fmt.Errorf("request: %w", context.DeadlineExceeded), apperrors.UpstreamAPI, 500},
		{"network", errors.New("connection reset by peer"), apperrors.UpstreamAPI, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyStripeError(tt.err)
			appErr, ok := apperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.KindUpstream, appErr.Kind)
			assert.Equal(t, tt.category, appErr.Category)
			assert.Equal(t, tt.status, appErr.HTTPStatus())
		})
	}
}

func TestClassifyStripeError_RateLimitCarriesRetryAfter(t *testing.T) {
	appErr, ok := apperrors.As(classifyStripeError(&stripe.Error{HTTPStatusCode: 429}))
	require.True(t, ok)
	assert.Equal(t, defaultRetryAfter, appErr.RetryAfter)
}

func TestClassifyStripeError_Idempotency(t *testing.T) {
	err := classifyStripeError(&stripe.Error{HTTPStatusCode: 400, Type: stripe.ErrorTypeIdempotency})
	assert.ErrorIs(t, err, ErrIdempotencyConflict)

	err = classifyStripeError(&stripe.Error{HTTPStatusCode: 409})
	assert.ErrorIs(t, err, ErrIdempotencyConflict)
}

func TestClassifyStripeError_Nil(t *testing.T) {
	assert.NoError(t, classifyStripeError(nil))
}
