package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want int
	}{
		{"validation", Validation("invalid_email", "bad"), http.StatusBadRequest},
		{"signature", Signature(errors.New("mismatch")), http.StatusBadRequest},
		{"configuration", Configuration("STRIPE_PRICE_ID"), http.StatusInternalServerError},
		{"store", Store("find purchase", errors.New("down")), http.StatusInternalServerError},
		{"conflict", Conflict("already_purchased", "done"), http.StatusConflict},
		{"upstream invalid request", Upstream(UpstreamInvalidRequest, nil), http.StatusBadRequest},
		{"upstream auth", Upstream(UpstreamAuthentication, nil), http.StatusInternalServerError},
		{"upstream permission", Upstream(UpstreamPermission, nil), http.StatusInternalServerError},
		{"upstream rate limit", Upstream(UpstreamRateLimit, nil), http.StatusTooManyRequests},
		{"upstream api", Upstream(UpstreamAPI, nil), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}

func TestConfigurationNamesKeysOnly(t *testing.T) {
	err := Configuration("STRIPE_SECRET_KEY", "STRIPE_PRICE_ID")
	assert.Contains(t, err.Error(), "STRIPE_SECRET_KEY")
	assert.Contains(t, err.Error(), "STRIPE_PRICE_ID")
	assert.Equal(t, "internal server error", err.PublicMessage())
}

func TestAsThroughWrapping(t *testing.T) {
	base := Store("claim event", errors.New("connection refused"))
	wrapped := fmt.Errorf("webhook: %w", base)

	got, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindStore, got.Kind)
	assert.True(t, IsKind(wrapped, KindStore))
	assert.False(t, IsKind(wrapped, KindValidation))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(wrapped))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("plain")))
}
