package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPurchaseTransitions(t *testing.T) {
	p := NewPendingPurchase("a@x.com", "cs_123", 2499, "EUR")
	assert.Equal(t, PurchaseStatusPending, p.Status)
	assert.Equal(t, "cs_123", p.SessionID())
	assert.Equal(t, "eur", p.Currency)
	assert.NotEmpty(t, p.ID)

	assert.NoError(t, p.MarkPaid())
	assert.Equal(t, PurchaseStatusPaid, p.Status)
	assert.ErrorIs(t, p.MarkPaid(), ErrPurchaseTerminal)
	assert.ErrorIs(t, p.MarkFailed(), ErrPurchaseTerminal)
	assert.Equal(t, PurchaseStatusPaid, p.Status)

	f := NewPendingPurchase("b@x.com", "", 0, "")
	assert.Nil(t, f.ProcessorSessionID)
	assert.NoError(t, f.MarkFailed())
	assert.ErrorIs(t, f.MarkPaid(), ErrPurchaseTerminal)
	assert.Equal(t, PurchaseStatusFailed, f.Status)
}

func TestPurchaseSetIDsIgnoresBlank(t *testing.T) {
	p := &Purchase{}
	p.SetPaymentIntentID("  ")
	assert.Equal(t, "", p.PaymentIntentID())
	p.SetPaymentIntentID("pi_1")
	assert.Equal(t, "pi_1", p.PaymentIntentID())
}

func TestTrialStatusAt(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := &Trial{Email: "a@x.com", StartTime: start, ExpiryTime: start.Add(72 * time.Hour)}

	assert.Equal(t, TrialStatusActive, tr.StatusAt(start))
	assert.Equal(t, TrialStatusActive, tr.StatusAt(tr.ExpiryTime.Add(-time.Millisecond)))
	assert.Equal(t, TrialStatusExpired, tr.StatusAt(tr.ExpiryTime))
	assert.Equal(t, TrialStatusExpired, tr.StatusAt(start.Add(96*time.Hour)))
}
