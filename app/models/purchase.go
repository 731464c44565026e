package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PurchaseStatusPending = "pending"
	PurchaseStatusPaid    = "paid"
	PurchaseStatusFailed  = "failed"
)

// ErrPurchaseTerminal is returned when a paid or failed purchase would change status again.
var ErrPurchaseTerminal = errors.New("purchase status is terminal")

// Purchase is one attempt to buy lifetime access. Status only moves
// pending -> paid or pending -> failed.
type Purchase struct {
	ID                       string    `gorm:"type:char(36);primaryKey" json:"id"`
	Email                    string    `gorm:"type:varchar(254);not null;index:idx_purchases_email_status,priority:1" json:"email"`
	ProcessorSessionID       *string   `gorm:"type:varchar(255);uniqueIndex:ux_purchases_processor_session" json:"processor_session_id,omitempty"`
	ProcessorPaymentIntentID *string   `gorm:"type:varchar(255);index" json:"processor_payment_intent_id,omitempty"`
	Amount                   int64     `gorm:"not null;default:0" json:"amount"`
	Currency                 string    `gorm:"type:varchar(3);not null;default:''" json:"currency"`
	Status                   string    `gorm:"type:varchar(16);not null;default:'pending';index:idx_purchases_email_status,priority:2" json:"status"`
	CreatedAt                time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Purchase) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = PurchaseStatusPending
	}
	return nil
}

// NewPendingPurchase builds a pending purchase for a freshly created checkout session.
func NewPendingPurchase(email, sessionID string, amount int64, currency string) *Purchase {
	p := &Purchase{
		ID:       uuid.New().String(),
		Email:    email,
		Amount:   amount,
		Currency: strings.ToLower(currency),
		Status:   PurchaseStatusPending,
	}
	p.SetSessionID(sessionID)
	return p
}

func (p *Purchase) IsTerminal() bool {
	return p.Status == PurchaseStatusPaid || p.Status == PurchaseStatusFailed
}

// SessionID returns the processor session id or "".
func (p *Purchase) SessionID() string {
	if p.ProcessorSessionID == nil {
		return ""
	}
	return *p.ProcessorSessionID
}

// PaymentIntentID returns the processor payment intent id or "".
func (p *Purchase) PaymentIntentID() string {
	if p.ProcessorPaymentIntentID == nil {
		return ""
	}
	return *p.ProcessorPaymentIntentID
}

func (p *Purchase) SetSessionID(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	p.ProcessorSessionID = &id
}

func (p *Purchase) SetPaymentIntentID(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	p.ProcessorPaymentIntentID = &id
}

// MarkPaid moves a pending purchase to paid.
func (p *Purchase) MarkPaid() error {
	if p.IsTerminal() {
		return ErrPurchaseTerminal
	}
	p.Status = PurchaseStatusPaid
	return nil
}

// MarkFailed moves a pending purchase to failed.
func (p *Purchase) MarkFailed() error {
	if p.IsTerminal() {
		return ErrPurchaseTerminal
	}
	p.Status = PurchaseStatusFailed
	return nil
}
