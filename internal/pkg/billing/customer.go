package billing

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ManuelReschke/BookfoldAR/internal/pkg/logger"
)

// resolveCustomer reuses the processor customer for email or creates one.
// Creation is keyed on the email, so concurrent first checkouts converge on
// one customer; a conflicting key means another request won and we re-list.
func (m *Manager) resolveCustomer(ctx context.Context, email string) (string, error) {
	id, err := m.processor.FindCustomerByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	id, err = m.processor.CreateCustomer(ctx, email, "customer:"+email)
	if err == nil {
		m.log.Info("created processor customer", logger.Email(email), zap.String("customer_id", id))
		return id, nil
	}
	if !errors.Is(err, ErrIdempotencyConflict) {
		return "", err
	}

	m.log.Info("customer creation raced, reusing existing customer", logger.Email(email))
	id, listErr := m.processor.FindCustomerByEmail(ctx, email)
	if listErr != nil {
		return "", listErr
	}
	if id == "" {
		return "", err
	}
	return id, nil
}
