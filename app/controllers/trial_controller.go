package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/BookfoldAR/internal/pkg/trial"
)

type trialResponse struct {
	Email         string    `json:"email"`
	StartTime     time.Time `json:"startTime"`
	ExpiryTime    time.Time `json:"expiryTime"`
	Status        string    `json:"status"`
	DaysRemaining int       `json:"daysRemaining"`
}

// HandleTrialStart starts the free trial, or returns the existing one.
// POST /trial/start {email}
func (h *Controller) HandleTrialStart(c *fiber.Ctx) error {
	var req emailRequest
	if err := parseBody(c, &req); err != nil {
		return h.respondError(c, err)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	t, err := h.ledger.StartTrial(ctx, req.Email)
	if err != nil {
		return h.respondError(c, err)
	}

	now := h.ledger.Now()
	return c.Status(fiber.StatusOK).JSON(trialResponse{
		Email:         t.Email,
		StartTime:     t.StartTime.UTC(),
		ExpiryTime:    t.ExpiryTime.UTC(),
		Status:        t.StatusAt(now),
		DaysRemaining: trial.DaysRemaining(t.ExpiryTime, now),
	})
}

// HandleTrialStatus reports the trial window without creating one.
// POST /trial/status {email}
func (h *Controller) HandleTrialStatus(c *fiber.Ctx) error {
	var req emailRequest
	if err := parseBody(c, &req); err != nil {
		return h.respondError(c, err)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	status, err := h.ledger.GetTrialStatus(ctx, req.Email)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(status)
}
