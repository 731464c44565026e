package controllers

import (
	"github.com/gofiber/fiber/v2"
)

// HandleAccessCheck resolves the caller's entitlement.
// POST /access-check {email}
func (h *Controller) HandleAccessCheck(c *fiber.Ctx) error {
	var req emailRequest
	if err := parseBody(c, &req); err != nil {
		return h.respondError(c, err)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	decision, err := h.resolver.CheckAccess(ctx, req.Email)
	if err != nil {
		return h.respondError(c, err)
	}
	h.metrics.AccessCheck(string(decision.Tier))
	return c.Status(fiber.StatusOK).JSON(decision)
}
