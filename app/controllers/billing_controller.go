package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/BookfoldAR/internal/pkg/billing"
)

type checkoutRequest struct {
	Email      string            `json:"email"`
	SuccessURL string            `json:"successUrl"`
	CancelURL  string            `json:"cancelUrl"`
	Metadata   map[string]string `json:"metadata"`
}

// HandleCheckout opens a hosted checkout session for the lifetime product.
// POST /checkout {email, successUrl, cancelUrl, metadata?}
func (h *Controller) HandleCheckout(c *fiber.Ctx) error {
	var req checkoutRequest
	if err := parseBody(c, &req); err != nil {
		return h.respondError(c, err)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	session, err := h.checkout.CreateCheckoutSession(ctx, billing.CheckoutRequest{
		Email:          req.Email,
		SuccessURL:     req.SuccessURL,
		CancelURL:      req.CancelURL,
		Metadata:       req.Metadata,
		IdempotencyKey: c.Get("Idempotency-Key"),
	})
	if err != nil {
		return h.respondError(c, err)
	}
	if session == nil {
		h.log.Error("checkout produced no session")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create checkout session", "code": "no_session"})
	}

	return c.Status(fiber.StatusOK).JSON(session)
}

// HandleWebhook receives payment processor events. The body is verified over
// its exact bytes, so it must not be parsed before the signature check.
// POST /webhook
func (h *Controller) HandleWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := firstHeaderValue(c, "Stripe-Signature", "Signature")

	ctx, cancel := h.requestContext(c)
	defer cancel()

	result, err := h.webhooks.Process(ctx, rawBody, signature)
	if err != nil {
		return h.respondError(c, err)
	}

	resp := fiber.Map{"received": true, "eventId": result.EventID}
	if result.Duplicate {
		resp["duplicate"] = true
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

// HandlePlan returns the product shown on the paywall.
// GET /plan
func (h *Controller) HandlePlan(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(h.plan)
}
