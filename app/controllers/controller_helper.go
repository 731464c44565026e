package controllers

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ManuelReschke/BookfoldAR/internal/pkg/apperrors"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/billing"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/entitlements"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/metrics"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/store"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/trial"
)

const defaultRequestTimeout = 15 * time.Second

// Options carries the process-wide handles the handlers are built from.
type Options struct {
	Resolver *entitlements.Resolver
	Checkout *billing.Manager
	Webhooks *billing.WebhookProcessor
	Ledger   *trial.Ledger
	Repo     store.Repository
	Plan     billing.PlanDetails
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	// RequestTimeout bounds every store and processor call of a request.
	RequestTimeout time.Duration
}

type Controller struct {
	resolver *entitlements.Resolver
	checkout *billing.Manager
	webhooks *billing.WebhookProcessor
	ledger   *trial.Ledger
	repo     store.Repository
	plan     billing.PlanDetails
	metrics  *metrics.Metrics
	log      *zap.Logger
	timeout  time.Duration
}

func New(opts Options) *Controller {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		resolver: opts.Resolver,
		checkout: opts.Checkout,
		webhooks: opts.Webhooks,
		ledger:   opts.Ledger,
		repo:     opts.Repo,
		plan:     opts.Plan,
		metrics:  opts.Metrics,
		log:      log,
		timeout:  timeout,
	}
}

type emailRequest struct {
	Email string `json:"email"`
}

func (h *Controller) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), h.timeout)
}

// parseBody decodes a JSON request body into out. Anything fiber cannot parse,
// including a missing or non-JSON Content-Type, is invalid_body.
func parseBody(c *fiber.Ctx, out interface{}) error {
	if len(bytes.TrimSpace(c.Body())) == 0 {
		return apperrors.Validation("invalid_body", "request body must be a JSON object")
	}
	if !strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEApplicationJSON) {
		return apperrors.Validation("invalid_body", "Content-Type must be application/json")
	}
	if err := c.BodyParser(out); err != nil {
		return apperrors.Validation("invalid_body", "request body must be a JSON object")
	}
	return nil
}

// respondError answers with the status of err's kind and a message that is
// safe for clients. Details go to the log.
func (h *Controller) respondError(c *fiber.Ctx, err error) error {
	status := apperrors.StatusCode(err)
	msg := "internal server error"
	code := "internal_error"
	if appErr, ok := apperrors.As(err); ok {
		msg = appErr.PublicMessage()
		code = appErr.Code
		if appErr.RetryAfter > 0 {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(appErr.RetryAfter/time.Second)))
		}
	}

	fields := []zap.Field{
		zap.String("request_id", requestID(c)),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= fiber.StatusInternalServerError {
		h.log.Error("request failed", fields...)
	} else {
		h.log.Info("request rejected", fields...)
	}

	return c.Status(status).JSON(fiber.Map{"error": msg, "code": code})
}

func requestID(c *fiber.Ctx) string {
	if v, ok := c.Locals("requestid").(string); ok {
		return v
	}
	return ""
}

func firstHeaderValue(c *fiber.Ctx, keys ...string) string {
	for _, k := range keys {
		v := strings.TrimSpace(c.Get(k))
		if v != "" {
			return v
		}
	}
	return ""
}
