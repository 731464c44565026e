package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/BookfoldAR/app/controllers"
)

type ApiRouter struct {
	ctrl *controllers.Controller
	// storage backs the rate limiter; nil keeps counters in memory.
	storage      fiber.Storage
	rateLimitMax int
}

func NewApiRouter(ctrl *controllers.Controller, storage fiber.Storage, rateLimitMax int) *ApiRouter {
	if rateLimitMax <= 0 {
		rateLimitMax = 30
	}
	return &ApiRouter{ctrl: ctrl, storage: storage, rateLimitMax: rateLimitMax}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	limited := limiter.New(limiter.Config{
		Max:        h.rateLimitMax,
		Expiration: time.Minute,
		Storage:    h.storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "limiter:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, retry later",
				"code":  "rate_limited",
			})
		},
	})

	app.Post("/access-check", limited, h.ctrl.HandleAccessCheck)
	app.Post("/checkout", limited, h.ctrl.HandleCheckout)
	app.Post("/trial/start", limited, h.ctrl.HandleTrialStart)
	app.Post("/trial/status", limited, h.ctrl.HandleTrialStatus)
	app.Get("/plan", h.ctrl.HandlePlan)

	// Stripe retries on its own schedule; never rate limit the webhook.
	app.Post("/webhook", h.ctrl.HandleWebhook)
}
