package router

import (
	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuelReschke/BookfoldAR/app/controllers"
)

// OpsRouter serves health, metrics and the API docs.
type OpsRouter struct {
	ctrl        *controllers.Controller
	gatherer    prometheus.Gatherer
	metricsUser string
	metricsPass string
	openAPIFile string
}

func NewOpsRouter(ctrl *controllers.Controller, gatherer prometheus.Gatherer, metricsUser, metricsPass, openAPIFile string) *OpsRouter {
	return &OpsRouter{
		ctrl:        ctrl,
		gatherer:    gatherer,
		metricsUser: metricsUser,
		metricsPass: metricsPass,
		openAPIFile: openAPIFile,
	}
}

func (h OpsRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", h.ctrl.HandleHealth)

	if h.gatherer != nil {
		handlers := []fiber.Handler{}
		if h.metricsUser != "" {
			handlers = append(handlers, basicauth.New(basicauth.Config{
				Users: map[string]string{h.metricsUser: h.metricsPass},
			}))
		}
		handlers = append(handlers, adaptor.HTTPHandler(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
		app.Get("/metrics", handlers...)
	}

	if h.openAPIFile != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: h.openAPIFile,
			Path:     "v1",
		}))
	}
}
