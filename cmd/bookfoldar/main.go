package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/ManuelReschke/BookfoldAR/app/controllers"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/archive"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/billing"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/cache"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/config"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/database"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/entitlements"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/env"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/logger"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/metrics"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/middleware"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/router"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/store"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/trial"
)

func main() {
	if err := env.SetupEnvFile(); err != nil && !errors.Is(err, env.ErrNoEnvFile) {
		log.Fatalf("load env file: %v", err)
	}

	cfg := config.Load()
	zl, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	// Missing keys are fatal: the service cannot sell or verify anything.
	if err := cfg.Validate(); err != nil {
		zl.Fatal("invalid configuration", zap.Error(err))
	}

	app, err := NewApplication(cfg, zl)
	if err != nil {
		zl.Fatal("init application", zap.Error(err))
	}

	addr := fmt.Sprintf("%s:%s", cfg.App.Host, cfg.App.Port)
	zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.App.Env))
	if err := app.Listen(addr); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func NewApplication(cfg *config.Config, zl *zap.Logger) (*fiber.App, error) {
	db, err := database.Open(cfg, zl)
	if err != nil {
		return nil, err
	}
	redisClient := cache.NewClient(cfg.Cache, zl)

	archiver, err := archive.New(context.Background(), cfg.Archive, cfg.App.Env, zl)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	repo := store.NewRepository(db)
	ledger := trial.NewLedger(repo, trial.NewRedisCache(redisClient), zl).WithMetrics(m)
	resolver := entitlements.NewResolver(repo, ledger, zl)
	manager := billing.NewManager(repo, billing.NewStripeProcessor(cfg.Stripe.SecretKey), cfg, zl).WithMetrics(m)
	webhooks := billing.NewWebhookProcessor(repo, ledger, archiver, cfg.Stripe.WebhookSecret, zl).WithMetrics(m)

	ctrl := controllers.New(controllers.Options{
		Resolver:       resolver,
		Checkout:       manager,
		Webhooks:       webhooks,
		Ledger:         ledger,
		Repo:           repo,
		Plan:           billing.PlanFromConfig(cfg.Product),
		Metrics:        m,
		Logger:         zl,
		RequestTimeout: cfg.App.RequestTimeout,
	})

	app := fiber.New(fiber.Config{
		AppName:   billing.AppName,
		BodyLimit: 1 << 20,
	})
	app.Use(recover.New(), requestid.New(), middleware.RequestLogger(zl))

	router.InstallRouter(app,
		router.NewApiRouter(ctrl, cache.NewLimiterStorage(cfg.Cache, redisClient, zl), cfg.App.RateLimitMax),
		router.NewOpsRouter(ctrl, m.Registry(), cfg.App.MetricsUser, cfg.App.MetricsPass, openAPIFile()),
	)

	return app, nil
}

// openAPIFile locates the API document relative to the working directory.
func openAPIFile() string {
	for _, base := range []string{"./", "../../"} {
		path := base + "public/docs/v1/openapi.yml"
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
