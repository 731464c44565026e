package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/BookfoldAR/app/controllers"
	"github.com/ManuelReschke/BookfoldAR/internal/pkg/metrics"
)

func TestInstallRouter_RegistersRoutes(t *testing.T) {
	app := fiber.New()
	ctrl := controllers.New(controllers.Options{})
	InstallRouter(app,
		NewApiRouter(ctrl, nil, 0),
		NewOpsRouter(ctrl, metrics.New().Registry(), "", "", ""),
	)

	registered := map[string]bool{}
	for _, r := range app.GetRoutes(true) {
		registered[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"POST /access-check",
		"POST /checkout",
		"POST /trial/start",
		"POST /trial/status",
		"POST /webhook",
		"GET /plan",
		"GET /healthz",
		"GET /metrics",
	} {
		assert.True(t, registered[want], want)
	}
}

func TestApiRouter_RateLimit(t *testing.T) {
	app := fiber.New()
	InstallRouter(app, NewApiRouter(controllers.New(controllers.Options{}), nil, 2))

	statuses := make([]int, 0, 3)
	var last *http.Response
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/access-check", nil), -1)
		require.NoError(t, err)
		statuses = append(statuses, resp.StatusCode)
		last = resp
	}

	assert.Equal(t, []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusTooManyRequests}, statuses)
	var body map[string]string
	require.NoError(t, json.NewDecoder(last.Body).Decode(&body))
	assert.Equal(t, "rate_limited", body["code"])
}
