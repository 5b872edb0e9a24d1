package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apphttp "leadtracker_backend/internal/http"
	"leadtracker_backend/platform/config"
	"leadtracker_backend/platform/httpkit"
	"leadtracker_backend/platform/logger"
	"leadtracker_backend/platform/metrics"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type pingModule struct{}

func (pingModule) Name() string { return "ping" }

func (pingModule) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Leads.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
}

func newApp(health apphttp.HealthChecker) *apphttp.App {
	gin.SetMode(gin.TestMode)
	return &apphttp.App{
		Config: &config.Config{
			CORSOrigins:     []string{"http://localhost:5173"},
			RateLimitRPS:    100,
			RateLimitBurst:  100,
			ShutdownTimeout: time.Second,
		},
		Logger:  logger.Discard(),
		Health:  health,
		Metrics: metrics.New(),
		Modules: []apphttp.Module{pingModule{}},
	}
}

func get(engine http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthOK(t *testing.T) {
	engine := New(newApp(pingFunc(func(context.Context) error { return nil })))

	rec := get(engine, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealthReportsDatabaseFailure(t *testing.T) {
	engine := New(newApp(pingFunc(func(context.Context) error { return errors.New("connection refused") })))

	rec := get(engine, "/health")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestModulesMountUnderLeads(t *testing.T) {
	engine := New(newApp(nil))

	rec := get(engine, "/api/v1/leads/ping")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(httpkit.HeaderRequestID))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestMetricsEndpoint(t *testing.T) {
	engine := New(newApp(nil))
	get(engine, "/api/v1/leads/ping")

	rec := get(engine, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}
