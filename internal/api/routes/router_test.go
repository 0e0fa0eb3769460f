package routes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zatekoja/locationhierarchy/internal/api/handlers"
)

func TestRouter_HealthAndMetrics(t *testing.T) {
	handler := NewRouter(handlers.NewLocationHandler(nil, nil), nil, nil).SetupRoutes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRouter_ReloadWithoutReloader(t *testing.T) {
	handler := NewRouter(handlers.NewLocationHandler(nil, nil), nil, nil).SetupRoutes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/locations/reload", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	handler := NewRouter(handlers.NewLocationHandler(nil, nil), nil, nil).SetupRoutes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/locations/roots", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

func TestRouter_Readiness(t *testing.T) {
	router := NewRouter(handlers.NewLocationHandler(nil, nil), nil, nil)
	router.AddReadinessCheck("postgres", pingFunc(func(ctx context.Context) error { return nil }))
	healthy := router.SetupRoutes()

	rec := httptest.NewRecorder()
	healthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ready":true,"checks":{"postgres":"ok"}}`, rec.Body.String())

	router = NewRouter(handlers.NewLocationHandler(nil, nil), nil, nil)
	router.AddReadinessCheck("redis", pingFunc(func(ctx context.Context) error { return errors.New("connection refused") }))
	unhealthy := router.SetupRoutes()

	rec = httptest.NewRecorder()
	unhealthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}
