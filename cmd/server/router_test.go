package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"livegrid/internal/core/services"
	httphandlers "livegrid/internal/handlers/http"
	"livegrid/internal/infrastructure/monitoring"
	repositories "livegrid/internal/infrastructure/repositories"
	"livegrid/internal/infrastructure/repositories/memory"
	"livegrid/pkg/config"
	"livegrid/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestRouter(t *testing.T, storeErr error) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	zl := zaptest.NewLogger(t)
	log := zl.Sugar()

	reg := prometheus.NewRegistry()
	collector := monitoring.NewPrometheusCollector(reg)

	readiness := monitoring.NewHealthChecker()
	readiness.AddCheck("results_store", func(context.Context) error { return storeErr }, time.Second)

	credentials := services.NewCredentialService(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, time.Hour, time.Minute)
	results := services.NewResultService(memory.NewMemoryResultRepository(), log)

	return newRouter(routerDeps{
		cfg:          cfg,
		log:          log,
		ctxLogger:    logger.NewContextLogger(zl),
		metrics:      collector,
		metricsH:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		readiness:    readiness,
		dependencies: monitoring.NewHealthChecker(),
		handlers: []httphandlers.RouteRegistrar{
			httphandlers.NewCredentialHandler(credentials, collector, log),
			httphandlers.NewResultHandler(results, collector),
		},
		startTime: time.Now(),
	})
}

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_HealthAndReady(t *testing.T) {
	router := newTestRouter(t, nil)

	w := serve(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = serve(router, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestRouter_NotReadyWhenStoreFails(t *testing.T) {
	router := newTestRouter(t, errors.New("redis: connection refused"))

	w := serve(router, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestRouter_NotReadyWhenResultStoreDegraded(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Results.Driver = repositories.DriverRedis
	cfg.Redis.Enabled = true
	cfg.Redis.Address = "127.0.0.1:1"
	cfg.Redis.ConnectAttempts = 1

	factory, err := repositories.NewRepositoryFactory(cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer factory.Close()

	router := newTestRouter(t, factory.HealthCheck(context.Background()))

	w := serve(router, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "not persisted")
}

func TestRouter_RoutesMountedTwice(t *testing.T) {
	router := newTestRouter(t, nil)

	for _, path := range []string{"/participant/register", "/livekit/participant/register"} {
		w := serve(router, http.MethodPost, path, `{"name":"bob","room":"exam-1"}`)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, 2, strings.Count(w.Body.String(), "."), path)
	}
}

func TestRouter_MetricsExposeRequests(t *testing.T) {
	router := newTestRouter(t, nil)

	serve(router, http.MethodPost, "/e2e_test/results", `{"success":true,"avgBitrate":700}`)

	w := serve(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "livegrid_http_requests_total")
	assert.Contains(t, w.Body.String(), "livegrid_selftest_results_total")
}

func TestSSOOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SSO.ProviderURL = "https://idp.example.com/sso/"
	cfg.SSO.ProfilePath = "/api/profile"
	cfg.SSO.CallbackBaseURL = "https://api.example.com/"

	opts := ssoOptions(cfg)
	assert.Equal(t, "https://idp.example.com/api/profile", opts.ProfileURL)
	assert.Equal(t, "https://api.example.com/livekit/sso/callback", opts.CallbackURL)
	assert.Equal(t, cfg.SSO.AppBaseURL, opts.AppBaseURL)
}
