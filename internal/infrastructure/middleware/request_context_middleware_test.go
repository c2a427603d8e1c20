package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"livegrid/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordedRequest struct {
	method, route string
	status        int
}

type fakeHTTPMetrics struct {
	requests []recordedRequest
}

func (m *fakeHTTPMetrics) RecordHTTPRequest(method, route string, status int, _ time.Duration) {
	m.requests = append(m.requests, recordedRequest{method, route, status})
}

func TestRequestContextMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	metrics := &fakeHTTPMetrics{}

	var seen string
	router := gin.New()
	router.Use(RequestContextMiddleware(logger.NewContextLogger(zap.New(core)), metrics))
	router.GET("/rooms", func(c *gin.Context) {
		seen = logger.RequestID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rooms", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
	assert.Equal(t, []recordedRequest{{"GET", "/rooms", http.StatusNoContent}}, metrics.requests)
	assert.Equal(t, 1, logs.Len())
}

func TestRequestContextMiddleware_ReusesValidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestContextMiddleware(logger.NewContextLogger(zap.NewNop()), nil))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	const id = "6f1f6a2e-5b8e-4a53-9f43-3d0b2c1e7a10"
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, id)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, id, w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid\r\n")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.NotEqual(t, "not-a-uuid\r\n", w.Header().Get(RequestIDHeader))
}
