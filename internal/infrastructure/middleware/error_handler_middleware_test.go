package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "livegrid/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newErrorRouter(t *testing.T, legacy bool, handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t).Sugar()

	router := gin.New()
	router.Use(RecoveryMiddleware(logger))
	router.Use(ErrorHandlerMiddleware(logger, legacy))
	router.GET("/test", handler)
	return router
}

func TestErrorHandlerMiddleware_RendersAppError(t *testing.T) {
	router := newErrorRouter(t, false, func(c *gin.Context) {
		_ = c.Error(apperrors.NewBadGatewayError("room service failed", nil).
			WithContext("upstream_status", 400))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "BAD_GATEWAY", body["error"])
	assert.Equal(t, "room service failed", body["message"])
	details, ok := body["details"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(400), details["upstream_status"])
}

func TestErrorHandlerMiddleware_PlainErrorIsInternal(t *testing.T) {
	router := newErrorRouter(t, false, func(c *gin.Context) {
		_ = c.Error(assert.AnError)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

func TestErrorHandlerMiddleware_LegacyNotFound(t *testing.T) {
	router := newErrorRouter(t, true, func(c *gin.Context) {
		_ = c.Error(apperrors.NewInvalidInputError("name is required"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "name is required")
}

func TestRecoveryMiddleware(t *testing.T) {
	router := newErrorRouter(t, false, func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}
