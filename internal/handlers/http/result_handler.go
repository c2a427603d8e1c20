package http

import (
	"net/http"
	"strconv"

	"livegrid/internal/core/domain"
	"livegrid/internal/core/ports"
	apperrors "livegrid/pkg/errors"

	"github.com/gin-gonic/gin"
)

type ResultHandler struct {
	results ports.ResultService
	metrics Metrics
}

func NewResultHandler(results ports.ResultService, metrics Metrics) *ResultHandler {
	return &ResultHandler{
		results: results,
		metrics: metrics,
	}
}

func (h *ResultHandler) SetupRoutes(router gin.IRouter) {
	results := router.Group("/e2e_test/results")
	{
		results.POST("", h.RecordResult)
		results.GET("", h.ListResults)
		results.GET("/:id", h.GetResult)
	}
}

// RecordResult stores a finished self-test. Client supplied id and
// createdAt are ignored.
func (h *ResultHandler) RecordResult(c *gin.Context) {
	var record domain.TestResultRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		abortWithError(c, apperrors.NewInvalidInputError("invalid result body: "+err.Error()))
		return
	}

	stored, err := h.results.Record(c.Request.Context(), record)
	if err != nil {
		abortWithError(c, err)
		return
	}

	h.metrics.RecordSelfTestResult(stored.Success, stored.AvgBitrate)
	c.JSON(http.StatusCreated, gin.H{
		"id":     stored.ID,
		"record": stored,
	})
}

func (h *ResultHandler) GetResult(c *gin.Context) {
	record, err := h.results.Get(c.Request.Context(), domain.RecordID(c.Param("id")))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *ResultHandler) ListResults(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			abortWithError(c, apperrors.NewInvalidInputError("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	records, err := h.results.List(c.Request.Context(), limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if records == nil {
		records = []*domain.TestResultRecord{}
	}
	c.JSON(http.StatusOK, records)
}
