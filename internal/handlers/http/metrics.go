package http

import (
	"livegrid/internal/core/domain"

	"github.com/gin-gonic/gin"
)

// Metrics is the subset of the collector the handlers report to.
type Metrics interface {
	RecordCredentialIssued(role domain.Role)
	RecordCredentialError()
	RecordSSOCallback(outcome string)
	RecordSelfTestResult(success bool, avgBitrateKbps int64)
}

// RouteRegistrar is implemented by every handler.
type RouteRegistrar interface {
	SetupRoutes(router gin.IRouter)
}
