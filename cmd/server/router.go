package main

import (
	"net/http"
	"time"

	httphandlers "livegrid/internal/handlers/http"
	"livegrid/internal/infrastructure/middleware"
	"livegrid/internal/infrastructure/monitoring"
	"livegrid/pkg/config"
	"livegrid/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type routerDeps struct {
	cfg          *config.Config
	log          *zap.SugaredLogger
	ctxLogger    *logger.ContextLogger
	metrics      *monitoring.PrometheusCollector
	metricsH     http.Handler
	readiness    *monitoring.HealthChecker
	dependencies *monitoring.HealthChecker
	handlers     []httphandlers.RouteRegistrar
	startTime    time.Time
}

func newRouter(d routerDeps) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(d.log))
	router.Use(middleware.TracingMiddleware("/health", "/ready", "/metrics"))
	router.Use(middleware.RequestContextMiddleware(d.ctxLogger, d.metrics))
	router.Use(middleware.CORSMiddleware(d.cfg.Server.AllowedOrigins))
	router.Use(middleware.ErrorHandlerMiddleware(d.log, d.cfg.Server.LegacyNotFoundErrors))
	router.Use(middleware.NewHTTPRateLimitMiddleware(d.cfg))

	httphandlers.Mount(router, d.cfg.Server.BasePath, d.handlers...)

	router.GET("/health", func(c *gin.Context) {
		status := d.dependencies.CheckAll(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"status":       "healthy",
			"timestamp":    time.Now(),
			"uptime":       time.Since(d.startTime).String(),
			"dependencies": status.Checks,
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		status := d.readiness.CheckAll(c.Request.Context())
		if !status.Healthy() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "not_ready",
				"timestamp": status.Timestamp,
				"checks":    status.Checks,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": status.Timestamp,
			"checks":    status.Checks,
		})
	})

	if d.cfg.Monitoring.PrometheusEnabled && d.metricsH != nil {
		router.GET("/metrics", gin.WrapH(d.metricsH))
	}

	return router
}
