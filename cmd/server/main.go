package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"livegrid/internal/core/services"
	httphandlers "livegrid/internal/handlers/http"
	"livegrid/internal/infrastructure/monitoring"
	repositories "livegrid/internal/infrastructure/repositories"
	"livegrid/internal/infrastructure/roomservice"
	"livegrid/pkg/circuitbreaker"
	"livegrid/pkg/config"
	"livegrid/pkg/logger"
	"livegrid/pkg/tracing"
	"livegrid/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const healthCheckTimeout = 2 * time.Second

func main() {
	startTime := time.Now()

	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		// Logger is not configured yet.
		zapLogger := logger.New("info", "json")
		zapLogger.Sugar().Fatalw("invalid configuration", "error", err)
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "livegrid",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	resultRepo := repoFactory.CreateResultRepository()

	collector := monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)

	credentialService := services.NewCredentialService(
		cfg.LiveKit.APIKey,
		cfg.LiveKit.APISecret,
		cfg.LiveKit.TokenTTL,
		cfg.LiveKit.ServiceTokenTTL,
	)
	resultService := services.NewResultService(resultRepo, log)
	ssoService := services.NewSSOService(ssoOptions(cfg), log)

	breakerCfg := circuitbreaker.DefaultConfig()
	breakerCfg.FailureThreshold = cfg.LiveKit.Breaker.FailureThreshold
	breakerCfg.SuccessThreshold = cfg.LiveKit.Breaker.SuccessThreshold
	breakerCfg.Timeout = cfg.LiveKit.Breaker.OpenTimeout

	roomClient, err := roomservice.NewClient(
		cfg.LiveKit.Host,
		roomservice.NewCachedTokenSource(credentialService, cfg.LiveKit.ServiceTokenTTL/2),
		breakerCfg,
		cfg.LiveKit.RequestTimeout,
		collector,
		log,
	)
	if err != nil {
		log.Fatalw("failed to create room service client", "error", err)
	}

	readiness := monitoring.NewHealthChecker()
	readiness.AddCheck("results_store", repoFactory.HealthCheck, healthCheckTimeout)

	dependencies := monitoring.NewHealthChecker()
	dependencies.AddCheck("results_store", repoFactory.HealthCheck, healthCheckTimeout)
	dependencies.AddCheck("room_service", roomClient.Healthy, healthCheckTimeout)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(routerDeps{
		cfg:          cfg,
		log:          log,
		ctxLogger:    logger.NewContextLogger(zapLogger),
		metrics:      collector,
		metricsH:     promhttp.Handler(),
		readiness:    readiness,
		dependencies: dependencies,
		handlers: []httphandlers.RouteRegistrar{
			httphandlers.NewCredentialHandler(credentialService, collector, log),
			httphandlers.NewRoomHandler(roomClient),
			httphandlers.NewSSOHandler(ssoService, collector, log),
			httphandlers.NewResultHandler(resultService, collector),
		},
		startTime: startTime,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting livegrid server",
			"address", cfg.Server.Address,
			"base_path", cfg.Server.BasePath,
			"results_driver", repoFactory.Driver(),
			"api_key", utils.MaskSensitive(cfg.LiveKit.APIKey, 4),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	}

	if err := repoFactory.Close(); err != nil {
		log.Errorw("error closing repository factory", "error", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error shutting down tracer provider", "error", err)
	}

	log.Info("livegrid server stopped")
}

// loadConfig reads the explicit path, or the first of the usual locations
// that exists. Without a file, defaults plus env overrides apply.
func loadConfig(explicit string) (*config.Config, error) {
	if explicit != "" {
		return config.Load(explicit)
	}
	for _, path := range []string{"configs/config.yaml", "config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return config.Load(path)
		}
	}
	return config.Load("")
}

func ssoOptions(cfg *config.Config) services.SSOOptions {
	callbackBase := strings.TrimRight(cfg.SSO.CallbackBaseURL, "/")
	return services.SSOOptions{
		ProviderURL:  cfg.SSO.ProviderURL,
		ProfileURL:   joinURL(cfg.SSO.ProviderURL, cfg.SSO.ProfilePath),
		CallbackURL:  callbackBase + strings.TrimRight(cfg.Server.BasePath, "/") + "/sso/callback",
		LoginPageURL: cfg.SSO.AppBaseURL,
		AppBaseURL:   cfg.SSO.AppBaseURL,
		APIKey:       cfg.SSO.APIKey,
		FormHash:     cfg.SSO.FormHash,
		SharedSecret: cfg.SSO.SharedSecret,
		LegalEntity:  cfg.SSO.LegalEntity,
		Timeout:      cfg.SSO.RequestTimeout,
	}
}

// joinURL resolves path against base; an absolute path replaces base's path.
func joinURL(base, path string) string {
	if path == "" {
		return base
	}
	b, err := url.Parse(base)
	if err != nil {
		return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
	}
	ref, err := url.Parse(path)
	if err != nil {
		return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
	}
	return b.ResolveReference(ref).String()
}
