package monitoring

import (
	"strconv"
	"time"

	"livegrid/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Credentials
	credentialsIssued *prometheus.CounterVec
	credentialErrors  prometheus.Counter

	// Room service proxy
	roomServiceRequests *prometheus.CounterVec
	roomServiceDuration *prometheus.HistogramVec

	// SSO
	ssoCallbacks *prometheus.CounterVec

	// Self-test results
	selfTestResults *prometheus.CounterVec
	selfTestBitrate prometheus.Histogram

	// HTTP
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewPrometheusCollector registers the collectors with reg. Pass
// prometheus.DefaultRegisterer to expose them on /metrics.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		credentialsIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "livegrid_credentials_issued_total",
			Help: "Room credentials issued, by role",
		}, []string{"role"}),

		credentialErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "livegrid_credential_errors_total",
			Help: "Credential requests that failed to sign",
		}),

		roomServiceRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "livegrid_room_service_requests_total",
			Help: "Requests proxied to the room service",
		}, []string{"operation", "outcome"}),

		roomServiceDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "livegrid_room_service_duration_seconds",
			Help:    "Latency of room service requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation"}),

		ssoCallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "livegrid_sso_callbacks_total",
			Help: "SSO callbacks handled, by outcome",
		}, []string{"outcome"}),

		selfTestResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "livegrid_selftest_results_total",
			Help: "Self-test results recorded",
		}, []string{"success"}),

		selfTestBitrate: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "livegrid_selftest_avg_bitrate_kbps",
			Help:    "Average bitrate reported by self-tests",
			Buckets: []float64{50, 100, 250, 500, 1000, 1500, 2500, 4000, 8000},
		}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "livegrid_http_requests_total",
			Help: "HTTP requests served",
		}, []string{"method", "route", "status"}),

		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "livegrid_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (p *PrometheusCollector) RecordCredentialIssued(role domain.Role) {
	p.credentialsIssued.WithLabelValues(string(role)).Inc()
}

func (p *PrometheusCollector) RecordCredentialError() {
	p.credentialErrors.Inc()
}

func (p *PrometheusCollector) RecordRoomServiceRequest(operation, outcome string, duration time.Duration) {
	p.roomServiceRequests.WithLabelValues(operation, outcome).Inc()
	p.roomServiceDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordSSOCallback(outcome string) {
	p.ssoCallbacks.WithLabelValues(outcome).Inc()
}

func (p *PrometheusCollector) RecordSelfTestResult(success bool, avgBitrateKbps int64) {
	p.selfTestResults.WithLabelValues(strconv.FormatBool(success)).Inc()
	p.selfTestBitrate.Observe(float64(avgBitrateKbps))
}

func (p *PrometheusCollector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
