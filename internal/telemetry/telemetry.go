package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/inkhouse/scribe/config"
)

// Telemetry exposes the gateway's prometheus collectors. A single instance
// is created at startup and injected into the components that record to it.
type Telemetry struct {
	enabled bool

	requests        *prometheus.CounterVec
	quotaRejections prometheus.Counter
	stageDuration   *prometheus.HistogramVec
	toolRounds      prometheus.Histogram
	upstreamErrors  *prometheus.CounterVec
}

// New builds a Telemetry instance and registers its collectors.
func New(cfg config.TelemetryConfig, reg prometheus.Registerer) *Telemetry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	t := &Telemetry{
		enabled: cfg.Enabled,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scribe_requests_total",
			Help: "Generation requests by outcome.",
		}, []string{"outcome"}),
		quotaRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scribe_quota_rejections_total",
			Help: "Requests rejected by the admission quota.",
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scribe_stage_duration_seconds",
			Help:    "Pipeline stage latency.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"stage"}),
		toolRounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scribe_tool_rounds",
			Help:    "Search tool rounds per research stage.",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		}),
		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scribe_upstream_errors_total",
			Help: "Upstream generation failures by stage.",
		}, []string{"stage"}),
	}
	if cfg.Enabled {
		reg.MustRegister(t.requests, t.quotaRejections, t.stageDuration, t.toolRounds, t.upstreamErrors)
	}
	return t
}

// RecordRequest counts a finished request by outcome ("ok", "validation",
// "auth", "quota", "upstream", "internal").
func (t *Telemetry) RecordRequest(outcome string) {
	if !t.enabled {
		return
	}
	t.requests.WithLabelValues(outcome).Inc()
}

// RecordQuotaRejection counts a quota rejection.
func (t *Telemetry) RecordQuotaRejection() {
	if !t.enabled {
		return
	}
	t.quotaRejections.Inc()
}

// ObserveStage records a pipeline stage's latency.
func (t *Telemetry) ObserveStage(stage string, d time.Duration) {
	if !t.enabled {
		return
	}
	t.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveToolRounds records how many search rounds a research stage ran.
func (t *Telemetry) ObserveToolRounds(rounds int) {
	if !t.enabled {
		return
	}
	t.toolRounds.Observe(float64(rounds))
}

// RecordUpstreamError counts a generation failure at the given stage.
func (t *Telemetry) RecordUpstreamError(stage string) {
	if !t.enabled {
		return
	}
	t.upstreamErrors.WithLabelValues(stage).Inc()
}
