// Package metrics registers the Prometheus collectors used across the pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	validations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkmedic_validations_total",
		Help: "Validation results by terminal status.",
	}, []string{"status"})

	validationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "linkmedic_validation_duration_seconds",
		Help:    "Time spent resolving a url, per fetch tier.",
		Buckets: prometheus.DefBuckets,
	}, []string{"tier"})

	retries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkmedic_validation_retries_total",
		Help: "Re-attempts made after a failed fetch.",
	})

	browserRenders = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkmedic_browser_renders_total",
		Help: "Browser renderings by outcome.",
	}, []string{"outcome"})

	healthStates = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "linkmedic_monitor_links",
		Help: "Monitored links per health state after the last pass.",
	}, []string{"state"})

	alerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkmedic_alerts_total",
		Help: "Monitoring alerts raised by severity.",
	}, []string{"severity"})

	alertsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkmedic_alerts_dropped_total",
		Help: "Alerts dropped because the dispatcher queue was full.",
	})

	repairsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkmedic_repairs_applied_total",
		Help: "Link rewrites written to documents by strategy.",
	}, []string{"strategy"})
)

// ObserveValidation records a finished validation.
func ObserveValidation(status, tier string, d time.Duration) {
	validations.WithLabelValues(status).Inc()
	validationDuration.WithLabelValues(tier).Observe(d.Seconds())
}

// IncRetries counts one re-attempt.
func IncRetries() {
	retries.Inc()
}

// IncBrowserRender counts a rendering attempt.
func IncBrowserRender(outcome string) {
	browserRenders.WithLabelValues(outcome).Inc()
}

// SetHealthStates replaces the per-state gauges.
func SetHealthStates(counts map[string]int) {
	healthStates.Reset()
	for state, n := range counts {
		healthStates.WithLabelValues(state).Set(float64(n))
	}
}

// IncAlert counts a raised alert.
func IncAlert(severity string) {
	alerts.WithLabelValues(severity).Inc()
}

// IncAlertDropped counts an alert that could not be queued.
func IncAlertDropped() {
	alertsDropped.Inc()
}

// IncRepairApplied counts a rewrite.
func IncRepairApplied(strategy string) {
	repairsApplied.WithLabelValues(strategy).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
