// Package metrics defines the collector's own Prometheus metrics.
//
// All metrics are registered on a caller-supplied registry so that tests and
// multiple collectors in one process do not collide on the default registry.
// Every method is safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "meterpulse"

// Metrics holds the self-observability instruments.
type Metrics struct {
	// RoundDuration tracks the wall time of one poll-normalize-emit round.
	RoundDuration prometheus.Histogram

	// Rounds counts completed rounds.
	Rounds prometheus.Counter

	// PollLatency tracks per-device query latency.
	PollLatency *prometheus.HistogramVec

	// PollErrors counts failed device polls by kind.
	PollErrors *prometheus.CounterVec

	// FieldWarnings counts missing and unparseable reading fields.
	FieldWarnings *prometheus.CounterVec

	// Overruns counts rounds that took longer than the period.
	Overruns prometheus.Counter
}

// New registers the metrics on reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RoundDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_duration_seconds",
			Help:      "Time spent polling, normalizing and emitting one round",
			Buckets:   prometheus.DefBuckets,
		}),
		Rounds: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Completed collection rounds",
		}),
		PollLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "device_poll_duration_seconds",
			Help:      "Device query latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"device"}),
		PollErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_poll_errors_total",
			Help:      "Failed device polls by device and kind",
		}, []string{"device", "kind"}),
		FieldWarnings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_warnings_total",
			Help:      "Reading fields that were missing or not numeric",
		}, []string{"field", "kind"}),
		Overruns: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "round_overruns_total",
			Help:      "Rounds that exceeded the collection period",
		}),
	}
}

// ObservePoll records one device poll. kind is empty for a successful poll.
func (m *Metrics) ObservePoll(device string, latency time.Duration, kind string) {
	if m == nil {
		return
	}
	m.PollLatency.WithLabelValues(device).Observe(latency.Seconds())
	if kind != "" {
		m.PollErrors.WithLabelValues(device, kind).Inc()
	}
}

// FieldWarning records a missing or unparseable field.
func (m *Metrics) FieldWarning(field, kind string) {
	if m == nil {
		return
	}
	m.FieldWarnings.WithLabelValues(field, kind).Inc()
}

// ObserveRound records one completed round.
func (m *Metrics) ObserveRound(elapsed time.Duration, overrun bool) {
	if m == nil {
		return
	}
	m.Rounds.Inc()
	m.RoundDuration.Observe(elapsed.Seconds())
	if overrun {
		m.Overruns.Inc()
	}
}
