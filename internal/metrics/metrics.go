// Package metrics exposes Prometheus counters for the rules engine.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles rules engine metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	SubmissionsTotal     *prometheus.CounterVec
	ClassificationsTotal *prometheus.CounterVec
	CascadeOutcomesTotal *prometheus.CounterVec
	TransitionsTotal     *prometheus.CounterVec
	NotificationsTotal   *prometheus.CounterVec
	SubmitDuration       prometheus.Histogram
}

// New constructs metrics registered on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SubmissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "woms_metric_submissions_total",
				Help: "Metric submissions by kind and result",
			},
			[]string{"kind", "result"},
		),
		ClassificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "woms_metric_classifications_total",
				Help: "Derived classifications by kind and bucket",
			},
			[]string{"kind", "classification"},
		),
		CascadeOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "woms_alert_cascade_outcomes_total",
				Help: "Alert cascade outcomes (none, created, suppressed)",
			},
			[]string{"outcome"},
		),
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "woms_alert_transitions_total",
				Help: "Alert lifecycle transitions by action and result",
			},
			[]string{"action", "result"},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "woms_alert_notifications_total",
				Help: "AlertRaised deliveries by result",
			},
			[]string{"result"},
		),
		SubmitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "woms_metric_submit_duration_seconds",
			Help:    "Duration of the submit unit of work",
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(
		m.SubmissionsTotal,
		m.ClassificationsTotal,
		m.CascadeOutcomesTotal,
		m.TransitionsTotal,
		m.NotificationsTotal,
		m.SubmitDuration,
	)
	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveSubmission records a submit attempt.
func (m *Metrics) ObserveSubmission(kind, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SubmissionsTotal.WithLabelValues(kind, result).Inc()
	m.SubmitDuration.Observe(elapsed.Seconds())
}

// ObserveClassification records a derived bucket.
func (m *Metrics) ObserveClassification(kind, classification string) {
	if m == nil {
		return
	}
	m.ClassificationsTotal.WithLabelValues(kind, classification).Inc()
}

// ObserveCascade records a cascade outcome.
func (m *Metrics) ObserveCascade(outcome string) {
	if m == nil {
		return
	}
	m.CascadeOutcomesTotal.WithLabelValues(outcome).Inc()
}

// ObserveTransition records a lifecycle call.
func (m *Metrics) ObserveTransition(action string, err error) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(action, resultLabel(err)).Inc()
}

// ObserveNotification records an AlertRaised delivery.
func (m *Metrics) ObserveNotification(err error) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(resultLabel(err)).Inc()
}

// WriteTextfile writes the current values in the text exposition format,
// for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
