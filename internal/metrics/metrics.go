// Package metrics records per-run counters and writes them to a node_exporter
// textfile. secretcron is a short-lived process, so nothing is served over HTTP.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors for one invocation. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	refreshTotal       *prometheus.CounterVec
	triggerOpsTotal    *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	nextRotation       *prometheus.GaugeVec
	lastRun            prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		refreshTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "secretcron_refresh_total",
			Help: "Secret refresh attempts by outcome",
		}, []string{"outcome"}),
		triggerOpsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "secretcron_trigger_operations_total",
			Help: "Crontab trigger operations by kind and result",
		}, []string{"op", "result"}),
		notificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "secretcron_notifications_total",
			Help: "Notification emails by result",
		}, []string{"result"}),
		nextRotation: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "secretcron_next_rotation_timestamp_seconds",
			Help: "Cached next rotation date per secret, as a unix timestamp",
		}, []string{"secret_id"}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "secretcron_last_run_timestamp_seconds",
			Help: "Completion time of the last run",
		}),
	}
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRefresh counts one refresh with the given outcome.
func (m *Metrics) RecordRefresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(outcome).Inc()
}

// RecordTrigger counts one arm or disarm.
func (m *Metrics) RecordTrigger(op string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.triggerOpsTotal.WithLabelValues(op, result).Inc()
}

// RecordNotification counts one email by result: sent, skipped or error.
func (m *Metrics) RecordNotification(result string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(result).Inc()
}

// SetNextRotation records the cached rotation date for a secret.
func (m *Metrics) SetNextRotation(secretID string, next time.Time) {
	if m == nil {
		return
	}
	m.nextRotation.WithLabelValues(secretID).Set(float64(next.Unix()))
}

// MarkRun records the completion time of the run.
func (m *Metrics) MarkRun(at time.Time) {
	if m == nil {
		return
	}
	m.lastRun.Set(float64(at.Unix()))
}

// WriteTextfile writes all collectors to path in the text exposition format.
// An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
