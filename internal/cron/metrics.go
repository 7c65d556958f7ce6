package cron

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "hoyolab"

// Metrics records task runs as Prometheus metrics. It is a RunRecorder.
type Metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the task metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "task_runs_total",
			Help:      "Task runs by task name, trigger and result.",
		}, []string{"task", "trigger", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "task_duration_seconds",
			Help:      "Task run duration.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"task"}),
	}
	reg.MustRegister(m.runs, m.duration)

	return m
}

// RecordRun implements RunRecorder.
func (m *Metrics) RecordRun(_ context.Context, res Result) error {
	result := "success"
	switch {
	case res.Skipped:
		result = "skipped"
	case res.Err != nil:
		result = "failure"
	}

	m.runs.WithLabelValues(res.Name, string(res.Trigger), result).Inc()
	if !res.Skipped {
		m.duration.WithLabelValues(res.Name).Observe(res.Duration.Seconds())
	}

	return nil
}
