// Package metrics holds the Prometheus collectors for analysis runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal     *prometheus.CounterVec
	RunDuration   prometheus.Histogram
	StageDuration *prometheus.HistogramVec
	StageFailures *prometheus.CounterVec
	OverallScore  prometheus.Histogram
	AlertsRaised  *prometheus.CounterVec
	RunsInFlight  prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rapport_runs_total",
				Help: "Analysis runs by outcome",
			},
			[]string{"type", "outcome"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rapport_run_duration_seconds",
				Help:    "Wall time of a full analysis run",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
			},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rapport_stage_duration_seconds",
				Help:    "Wall time of one analysis stage",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"stage"},
		),
		StageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rapport_stage_failures_total",
				Help: "Analysis stages that finished with an error",
			},
			[]string{"stage"},
		),
		OverallScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rapport_overall_score",
				Help:    "Distribution of overall health scores",
				Buckets: prometheus.LinearBuckets(10, 10, 10),
			},
		),
		AlertsRaised: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rapport_alerts_total",
				Help: "Alerts raised in health reports",
			},
			[]string{"alert_type"},
		),
		RunsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rapport_runs_in_flight",
				Help: "Analysis runs currently executing",
			},
		),
	}

	m.registry.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.StageDuration,
		m.StageFailures,
		m.OverallScore,
		m.AlertsRaised,
		m.RunsInFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.RunsInFlight.Inc()
}

func (m *Metrics) RunFinished(convType, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RunsInFlight.Dec()
	m.RunsTotal.WithLabelValues(convType, outcome).Inc()
	m.RunDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveStage(stage string, elapsed time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	if failed {
		m.StageFailures.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) ObserveReport(score int, alertTypes []string) {
	if m == nil {
		return
	}
	m.OverallScore.Observe(float64(score))
	for _, t := range alertTypes {
		m.AlertsRaised.WithLabelValues(t).Inc()
	}
}
