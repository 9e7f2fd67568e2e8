package metrics

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"siteguard/internal/dao"
)

// Metrics holds the process counters exposed on /metrics.
type Metrics struct {
	ActiveStreams   atomic.Int64
	TotalStreams    atomic.Uint64
	RejectedStreams atomic.Uint64
	FramesStreamed  atomic.Uint64

	runs       *prometheus.CounterVec
	alerts     *prometheus.CounterVec
	compliance *prometheus.GaugeVec
	watcher    *prometheus.CounterVec

	registry *prometheus.Registry
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "siteguard_analysis_runs_total",
			Help: "Analysis runs by final state",
		}, []string{"state", "simulated"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "siteguard_alerts_total",
			Help: "Alerts raised by type",
		}, []string{"type"}),
		compliance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "siteguard_compliance_score",
			Help: "Compliance score of the latest run per site",
		}, []string{"site"}),
		watcher: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "siteguard_watcher_files_total",
			Help: "Files seen by the ingestion watcher by outcome",
		}, []string{"outcome"}),
	}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	m.registry.MustRegister(m.runs, m.alerts, m.compliance, m.watcher)

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "siteguard_streams_active",
			Help: "Video feeds currently being served",
		},
		func() float64 { return float64(m.ActiveStreams.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "siteguard_streams_total",
			Help: "Video feeds opened",
		},
		func() float64 { return float64(m.TotalStreams.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "siteguard_streams_rejected_total",
			Help: "Video feeds refused because the stream limit was reached",
		},
		func() float64 { return float64(m.RejectedStreams.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "siteguard_frames_streamed_total",
			Help: "JPEG frames written to video feeds",
		},
		func() float64 { return float64(m.FramesStreamed.Load()) },
	))
}

func (m *Metrics) StreamOpened() {
	m.ActiveStreams.Add(1)
	m.TotalStreams.Add(1)
}

func (m *Metrics) StreamClosed() {
	m.ActiveStreams.Add(-1)
}

func (m *Metrics) StreamRejected() {
	m.RejectedStreams.Add(1)
}

func (m *Metrics) FrameStreamed() {
	m.FramesStreamed.Add(1)
}

// WatcherFile counts one watcher outcome such as "dispatched", "skipped" or "unstable".
func (m *Metrics) WatcherFile(outcome string) {
	m.watcher.WithLabelValues(outcome).Inc()
}

// RunFinished records a persisted run.
func (m *Metrics) RunFinished(ctx context.Context, r *dao.AnalysisResult) {
	simulated := "false"
	if r.Simulated {
		simulated = "true"
	}
	m.runs.WithLabelValues(string(r.State), simulated).Inc()
	m.alerts.WithLabelValues(string(dao.AlertTypeNoHelmet)).Add(float64(r.Summary.HelmetViolations))
	m.alerts.WithLabelValues(string(dao.AlertTypeMaskMissing)).Add(float64(r.Summary.MaskViolations))
	m.alerts.WithLabelValues(string(dao.AlertTypeVestMissing)).Add(float64(r.Summary.VestViolations))
	m.compliance.WithLabelValues(r.SiteId).Set(float64(r.ComplianceScore))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
