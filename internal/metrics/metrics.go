// Package metrics exposes Prometheus metrics for the orchestration core.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values
const (
	ResultOK        = "ok"
	ResultError     = "error"
	ResultBusy      = "busy"
	ResultCancelled = "cancelled"
	ResultDenied    = "denied"
)

// Metrics groups the collectors recorded by the core components
type Metrics struct {
	// Download metrics
	DownloadsTotal  *prometheus.CounterVec
	DownloadBytes   prometheus.Counter
	DownloadsActive prometheus.Gauge

	// Model metrics
	ModelLoadsTotal *prometheus.CounterVec
	ModelLoadTime   prometheus.Histogram
	ModelLoaded     prometheus.Gauge

	// Agent metrics
	TurnsTotal    *prometheus.CounterVec
	TurnDuration  prometheus.Histogram
	ToolCallTotal *prometheus.CounterVec

	// Permission metrics
	PermissionChecks *prometheus.CounterVec
	GrantedFolders   prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New registers a fresh set of collectors with reg
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		DownloadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "localwork_downloads_total",
				Help: "Model downloads by result",
			},
			[]string{"result"},
		),
		DownloadBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "localwork_download_bytes_total",
				Help: "Bytes written by completed model downloads",
			},
		),
		DownloadsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "localwork_downloads_active",
				Help: "Whether a download job is in flight",
			},
		),

		ModelLoadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "localwork_model_loads_total",
				Help: "Model load attempts by result",
			},
			[]string{"result"},
		),
		ModelLoadTime: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "localwork_model_load_seconds",
				Help:    "Time to load a model in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		),
		ModelLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "localwork_model_loaded",
				Help: "Whether a model is ready for inference",
			},
		),

		TurnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "localwork_agent_turns_total",
				Help: "Agent turns by result",
			},
			[]string{"result"},
		),
		TurnDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "localwork_agent_turn_seconds",
				Help:    "Agent turn duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		ToolCallTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "localwork_tool_calls_total",
				Help: "Tool calls executed by tool and result",
			},
			[]string{"tool", "result"},
		),

		PermissionChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "localwork_permission_checks_total",
				Help: "Folder permission checks by result",
			},
			[]string{"result"},
		),
		GrantedFolders: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "localwork_granted_folders",
				Help: "Number of folder grants currently stored",
			},
		),

		gatherer: reg,
	}

	return m
}

var (
	defaultMetrics *Metrics
	defaultOnce    sync.Once
)

// Default returns the process-wide metrics with Go runtime collectors attached
func Default() *Metrics {
	defaultOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		defaultMetrics = New(reg)
	})
	return defaultMetrics
}

// Handler returns the Prometheus HTTP handler for these metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.gatherer
}

// RecordDownload records a finished download job
func (m *Metrics) RecordDownload(result string, bytes int64) {
	if m == nil {
		return
	}
	m.DownloadsTotal.WithLabelValues(result).Inc()
	if result == ResultOK && bytes > 0 {
		m.DownloadBytes.Add(float64(bytes))
	}
}

// SetDownloadActive flips the in-flight gauge
func (m *Metrics) SetDownloadActive(active bool) {
	if m == nil {
		return
	}
	m.DownloadsActive.Set(boolToFloat(active))
}

// RecordModelLoad records a load attempt and its duration
func (m *Metrics) RecordModelLoad(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ModelLoadsTotal.WithLabelValues(result).Inc()
	if result == ResultOK {
		m.ModelLoadTime.Observe(elapsed.Seconds())
		m.ModelLoaded.Set(1)
	}
}

// RecordTurn records one agent turn
func (m *Metrics) RecordTurn(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(result).Inc()
	m.TurnDuration.Observe(elapsed.Seconds())
}

// RecordToolCall records one executed tool call
func (m *Metrics) RecordToolCall(tool string, failed bool) {
	if m == nil {
		return
	}
	result := ResultOK
	if failed {
		result = ResultError
	}
	m.ToolCallTotal.WithLabelValues(tool, result).Inc()
}

// RecordPermissionCheck records an authorization decision
func (m *Metrics) RecordPermissionCheck(allowed bool) {
	if m == nil {
		return
	}
	result := ResultOK
	if !allowed {
		result = ResultDenied
	}
	m.PermissionChecks.WithLabelValues(result).Inc()
}

// SetGrantedFolders sets the grant count gauge
func (m *Metrics) SetGrantedFolders(n int) {
	if m == nil {
		return
	}
	m.GrantedFolders.Set(float64(n))
}

// Timer helps measure duration
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the time since the timer started
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
