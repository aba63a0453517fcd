package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the service.
// All methods are safe on a nil *Metrics (no-op), so components take it optionally.
// ⭐ SSOT: 메트릭 정의는 여기서만
type Metrics struct {
	registry *prometheus.Registry

	// Quote source
	quoteRequests *prometheus.CounterVec
	quoteLatency  prometheus.Histogram

	// Pipeline
	dashboardRuns  *prometheus.CounterVec
	sectorGaps     *prometheus.CounterVec
	symbolFailures prometheus.Counter

	// API
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	// Scheduler
	jobRuns *prometheus.CounterVec
}

// Config holds the metric name prefix
type Config struct {
	Namespace string
}

// DefaultConfig returns the default metrics config
func DefaultConfig() Config {
	return Config{Namespace: "moneyflow"}
}

// New creates collectors on a private registry (plus Go/process collectors)
func New(cfg Config) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)
	ns := cfg.Namespace

	return &Metrics{
		registry: reg,

		quoteRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "quotes",
			Name:      "requests_total",
			Help:      "Per-symbol quote requests by result",
		}, []string{"result"}),
		quoteLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "quotes",
			Name:      "request_duration_seconds",
			Help:      "Per-symbol quote request latency",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		dashboardRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "pipeline",
			Name:      "dashboard_runs_total",
			Help:      "Dashboard runs by data availability",
		}, []string{"available"}),
		sectorGaps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "pipeline",
			Name:      "sector_gaps_total",
			Help:      "Sectors omitted from a table, by reason",
		}, []string{"reason"}),
		symbolFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "pipeline",
			Name:      "symbol_failures_total",
			Help:      "Constituents skipped while ranking leaders",
		}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		httpLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		jobRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by job and result",
		}, []string{"job", "result"}),
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveQuote records one per-symbol quote request
func (m *Metrics) ObserveQuote(err error, d time.Duration) {
	if m == nil {
		return
	}
	m.quoteRequests.WithLabelValues(result(err == nil)).Inc()
	m.quoteLatency.Observe(d.Seconds())
}

// ObserveDashboard records one dashboard run
func (m *Metrics) ObserveDashboard(available bool, gapReasons []string, symbolFailures int) {
	if m == nil {
		return
	}
	m.dashboardRuns.WithLabelValues(strconv.FormatBool(available)).Inc()
	for _, reason := range gapReasons {
		m.sectorGaps.WithLabelValues(reason).Inc()
	}
	m.symbolFailures.Add(float64(symbolFailures))
}

// ObserveHTTP records one HTTP request
func (m *Metrics) ObserveHTTP(route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveJob records one scheduled job run (after retries)
func (m *Metrics) ObserveJob(job string, success bool) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job, result(success)).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
