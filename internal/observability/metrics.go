package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "livelinks"

// Metrics holds the pipeline, proxy, scheduler and breaker collectors. It satisfies
// usecase.PipelineMetrics, streamproxy.Metrics and jobs.Metrics.
type Metrics struct {
	registry *prometheus.Registry

	scanCandidates   *prometheus.CounterVec
	scanSourceErrors *prometheus.CounterVec
	assignEvents     *prometheus.CounterVec
	healthVerdicts   *prometheus.CounterVec
	proxyRequests    *prometheus.CounterVec
	jobDurations     *prometheus.HistogramVec
	circuitState     *prometheus.GaugeVec
}

// NewMetrics registers every collector on its own registry, together with
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		scanCandidates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "scan_candidates_total",
			Help:      "Candidates produced by each source adapter.",
		}, []string{"source"}),
		scanSourceErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "scan_source_errors_total",
			Help:      "Source adapters that failed during a scan.",
		}, []string{"source"}),
		assignEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "assign_events_total",
			Help:      "Events that received links, by assignment strategy.",
		}, []string{"strategy"}),
		healthVerdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "health_verdicts_total",
			Help:      "Link probe verdicts.",
		}, []string{"verdict"}),
		proxyRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "proxy_requests_total",
			Help:      "Stream proxy responses by kind and status.",
		}, []string{"kind", "status"}),
		jobDurations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of scheduled pipeline runs.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"job"}),
		circuitState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "circuit_state",
			Help:      "Breaker state per upstream dependency: 0 closed, 1 half open, 2 open.",
		}, []string{"dependency"}),
	}
}

// Handler serves the exposition format for GET /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ScanCandidates(source string, count int) {
	m.scanCandidates.WithLabelValues(source).Add(float64(count))
}

func (m *Metrics) ScanSourceError(source string) {
	m.scanSourceErrors.WithLabelValues(source).Inc()
}

func (m *Metrics) AssignedEvent(strategy string) {
	m.assignEvents.WithLabelValues(strategy).Inc()
}

func (m *Metrics) HealthVerdict(verdict string) {
	m.healthVerdicts.WithLabelValues(verdict).Inc()
}

func (m *Metrics) ProxyRequest(kind string, status int) {
	m.proxyRequests.WithLabelValues(kind, strconv.Itoa(status)).Inc()
}

func (m *Metrics) JobDuration(job string, duration time.Duration) {
	m.jobDurations.WithLabelValues(job).Observe(duration.Seconds())
}

// CircuitState records the breaker state of an upstream dependency. Unknown
// states read as closed.
func (m *Metrics) CircuitState(dependency, state string) {
	value := 0.0
	switch state {
	case "half_open":
		value = 1
	case "open":
		value = 2
	}
	m.circuitState.WithLabelValues(dependency).Set(value)
}
