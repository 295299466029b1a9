package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors recorded during dependency analysis.
// All methods are safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	FetchAttempts    *prometheus.CounterVec
	AdvisoryQueries  *prometheus.CounterVec
	RegistryLookups  *prometheus.CounterVec
	CacheLookups     *prometheus.CounterVec
	FalsePositives   *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	HealthScore      prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := NewWith(reg)
	m.gatherer = reg
	return m
}

// NewWith registers the collectors on reg.
func NewWith(reg prometheus.Registerer) *Metrics {
	m := &Metrics{}

	m.FetchAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depcheck_fetch_attempts_total",
			Help: "Outbound HTTP attempts by outcome (ok, transport_error)",
		},
		[]string{"outcome"},
	)

	m.AdvisoryQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depcheck_advisory_queries_total",
			Help: "Advisory source queries by source and outcome (ok, degraded)",
		},
		[]string{"source", "outcome"},
	)

	m.RegistryLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depcheck_registry_lookups_total",
			Help: "Latest-version lookups by ecosystem and outcome (ok, unknown)",
		},
		[]string{"ecosystem", "outcome"},
	)

	m.CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depcheck_cache_lookups_total",
			Help: "Result cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)

	m.FalsePositives = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depcheck_false_positives_total",
			Help: "Findings suppressed by the false-positive filter, by reason",
		},
		[]string{"reason"},
	)

	m.AnalysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "depcheck_analysis_duration_seconds",
			Help:    "Wall time of a full dependency analysis run",
			Buckets: prometheus.DefBuckets,
		},
	)

	m.HealthScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "depcheck_health_score",
			Help: "Dependency health score of the most recent run (0-100)",
		},
	)

	reg.MustRegister(
		m.FetchAttempts,
		m.AdvisoryQueries,
		m.RegistryLookups,
		m.CacheLookups,
		m.FalsePositives,
		m.AnalysisDuration,
		m.HealthScore,
	)

	return m
}

func (m *Metrics) FetchAttempt(outcome string) {
	if m == nil {
		return
	}
	m.FetchAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AdvisoryQuery(source, outcome string) {
	if m == nil {
		return
	}
	m.AdvisoryQueries.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) RegistryLookup(ecosystem, outcome string) {
	if m == nil {
		return
	}
	m.RegistryLookups.WithLabelValues(ecosystem, outcome).Inc()
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) FalsePositive(reason string) {
	if m == nil {
		return
	}
	m.FalsePositives.WithLabelValues(reason).Inc()
}

// ObserveRun records the duration and resulting score of one analysis.
func (m *Metrics) ObserveRun(d time.Duration, score int) {
	if m == nil {
		return
	}
	m.AnalysisDuration.Observe(d.Seconds())
	m.HealthScore.Set(float64(score))
}

// Handler returns the Prometheus HTTP handler for the registry created by New.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
