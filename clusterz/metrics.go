package clusterz

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricReferencesTotal   = "clusterz_reference_galaxies_total"
	MetricCandidatesTotal   = "clusterz_candidate_pairs_total"
	MetricRetainedTotal     = "clusterz_retained_pairs_total"
	MetricSingularTotal     = "clusterz_singular_pairs_total"
	MetricEmptyResultsTotal = "clusterz_empty_results_total"
	MetricRunsTotal         = "clusterz_runs_total"
	MetricRunDuration       = "clusterz_run_duration_seconds"
)

// Catalog labels.
const (
	CatalogUnknown = "unknown"
	CatalogRandom  = "random"
)

// Run status labels.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics contains Prometheus metrics for estimator runs.
// All operations are thread-safe.
type Metrics struct {
	references   prometheus.Counter
	candidates   *prometheus.CounterVec
	retained     *prometheus.CounterVec
	singular     *prometheus.CounterVec
	emptyResults *prometheus.CounterVec
	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
}

// NewMetrics creates the collectors. They are not registered; call Register.
func NewMetrics() *Metrics {
	return &Metrics{
		references: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricReferencesTotal,
			Help: "Total number of reference galaxies processed",
		}),
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricCandidatesTotal,
			Help: "Candidate pairs returned by the chord-radius query, by catalog",
		}, []string{"catalog"}),
		retained: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRetainedTotal,
			Help: "Pairs that passed the separation window and contributed, by catalog",
		}, []string{"catalog"}),
		singular: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricSingularTotal,
			Help: "Pairs dropped for zero physical separation, by catalog",
		}, []string{"catalog"}),
		emptyResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricEmptyResultsTotal,
			Help: "Reference galaxies with no pairs, by catalog",
		}, []string{"catalog"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRunsTotal,
			Help: "Estimator runs by completion status",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricRunDuration,
			Help:    "Histogram of estimator run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 3600},
		}),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all Prometheus collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.references,
		m.candidates,
		m.retained,
		m.singular,
		m.emptyResults,
		m.runs,
		m.runDuration,
	}
}

// observePair records the counters of one PairSum. A nil receiver is a no-op
// so the estimator can run without metrics.
func (m *Metrics) observePair(catalog string, s PairSum) {
	if m == nil {
		return
	}
	m.candidates.WithLabelValues(catalog).Add(float64(s.Candidates))
	m.retained.WithLabelValues(catalog).Add(float64(s.Retained))
	m.singular.WithLabelValues(catalog).Add(float64(s.Singular))
	if s.Retained == 0 {
		m.emptyResults.WithLabelValues(catalog).Inc()
	}
}

func (m *Metrics) incReferences() {
	if m == nil {
		return
	}
	m.references.Inc()
}

func (m *Metrics) observeRun(status string, seconds float64) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
	m.runDuration.Observe(seconds)
}
