package query

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the small Prometheus registry backing Context.Stat (spec.md
// §6.4), grounded on the teacher's monitoring.MetricsCollector: bare
// prometheus.NewGauge/NewHistogram construction registered against a
// caller-supplied registry rather than the promauto global default, so a
// caller embeds this registry into its own rather than polluting
// whichever process links this module in.
type Metrics struct {
	Vertices      prometheus.Gauge
	Edges         prometheus.Gauge
	Jobs          prometheus.Gauge
	MatchDuration prometheus.Histogram
}

// NewMetrics constructs an unregistered Metrics set.
func NewMetrics() *Metrics {
	return &Metrics{
		Vertices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gridmatch",
			Name:      "vertices",
			Help:      "Number of vertices reachable from the traverser root.",
		}),
		Edges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gridmatch",
			Name:      "edges",
			Help:      "Number of dominant-subsystem edges reachable from the traverser root.",
		}),
		Jobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gridmatch",
			Name:      "jobs_tracked",
			Help:      "Number of jobs with a live allocation or reservation.",
		}),
		MatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gridmatch",
			Name:      "match_duration_seconds",
			Help:      "Wall-clock duration of Select/Update/Remove calls.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Register adds every metric to reg. Callers that want gridmatch's
// metrics alongside their own process's should pass their own registry
// rather than relying on a package-level default.
func (m *Metrics) Register(reg *prometheus.Registry) error {
	for _, c := range []prometheus.Collector{m.Vertices, m.Edges, m.Jobs, m.MatchDuration} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
