package memory

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments the engine updates. The registry
// is injected so that each engine (and each test) can carry an isolated
// metrics set instead of sharing process-global collectors.
type Metrics struct {
	collectionsTotal   *prometheus.CounterVec
	reclaimedTotal     *prometheus.CounterVec
	resurrectionsTotal prometheus.Counter
	liveObjects        prometheus.Gauge
	trackedObjects     *prometheus.GaugeVec
}

// NewMetrics registers the engine's instruments with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		collectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cyclegc_collections_total",
			Help: "Completed cycle collection passes by target generation.",
		}, []string{"generation"}),
		reclaimedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cyclegc_reclaimed_total",
			Help: "Objects reclaimed by cycle collection by target generation.",
		}, []string{"generation"}),
		resurrectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "cyclegc_resurrections_total",
			Help: "Doomed objects excluded from reclamation after a finalizer re-established an external reference.",
		}),
		liveObjects: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cyclegc_live_objects",
			Help: "Objects currently in the arena table, leaves included.",
		}),
		trackedObjects: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cyclegc_tracked_objects",
			Help: "Container objects per generation bucket.",
		}, []string{"generation"}),
	}
}
