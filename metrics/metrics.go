// Package metrics exposes the runtime's frame and compute-pool statistics
// as Prometheus collectors, for the host application to register against
// its own registry. Nothing in this package touches a World directly;
// runner.SingleThreaded updates FrameDuration and EntityCount itself after
// each RunFrame.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors bundles every metric this module records. Construct one with
// NewCollectors and register it with prometheus.Register(c) (or a custom
// registry's Register).
type Collectors struct {
	FrameDuration     prometheus.Histogram
	SystemDuration    *prometheus.HistogramVec
	EntityCount       prometheus.Gauge
	ComputeQueueDepth prometheus.Gauge
	ObserverOverflows prometheus.Counter
	ShutdownTimeouts  prometheus.Counter
}

// NewCollectors builds a fresh set of collectors under the given
// namespace (e.g. "redlilium_ecs"), unregistered.
func NewCollectors(namespace string) *Collectors {
	return &Collectors{
		FrameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_duration_seconds",
			Help:      "Wall-clock duration of one full schedule frame.",
			Buckets:   prometheus.DefBuckets,
		}),
		SystemDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "system_duration_seconds",
			Help:      "Wall-clock duration of one system's execution.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"system"}),
		EntityCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entity_count",
			Help:      "Number of live entities in the world.",
		}),
		ComputeQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "compute_queue_depth",
			Help:      "Number of tasks queued or in-flight in the compute pool.",
		}),
		ObserverOverflows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observer_overflows_total",
			Help:      "Number of times the reactive observer cascade cap was hit.",
		}),
		ShutdownTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shutdown_timeouts_total",
			Help:      "Number of graceful shutdowns that exceeded their budget.",
		}),
	}
}

// Register registers every collector with reg.
func (c *Collectors) Register(reg prometheus.Registerer) error {
	for _, collector := range []prometheus.Collector{
		c.FrameDuration, c.SystemDuration, c.EntityCount,
		c.ComputeQueueDepth, c.ObserverOverflows, c.ShutdownTimeouts,
	} {
		if err := reg.Register(collector); err != nil {
			return err
		}
	}
	return nil
}
