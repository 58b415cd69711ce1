// Package metrics exposes the engine's Prometheus instrumentation: frame
// outcomes, per-node execution timings, edit activity, and a collector
// that reads buffer accounting straight from the pool.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "framegrid"

// Set bundles every instrument the engine records into. A nil *Set is
// valid and records nothing, so components stay testable without a
// registry.
type Set struct {
	frames        *prometheus.CounterVec
	passDuration  prometheus.Histogram
	nodeDuration  *prometheus.HistogramVec
	nodeFailures  *prometheus.CounterVec
	nodesStale    prometheus.Counter
	nodesSkipped  prometheus.Counter
	ticksDropped  prometheus.CounterFunc
	snapshotVer   prometheus.Gauge
	editsApplied  prometheus.Counter
	editsRejected prometheus.Counter
}

// New registers the engine's instruments with reg. The ticksDropped
// reading comes from the clock source via droppedTicks, which may be nil
// when the source has no drop counter.
func New(reg prometheus.Registerer, droppedTicks func() uint64) *Set {
	factory := promauto.With(reg)

	s := &Set{
		frames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frames",
			Name:      "total",
			Help:      "Frames by outcome: presented, degraded, dropped.",
		}, []string{"outcome"}),
		passDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pass",
			Name:      "duration_seconds",
			Help:      "Wall time of one scheduler pass.",
			Buckets:   []float64{0.001, 0.002, 0.005, 0.010, 0.017, 0.033, 0.050, 0.100, 0.250},
		}),
		nodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "node",
			Name:      "execute_seconds",
			Help:      "Execution time of one node tick.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.002, 0.005, 0.010, 0.017, 0.033},
		}, []string{"type"}),
		nodeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "node",
			Name:      "failures_total",
			Help:      "Node executions that returned an error.",
		}, []string{"type"}),
		nodesStale: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "node",
			Name:      "stale_total",
			Help:      "Node ticks served from a previous output instead of a fresh one.",
		}),
		nodesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "node",
			Name:      "skipped_total",
			Help:      "Low-priority node ticks skipped to protect the deadline.",
		}),
		snapshotVer: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "snapshot_version",
			Help:      "Version of the snapshot the last pass executed.",
		}),
		editsApplied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "edits",
			Name:      "applied_total",
			Help:      "Edit batches applied at a frame boundary.",
		}),
		editsRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "edits",
			Name:      "rejected_total",
			Help:      "Edit batches rejected by validation.",
		}),
	}

	if droppedTicks != nil {
		s.ticksDropped = factory.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clock",
			Name:      "ticks_dropped_total",
			Help:      "Ticks dropped because the engine was still busy.",
		}, func() float64 { return float64(droppedTicks()) })
	}

	return s
}

// ObserveFrame records the outcome and duration of one pass.
func (s *Set) ObserveFrame(outcome string, d time.Duration) {
	if s == nil {
		return
	}
	s.frames.WithLabelValues(outcome).Inc()
	s.passDuration.Observe(d.Seconds())
}

// ObserveNode records one node execution.
func (s *Set) ObserveNode(nodeType string, d time.Duration, failed bool) {
	if s == nil {
		return
	}
	s.nodeDuration.WithLabelValues(nodeType).Observe(d.Seconds())
	if failed {
		s.nodeFailures.WithLabelValues(nodeType).Inc()
	}
}

// CountStale records nodes whose consumers fell back to cached output.
func (s *Set) CountStale(n int) {
	if s == nil || n == 0 {
		return
	}
	s.nodesStale.Add(float64(n))
}

// CountSkipped records low-priority nodes skipped by deadline policy.
func (s *Set) CountSkipped(n int) {
	if s == nil || n == 0 {
		return
	}
	s.nodesSkipped.Add(float64(n))
}

// SetSnapshotVersion records the graph version a pass executed against.
func (s *Set) SetSnapshotVersion(v uint64) {
	if s == nil {
		return
	}
	s.snapshotVer.Set(float64(v))
}

// CountEdits records the verdicts of one apply boundary.
func (s *Set) CountEdits(applied, rejected int) {
	if s == nil {
		return
	}
	if applied > 0 {
		s.editsApplied.Add(float64(applied))
	}
	if rejected > 0 {
		s.editsRejected.Add(float64(rejected))
	}
}
