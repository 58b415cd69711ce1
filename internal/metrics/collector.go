package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vk/framegridgo/internal/pool"
)

var (
	poolBuffersDesc = prometheus.NewDesc(
		namespace+"_pool_buffers",
		"Pooled buffers by class and state.",
		[]string{"class", "state"}, nil,
	)
	poolHighWaterDesc = prometheus.NewDesc(
		namespace+"_pool_high_water",
		"Buffer budget per class.",
		[]string{"class"}, nil,
	)
	poolAcquiresDesc = prometheus.NewDesc(
		namespace+"_pool_acquires_total",
		"Lifetime lease acquisitions.",
		nil, nil,
	)
	poolExhaustedDesc = prometheus.NewDesc(
		namespace+"_pool_exhausted_total",
		"TryAcquire failures due to an empty budget.",
		nil, nil,
	)
)

// PoolCollector exports pool accounting on scrape, with no counters to
// keep in sync: every scrape reads pool.Stats directly.
type PoolCollector struct {
	pool *pool.Pool
}

// NewPoolCollector wraps a pool for registration.
func NewPoolCollector(p *pool.Pool) *PoolCollector {
	return &PoolCollector{pool: p}
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- poolBuffersDesc
	ch <- poolHighWaterDesc
	ch <- poolAcquiresDesc
	ch <- poolExhaustedDesc
}

// Collect implements prometheus.Collector.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.pool.Stats()

	for class, cs := range st.Classes {
		name := class.String()
		ch <- prometheus.MustNewConstMetric(poolBuffersDesc,
			prometheus.GaugeValue, float64(cs.Free), name, "free")
		ch <- prometheus.MustNewConstMetric(poolBuffersDesc,
			prometheus.GaugeValue, float64(cs.Leased), name, "leased")
		ch <- prometheus.MustNewConstMetric(poolHighWaterDesc,
			prometheus.GaugeValue, float64(cs.HighWater), name)
	}
	ch <- prometheus.MustNewConstMetric(poolAcquiresDesc,
		prometheus.CounterValue, float64(st.Acquires))
	ch <- prometheus.MustNewConstMetric(poolExhaustedDesc,
		prometheus.CounterValue, float64(st.Exhausted))
}
