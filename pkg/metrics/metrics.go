// Package metrics provides Prometheus-backed instrumentation for conversion
// runs. The collector owns a private registry so repeated runs in one
// process (and tests) never collide on metric registration; there is no
// exposition endpoint, the registry is gathered for the end-of-run report.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector tracks one conversion run.
type Collector struct {
	registry *prometheus.Registry

	recordsRead   prometheus.Counter
	shardsWritten prometheus.Counter
	bytesWritten  prometheus.Counter
	flushDuration prometheus.Histogram
}

// NewCollector creates a collector with a fresh registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		recordsRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "jsonshard",
			Name:      "records_read_total",
			Help:      "Records parsed from the input stream.",
		}),
		shardsWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "jsonshard",
			Name:      "shards_written_total",
			Help:      "Shard files flushed to disk.",
		}),
		bytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "jsonshard",
			Name:      "bytes_written_total",
			Help:      "Bytes written across all shard files.",
		}),
		flushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "jsonshard",
			Name:      "flush_duration_seconds",
			Help:      "Time spent serializing one batch into its shard.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
}

// Snapshot is a point-in-time summary of the registry, folded into the
// end-of-run report.
type Snapshot struct {
	RecordsRead   int64
	ShardsWritten int64
	BytesWritten  int64
	// FlushTotal is the cumulative time spent serializing batches.
	FlushTotal time.Duration
	FlushCount int64
}

// Snapshot gathers the registry into a Snapshot.
func (c *Collector) Snapshot() (Snapshot, error) {
	var snap Snapshot

	families, err := c.registry.Gather()
	if err != nil {
		return snap, err
	}

	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch mf.GetName() {
			case "jsonshard_records_read_total":
				snap.RecordsRead = int64(m.GetCounter().GetValue())
			case "jsonshard_shards_written_total":
				snap.ShardsWritten = int64(m.GetCounter().GetValue())
			case "jsonshard_bytes_written_total":
				snap.BytesWritten = int64(m.GetCounter().GetValue())
			case "jsonshard_flush_duration_seconds":
				h := m.GetHistogram()
				snap.FlushCount = int64(h.GetSampleCount())
				snap.FlushTotal = time.Duration(h.GetSampleSum() * float64(time.Second))
			}
		}
	}

	return snap, nil
}

// RecordRead counts one parsed input record.
func (c *Collector) RecordRead() {
	c.recordsRead.Inc()
}

// ShardFlushed counts one completed shard flush.
func (c *Collector) ShardFlushed(bytes int64, elapsed time.Duration) {
	c.shardsWritten.Inc()
	c.bytesWritten.Add(float64(bytes))
	c.flushDuration.Observe(elapsed.Seconds())
}

// Registry exposes the collector's registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
