// Package metrics provides Prometheus metrics for the storage engine
package metrics

import (
	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for a single engine instance.
//
// Each engine owns its own prometheus.Registry rather than registering
// against the global default registerer, so that a process opening more
// than one engine (as the test suite does) never panics on a duplicate
// metric name.
type Metrics struct {
	registry *prometheus.Registry

	Reads              prometheus.Counter
	Writes             prometheus.Counter
	WalAppends         prometheus.Counter
	WalRewrites        prometheus.Counter
	Flushes            prometheus.Counter
	Compactions        prometheus.Counter
	PageCacheHits      prometheus.Counter
	PageCacheMisses    prometheus.Counter
	PageCacheEvictions prometheus.Counter
	PagesReadFromDisk  prometheus.Counter

	MemtableBytes      prometheus.Gauge
	ManifestPagesTotal prometheus.Gauge
}

// NewMetrics creates a fresh registry and registers all engine metrics against it.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,

		Reads: factory.NewCounter(prometheus.CounterOpts{
			Name: "shdb_reads_total",
			Help: "Total number of Get operations.",
		}),
		Writes: factory.NewCounter(prometheus.CounterOpts{
			Name: "shdb_writes_total",
			Help: "Total number of Put and Delete operations.",
		}),
		WalAppends: factory.NewCounter(prometheus.CounterOpts{
			Name: "shdb_wal_appends_total",
			Help: "Total number of entries appended to the write-ahead log.",
		}),
		WalRewrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "shdb_wal_rewrites_total",
			Help: "Total number of write-ahead-log checkpoint rewrites.",
		}),
		Flushes: factory.NewCounter(prometheus.CounterOpts{
			Name: "shdb_flushes_total",
			Help: "Total number of memtable flushes to L0 pages.",
		}),
		Compactions: factory.NewCounter(prometheus.CounterOpts{
			Name: "shdb_compactions_total",
			Help: "Total number of L0-to-L1 compaction runs.",
		}),
		PageCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "shdb_page_cache_hits_total",
			Help: "Total number of page cache hits.",
		}),
		PageCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "shdb_page_cache_misses_total",
			Help: "Total number of page cache misses.",
		}),
		PageCacheEvictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "shdb_page_cache_evictions_total",
			Help: "Total number of page cache evictions.",
		}),
		PagesReadFromDisk: factory.NewCounter(prometheus.CounterOpts{
			Name: "shdb_pages_read_from_disk_total",
			Help: "Total number of pages read from disk (cache misses resolved by I/O).",
		}),
		MemtableBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "shdb_memtable_bytes",
			Help: "Approximate current size of the active memtable in bytes.",
		}),
		ManifestPagesTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "shdb_manifest_pages_total",
			Help: "Total number of pages tracked across all levels in the manifest.",
		}),
	}

	return m
}

// Registry returns the private registry backing this Metrics instance, for
// callers that want to export it (an external collaborator's concern; the
// engine itself never serves it over HTTP).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Snapshot is a point-in-time, allocation-cheap read of the counters,
// suitable for returning from Engine.Metrics().
type Snapshot struct {
	Reads              uint64
	Writes             uint64
	WalAppends         uint64
	WalRewrites        uint64
	Flushes            uint64
	Compactions        uint64
	PageCacheHits      uint64
	PageCacheMisses    uint64
	PageCacheEvictions uint64
	PagesReadFromDisk  uint64
	MemtableBytes      uint64
	ManifestPagesTotal uint64
}

// Snapshot reads the current value of every counter and gauge.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Reads:              counterValue(m.Reads),
		Writes:             counterValue(m.Writes),
		WalAppends:         counterValue(m.WalAppends),
		WalRewrites:        counterValue(m.WalRewrites),
		Flushes:            counterValue(m.Flushes),
		Compactions:        counterValue(m.Compactions),
		PageCacheHits:      counterValue(m.PageCacheHits),
		PageCacheMisses:    counterValue(m.PageCacheMisses),
		PageCacheEvictions: counterValue(m.PageCacheEvictions),
		PagesReadFromDisk:  counterValue(m.PagesReadFromDisk),
		MemtableBytes:      gaugeValue(m.MemtableBytes),
		ManifestPagesTotal: gaugeValue(m.ManifestPagesTotal),
	}
}

func counterValue(c prometheus.Counter) uint64 {
	var pb dto.Metric
	if err := c.Write(&pb); err != nil {
		return 0
	}
	return uint64(pb.GetCounter().GetValue())
}

func gaugeValue(g prometheus.Gauge) uint64 {
	var pb dto.Metric
	if err := g.Write(&pb); err != nil {
		return 0
	}
	return uint64(pb.GetGauge().GetValue())
}
