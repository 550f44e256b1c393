// Package metrics exposes monitor counters to Prometheus.
//
// The monitor has no locks, so the exporter never reads it while CPUs run.
// Update copies a snapshot at a quiescence point and Collect serves that
// snapshot to concurrent scrapes.
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sarchlab/mpsim/dcache"
	"github.com/sarchlab/mpsim/mon"
)

type cpuSnapshot struct {
	label  string
	issued []uint64
	reads  uint64
	writes uint64
	cache  *dcache.Statistics
}

// Exporter is a prometheus.Collector over the last monitor snapshot.
type Exporter struct {
	issued *prometheus.Desc
	reads  *prometheus.Desc
	writes *prometheus.Desc
	hits   *prometheus.Desc
	misses *prometheus.Desc

	mu         sync.RWMutex
	categories []string
	cpus       []cpuSnapshot
}

// NewExporter creates an exporter whose metric names start with namespace.
func NewExporter(namespace string) *Exporter {
	return &Exporter{
		issued: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "instructions_issued_total"),
			"Instructions issued per CPU and category.",
			[]string{"cpu", "category"}, nil,
		),
		reads: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "data_reads_total"),
			"Data reads per CPU.",
			[]string{"cpu"}, nil,
		),
		writes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "data_writes_total"),
			"Data writes per CPU.",
			[]string{"cpu"}, nil,
		),
		hits: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "dcache_hits_total"),
			"L1 data cache hits per CPU.",
			[]string{"cpu"}, nil,
		),
		misses: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "dcache_misses_total"),
			"L1 data cache misses per CPU.",
			[]string{"cpu"}, nil,
		),
	}
}

// Update replaces the snapshot with the current counters of m. caches is
// indexed by CPU and may be shorter than the CPU count, or nil, when CPUs
// run without a data cache.
//
// Update must only be called while no CPU is executing.
func (e *Exporter) Update(m *mon.Monitor, caches []dcache.Statistics) {
	table := m.Categories()

	categories := make([]string, table.NumCategories())
	for i := range categories {
		categories[i] = table.CategoryName(mon.Category(i))
	}

	cpus := make([]cpuSnapshot, m.NumCPUs())
	for i := range cpus {
		c := m.CPU(i)

		snap := cpuSnapshot{
			label:  strconv.Itoa(i + 1),
			issued: make([]uint64, len(categories)),
			reads:  c.Reads(),
			writes: c.Writes(),
		}
		for cat := range snap.issued {
			snap.issued[cat] = c.IssueCount(mon.Category(cat))
		}
		if i < len(caches) {
			stats := caches[i]
			snap.cache = &stats
		}

		cpus[i] = snap
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.categories = categories
	e.cpus = cpus
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.issued
	ch <- e.reads
	ch <- e.writes
	ch <- e.hits
	ch <- e.misses
}

// Collect implements prometheus.Collector.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, cpu := range e.cpus {
		for cat, n := range cpu.issued {
			if n == 0 {
				continue
			}
			ch <- prometheus.MustNewConstMetric(e.issued, prometheus.CounterValue,
				float64(n), cpu.label, e.categories[cat])
		}

		ch <- prometheus.MustNewConstMetric(e.reads, prometheus.CounterValue,
			float64(cpu.reads), cpu.label)
		ch <- prometheus.MustNewConstMetric(e.writes, prometheus.CounterValue,
			float64(cpu.writes), cpu.label)

		if cpu.cache != nil {
			ch <- prometheus.MustNewConstMetric(e.hits, prometheus.CounterValue,
				float64(cpu.cache.Hits), cpu.label)
			ch <- prometheus.MustNewConstMetric(e.misses, prometheus.CounterValue,
				float64(cpu.cache.Misses), cpu.label)
		}
	}
}
