package metrics

import (
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const namespace = "logview"

// Collector provides a central place for all application metrics. It
// satisfies the observer interfaces of the ingest, filter, watcher and
// worker packages.
type Collector struct {
	// Ingest metrics
	IngestLines    *prometheus.CounterVec
	IngestRecords  prometheus.Counter
	IngestFailures *prometheus.CounterVec
	IngestDuration prometheus.Histogram
	SourcesLoaded  prometheus.Gauge
	Reloads        prometheus.Counter

	// Watch metrics
	WatchEvents *prometheus.CounterVec

	// Filter metrics
	FilterDuration prometheus.Histogram

	// Record metrics
	RecordsByLevel *prometheus.GaugeVec

	// Worker pool metrics
	WorkerJobs *prometheus.CounterVec

	// System metrics
	SystemGoroutines prometheus.Gauge
	SystemMemAlloc   prometheus.Gauge
	SystemMemSys     prometheus.Gauge
	SystemGCPauses   prometheus.Histogram

	registry *prometheus.Registry
	mu       sync.Mutex
	stop     chan struct{}
}

// NewCollector creates a new metrics collector with its own registry
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
	}

	c.initIngestMetrics()
	c.initWatchMetrics()
	c.initFilterMetrics()
	c.initWorkerPoolMetrics()
	c.initSystemMetrics()

	return c
}

func (c *Collector) initIngestMetrics() {
	c.IngestLines = promauto.With(c.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "lines_total",
			Help:      "Total number of lines ingested per source",
		},
		[]string{"source"},
	)

	c.IngestRecords = promauto.With(c.registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "records_total",
			Help:      "Total number of records appended to the store",
		},
	)

	c.IngestFailures = promauto.With(c.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "failures_total",
			Help:      "Total number of failed loads by reason",
		},
		[]string{"reason"},
	)

	c.IngestDuration = promauto.With(c.registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Time taken to load or reload one source",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
	)

	c.SourcesLoaded = promauto.With(c.registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sources_loaded",
			Help:      "Current number of sources in the store",
		},
	)

	c.Reloads = promauto.With(c.registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reloads_total",
			Help:      "Total number of source reloads",
		},
	)

	c.RecordsByLevel = promauto.With(c.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_by_level",
			Help:      "Records in the visible sources by severity level",
		},
		[]string{"level"},
	)
}

func (c *Collector) initWatchMetrics() {
	c.WatchEvents = promauto.With(c.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "events_total",
			Help:      "Total number of raw filesystem events for watched files",
		},
		[]string{"op"},
	)
}

func (c *Collector) initFilterMetrics() {
	c.FilterDuration = promauto.With(c.registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "filter",
			Name:      "duration_seconds",
			Help:      "Time taken to evaluate a filter over the store",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14), // 100µs to ~800ms
		},
	)
}

func (c *Collector) initWorkerPoolMetrics() {
	c.WorkerJobs = promauto.With(c.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "jobs_total",
			Help:      "Total number of background jobs by result",
		},
		[]string{"result"},
	)
}

func (c *Collector) initSystemMetrics() {
	c.SystemGoroutines = promauto.With(c.registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "system",
			Name:      "goroutines_total",
			Help:      "Current number of goroutines",
		},
	)

	c.SystemMemAlloc = promauto.With(c.registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "system",
			Name:      "memory_allocated_bytes",
			Help:      "Bytes of allocated heap objects",
		},
	)

	c.SystemMemSys = promauto.With(c.registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "system",
			Name:      "memory_system_bytes",
			Help:      "Total bytes of memory obtained from the OS",
		},
	)

	c.SystemGCPauses = promauto.With(c.registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "system",
			Name:      "gc_pause_seconds",
			Help:      "GC pause duration",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 15), // 10µs to ~300ms
		},
	)
}

// RecordLines counts lines read from a source
func (c *Collector) RecordLines(source string, n int) {
	c.IngestLines.WithLabelValues(source).Add(float64(n))
}

// RecordRecords counts records appended to the store
func (c *Collector) RecordRecords(n int) {
	c.IngestRecords.Add(float64(n))
}

// RecordFailure counts a failed load
func (c *Collector) RecordFailure(reason string) {
	c.IngestFailures.WithLabelValues(reason).Inc()
}

// ObserveIngest records the duration of one load
func (c *Collector) ObserveIngest(d time.Duration) {
	c.IngestDuration.Observe(d.Seconds())
}

// SetSourcesLoaded sets the number of sources in the store
func (c *Collector) SetSourcesLoaded(n int) {
	c.SourcesLoaded.Set(float64(n))
}

// RecordReload counts a source reload
func (c *Collector) RecordReload() {
	c.Reloads.Inc()
}

// RecordWatchEvent counts a raw filesystem event
func (c *Collector) RecordWatchEvent(op string) {
	c.WatchEvents.WithLabelValues(op).Inc()
}

// ObserveFilter records the duration of one filter pass
func (c *Collector) ObserveFilter(d time.Duration) {
	c.FilterDuration.Observe(d.Seconds())
}

// RecordWorkerJob counts a finished background job
func (c *Collector) RecordWorkerJob(result string) {
	c.WorkerJobs.WithLabelValues(result).Inc()
}

// SetLevelCounts replaces the per-level record gauges
func (c *Collector) SetLevelCounts(counts map[string]int) {
	c.RecordsByLevel.Reset()
	for lvl, n := range counts {
		c.RecordsByLevel.WithLabelValues(lvl).Set(float64(n))
	}
}

// Start begins collecting system metrics periodically
func (c *Collector) Start(interval time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop != nil {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}

	stop := make(chan struct{})
	c.stop = stop
	c.collectSystemMetrics()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.collectSystemMetrics()
			case <-stop:
				return
			}
		}
	}()
}

// Stop stops the periodic system metrics collection
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

// collectSystemMetrics gathers runtime metrics
func (c *Collector) collectSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	c.SystemGoroutines.Set(float64(runtime.NumGoroutine()))
	c.SystemMemAlloc.Set(float64(m.Alloc))
	c.SystemMemSys.Set(float64(m.Sys))

	// Record GC pause time
	if m.NumGC > 0 {
		lastPause := m.PauseNs[(m.NumGC+255)%256]
		c.SystemGCPauses.Observe(float64(lastPause) / 1e9)
	}
}

// Registry returns the Prometheus registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
