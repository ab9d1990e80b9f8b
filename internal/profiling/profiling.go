// Package profiling samples the process's own resource usage while a
// session is open and optionally serves pprof endpoints.
package profiling

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"net/http/pprof"
	"runtime"
	"runtime/metrics"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/logview/internal/logging"
)

const (
	DefaultInterval           = time.Second
	DefaultGoroutineThreshold = 10000

	cpuMetric = "/cpu/classes/total:cpu-seconds"
)

// Config holds profiling configuration
type Config struct {
	Enabled            bool          `yaml:"enabled"`
	Address            string        `yaml:"address,omitempty"` // pprof HTTP address, empty for none
	Interval           time.Duration `yaml:"interval,omitempty"`
	GoroutineThreshold int           `yaml:"goroutine_threshold,omitempty"`
	BlockProfile       bool          `yaml:"block_profile,omitempty"`
	MutexProfile       bool          `yaml:"mutex_profile,omitempty"`
}

// Sample is one resource usage reading
type Sample struct {
	Time        time.Time `json:"time"`
	CPUPercent  float64   `json:"cpu_percent"`
	MemoryMB    float64   `json:"memory_mb"`
	HeapObjects uint64    `json:"heap_objects"`
	Goroutines  int       `json:"goroutines"`
	NumGC       uint32    `json:"num_gc"`
}

// Summary formats s on one line
func (s Sample) Summary() string {
	return fmt.Sprintf("CPU: %.1f%% | Memory: %.1f MB | Goroutines: %d | GC: %d",
		s.CPUPercent, s.MemoryMB, s.Goroutines, s.NumGC)
}

// Monitor takes a Sample every interval and hands it to subscribers
type Monitor struct {
	config Config
	logger *logging.Logger

	mu       sync.Mutex
	subs     []func(Sample)
	latest   Sample
	haveLast bool
	lastCPU  float64
	lastWall time.Time

	server   *http.Server
	listener net.Listener

	stopCh    chan struct{}
	doneCh    chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a monitor. Nothing runs until Start.
func New(cfg Config, logger *logging.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.GoroutineThreshold <= 0 {
		cfg.GoroutineThreshold = DefaultGoroutineThreshold
	}
	return &Monitor{
		config: cfg,
		logger: logging.OrNop(logger).WithComponent("profiling"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Name implements shutdown.Component
func (m *Monitor) Name() string { return "profiling" }

// Subscribe registers fn for every future sample. fn runs on the sampling
// goroutine and must not block.
func (m *Monitor) Subscribe(fn func(Sample)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// Latest returns the most recent sample
func (m *Monitor) Latest() (Sample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest, m.haveLast
}

// Addr returns the pprof listener address once started
func (m *Monitor) Addr() string {
	if m.listener == nil {
		return ""
	}
	return m.listener.Addr().String()
}

// Start enables the configured runtime profiles, binds the pprof server
// and starts sampling. A disabled monitor does nothing.
func (m *Monitor) Start() error {
	if !m.config.Enabled {
		return nil
	}

	var err error
	m.startOnce.Do(func() {
		if m.config.BlockProfile {
			runtime.SetBlockProfileRate(1)
		}
		if m.config.MutexProfile {
			runtime.SetMutexProfileFraction(1)
		}

		if m.config.Address != "" {
			if err = m.serve(); err != nil {
				close(m.doneCh)
				return
			}
		}

		m.Sample()
		go m.loop()
		m.logger.Info().Dur("interval", m.config.Interval).Msg("Profiling started")
	})
	return err
}

func (m *Monitor) serve() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("/debug/stats", m.statsHandler)

	ln, err := net.Listen("tcp", m.config.Address)
	if err != nil {
		return fmt.Errorf("profiling server error: %w", err)
	}
	m.listener = ln
	m.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		m.logger.Info().Str("address", ln.Addr().String()).Msg("Starting profiling HTTP server")
		if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error().Err(err).Msg("Profiling server error")
		}
	}()
	return nil
}

// Stop stops sampling and shuts the pprof server down
func (m *Monitor) Stop(ctx context.Context) error {
	if !m.config.Enabled {
		return nil
	}

	var err error
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.startOnce.Do(func() { close(m.doneCh) })

		select {
		case <-m.doneCh:
		case <-ctx.Done():
			err = ctx.Err()
			return
		}

		if m.server != nil {
			if serr := m.server.Shutdown(ctx); serr != nil {
				m.logger.Error().Err(serr).Msg("Failed to shutdown profiling server")
				err = serr
			}
		}
		if m.config.BlockProfile {
			runtime.SetBlockProfileRate(0)
		}
		if m.config.MutexProfile {
			runtime.SetMutexProfileFraction(0)
		}
		m.logger.Info().Msg("Profiling stopped")
	})
	return err
}

func (m *Monitor) loop() {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			s := m.Sample()
			if s.Goroutines > m.config.GoroutineThreshold {
				m.logger.Warn().
					Int("goroutines", s.Goroutines).
					Int("threshold", m.config.GoroutineThreshold).
					Msg("High goroutine count detected")
			} else {
				m.logger.Debug().Str("usage", s.Summary()).Msg("Resource usage")
			}
		}
	}
}

// Sample takes a reading now, stores it as the latest and notifies
// subscribers. CPU usage is averaged since the previous reading and is
// zero on the first one.
func (m *Monitor) Sample() Sample {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	now := time.Now()
	cpu := cpuSeconds()

	s := Sample{
		Time:        now,
		MemoryMB:    float64(ms.Sys) / (1024 * 1024),
		HeapObjects: ms.HeapObjects,
		Goroutines:  runtime.NumGoroutine(),
		NumGC:       ms.NumGC,
	}

	m.mu.Lock()
	if !m.lastWall.IsZero() {
		s.CPUPercent = cpuPercent(cpu-m.lastCPU, now.Sub(m.lastWall), runtime.NumCPU())
	}
	m.lastCPU = cpu
	m.lastWall = now
	m.latest = s
	m.haveLast = true
	subs := append(([]func(Sample))(nil), m.subs...)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
	return s
}

// cpuSeconds reads the runtime's estimate of CPU time used by the process
func cpuSeconds() float64 {
	sample := []metrics.Sample{{Name: cpuMetric}}
	metrics.Read(sample)
	if sample[0].Value.Kind() != metrics.KindFloat64 {
		return 0
	}
	return sample[0].Value.Float64()
}

func cpuPercent(cpu float64, wall time.Duration, cpus int) float64 {
	if wall <= 0 || cpus <= 0 {
		return 0
	}
	pct := cpu / wall.Seconds() / float64(cpus) * 100
	return math.Min(100, math.Max(0, pct))
}

// statsHandler returns the latest sample and heap statistics
func (m *Monitor) statsHandler(w http.ResponseWriter, r *http.Request) {
	s := m.Sample()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	fmt.Fprintf(w, "%s\n\n", s.Summary())
	fmt.Fprintf(w, "CPUs: %d\n", runtime.NumCPU())
	fmt.Fprintf(w, "GOMAXPROCS: %d\n", runtime.GOMAXPROCS(0))
	fmt.Fprintf(w, "HeapAlloc: %d MB\n", ms.HeapAlloc/1024/1024)
	fmt.Fprintf(w, "HeapInuse: %d MB\n", ms.HeapInuse/1024/1024)
	fmt.Fprintf(w, "HeapObjects: %d\n", ms.HeapObjects)
	fmt.Fprintf(w, "PauseTotal: %d ms\n", ms.PauseTotalNs/1000000)
}
