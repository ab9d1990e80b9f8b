package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/therealutkarshpriyadarshi/logview/internal/logging"
)

var (
	ErrPoolClosed = errors.New("worker pool is closed")
)

// Job is a unit of background work, typically one file load. The context
// carries the submitter's cancellation and the pool's job timeout.
type Job func(ctx context.Context) error

// Observer receives job outcomes ("success", "failure", "timeout",
// "cancelled")
type Observer interface {
	RecordWorkerJob(result string)
}

// PoolConfig holds configuration for the worker pool
type PoolConfig struct {
	NumWorkers int           `yaml:"workers"`
	QueueSize  int           `yaml:"queue_size"`
	JobTimeout time.Duration `yaml:"job_timeout"`
}

// Pool runs jobs on a fixed set of workers
type Pool struct {
	config   PoolConfig
	logger   *logging.Logger
	observer Observer
	workers  []*worker
	jobQueue chan *job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once

	// Metrics
	jobsProcessed uint64
	jobsFailed    uint64
	jobsTimeout   uint64
	workersActive int64
}

// worker represents a single worker in the pool
type worker struct {
	id   int
	pool *Pool

	// Metrics
	jobsProcessed uint64
	jobsFailed    uint64
	lastActive    time.Time
	mu            sync.RWMutex
}

// job represents a unit of work
type job struct {
	fn        Job
	ctx       context.Context
	resultCh  chan error
	createdAt time.Time
}

// NewPool creates a new worker pool
func NewPool(config PoolConfig, logger *logging.Logger) *Pool {
	if config.NumWorkers <= 0 {
		config.NumWorkers = 4 // Default
	}

	if config.QueueSize <= 0 {
		config.QueueSize = 64 // Default
	}

	if config.JobTimeout == 0 {
		config.JobTimeout = 10 * time.Minute // Default
	}

	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		config:   config,
		logger:   logging.OrNop(logger).WithComponent("worker_pool"),
		workers:  make([]*worker, config.NumWorkers),
		jobQueue: make(chan *job, config.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}

	for i := 0; i < config.NumWorkers; i++ {
		pool.workers[i] = &worker{id: i, pool: pool}
	}

	return pool
}

// SetObserver installs a job outcome observer. Call before Start.
func (p *Pool) SetObserver(o Observer) {
	p.observer = o
}

// Start starts all workers in the pool. Calling it again is a no-op.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		for _, w := range p.workers {
			p.wg.Add(1)
			go w.run()
		}
		p.logger.Debug().
			Int("workers", len(p.workers)).
			Int("queue_size", p.config.QueueSize).
			Msg("Worker pool started")
	})
}

func (p *Pool) enqueue(ctx context.Context, fn Job) (*job, error) {
	select {
	case <-p.ctx.Done():
		return nil, ErrPoolClosed
	default:
	}

	j := &job{
		fn:        fn,
		ctx:       ctx,
		resultCh:  make(chan error, 1),
		createdAt: time.Now(),
	}

	select {
	case p.jobQueue <- j:
		return j, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.ctx.Done():
		return nil, ErrPoolClosed
	}
}

// Submit runs fn on a worker and waits for its result
func (p *Pool) Submit(ctx context.Context, fn Job) error {
	j, err := p.enqueue(ctx, fn)
	if err != nil {
		return err
	}

	select {
	case err := <-j.resultCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// Stop cancels running jobs and waits for the workers to exit. Queued jobs
// that never started report ErrPoolClosed to their submitters.
func (p *Pool) Stop() error {
	p.stopOnce.Do(func() {
		p.cancel()
		p.wg.Wait()
		p.logger.Debug().
			Uint64("jobs_processed", atomic.LoadUint64(&p.jobsProcessed)).
			Msg("Worker pool stopped")
	})
	return nil
}

// Metrics returns worker pool statistics
func (p *Pool) Metrics() PoolMetrics {
	workerMetrics := make([]WorkerMetrics, len(p.workers))
	for i, w := range p.workers {
		workerMetrics[i] = w.metrics()
	}

	return PoolMetrics{
		NumWorkers:    len(p.workers),
		JobsProcessed: atomic.LoadUint64(&p.jobsProcessed),
		JobsFailed:    atomic.LoadUint64(&p.jobsFailed),
		JobsTimeout:   atomic.LoadUint64(&p.jobsTimeout),
		WorkersActive: int(atomic.LoadInt64(&p.workersActive)),
		QueueSize:     len(p.jobQueue),
		QueueCapacity: cap(p.jobQueue),
		WorkerMetrics: workerMetrics,
	}
}

// run is the main worker loop
func (w *worker) run() {
	defer w.pool.wg.Done()

	for {
		select {
		case <-w.pool.ctx.Done():
			return
		case j := <-w.pool.jobQueue:
			w.processJob(j)
		}
	}
}

// processJob processes a single job
func (w *worker) processJob(j *job) {
	p := w.pool
	atomic.AddInt64(&p.workersActive, 1)
	defer atomic.AddInt64(&p.workersActive, -1)

	w.mu.Lock()
	w.lastActive = time.Now()
	w.mu.Unlock()

	// The submitter may have given up while the job was queued
	if err := j.ctx.Err(); err != nil {
		p.observe("cancelled")
		j.resultCh <- err
		return
	}

	ctx, cancel := context.WithTimeout(j.ctx, p.config.JobTimeout)
	defer cancel()
	stop := context.AfterFunc(p.ctx, cancel)
	defer stop()

	err := j.fn(ctx)

	atomic.AddUint64(&w.jobsProcessed, 1)
	atomic.AddUint64(&p.jobsProcessed, 1)

	switch {
	case err == nil:
		p.observe("success")
	case errors.Is(err, context.DeadlineExceeded) && j.ctx.Err() == nil:
		atomic.AddUint64(&p.jobsTimeout, 1)
		atomic.AddUint64(&w.jobsFailed, 1)
		atomic.AddUint64(&p.jobsFailed, 1)
		p.observe("timeout")
		p.logger.Warn().Int("worker", w.id).Dur("timeout", p.config.JobTimeout).Msg("Job timed out")
	case errors.Is(err, context.Canceled):
		p.observe("cancelled")
	default:
		atomic.AddUint64(&w.jobsFailed, 1)
		atomic.AddUint64(&p.jobsFailed, 1)
		p.observe("failure")
	}

	j.resultCh <- err
}

func (p *Pool) observe(result string) {
	if p.observer != nil {
		p.observer.RecordWorkerJob(result)
	}
}

// metrics returns worker metrics
func (w *worker) metrics() WorkerMetrics {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return WorkerMetrics{
		ID:            w.id,
		JobsProcessed: atomic.LoadUint64(&w.jobsProcessed),
		JobsFailed:    atomic.LoadUint64(&w.jobsFailed),
		LastActive:    w.lastActive,
	}
}

// PoolMetrics holds worker pool statistics
type PoolMetrics struct {
	NumWorkers    int
	JobsProcessed uint64
	JobsFailed    uint64
	JobsTimeout   uint64
	WorkersActive int
	QueueSize     int
	QueueCapacity int
	WorkerMetrics []WorkerMetrics
}

// WorkerMetrics holds individual worker statistics
type WorkerMetrics struct {
	ID            int
	JobsProcessed uint64
	JobsFailed    uint64
	LastActive    time.Time
}

// Utilization returns the queue utilization percentage (0-100)
func (m PoolMetrics) Utilization() float64 {
	if m.QueueCapacity == 0 {
		return 0
	}
	return (float64(m.QueueSize) / float64(m.QueueCapacity)) * 100.0
}

// SuccessRate returns the job success rate percentage (0-100)
func (m PoolMetrics) SuccessRate() float64 {
	total := m.JobsProcessed
	if total == 0 {
		return 100.0
	}
	successful := total - m.JobsFailed
	return (float64(successful) / float64(total)) * 100.0
}
