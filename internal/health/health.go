// Package health reports whether a watching session is serving its sources:
// how many loaded, how many failed, and whether the load workers keep up.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/logview/internal/store"
	"github.com/therealutkarshpriyadarshi/logview/internal/worker"
	"github.com/therealutkarshpriyadarshi/logview/pkg/types"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// ComponentHealth represents the health of a single component
type ComponentHealth struct {
	Status      Status         `json:"status"`
	Message     string         `json:"message,omitempty"`
	LastChecked time.Time      `json:"last_checked"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// HealthCheck represents a health check function
type HealthCheck func(ctx context.Context) ComponentHealth

// Checker manages health checks for all components
type Checker struct {
	mu         sync.RWMutex
	components map[string]HealthCheck
	lastStatus map[string]ComponentHealth
	timeout    time.Duration
}

// NewChecker creates a new health checker
func NewChecker(timeout time.Duration) *Checker {
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &Checker{
		components: make(map[string]HealthCheck),
		lastStatus: make(map[string]ComponentHealth),
		timeout:    timeout,
	}
}

// Register registers a health check for a component
func (c *Checker) Register(name string, check HealthCheck) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components[name] = check
}

// Unregister removes a health check
func (c *Checker) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.components, name)
	delete(c.lastStatus, name)
}

// Check runs all health checks concurrently
func (c *Checker) Check(ctx context.Context) map[string]ComponentHealth {
	c.mu.RLock()
	components := make(map[string]HealthCheck, len(c.components))
	for k, v := range c.components {
		components[k] = v
	}
	c.mu.RUnlock()

	var (
		wg      sync.WaitGroup
		resMu   sync.Mutex
		results = make(map[string]ComponentHealth, len(components))
	)
	for name, check := range components {
		wg.Add(1)
		go func() {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			result := check(checkCtx)
			result.LastChecked = time.Now()

			resMu.Lock()
			results[name] = result
			resMu.Unlock()
		}()
	}
	wg.Wait()

	c.mu.Lock()
	for name, result := range results {
		c.lastStatus[name] = result
	}
	c.mu.Unlock()

	return results
}

// LastStatus returns the last known status of all components
func (c *Checker) LastStatus() map[string]ComponentHealth {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := make(map[string]ComponentHealth, len(c.lastStatus))
	for k, v := range c.lastStatus {
		status[k] = v
	}
	return status
}

// Overall folds component results: any unhealthy wins, then any degraded
func Overall(results map[string]ComponentHealth) Status {
	overall := StatusHealthy
	for _, result := range results {
		switch result.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall
}

// OverallStatus runs every check and returns the overall health status
func (c *Checker) OverallStatus(ctx context.Context) Status {
	return Overall(c.Check(ctx))
}

// HealthResponse represents the HTTP response for health checks
type HealthResponse struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  time.Time                  `json:"timestamp"`
}

// HTTPHandler serves the full report. Unhealthy answers 503; degraded
// still answers 200.
func (c *Checker) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := c.Check(r.Context())
		response := HealthResponse{
			Status:     Overall(results),
			Components: results,
			Timestamp:  time.Now(),
		}

		statusCode := http.StatusOK
		if response.Status == StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(response)
	}
}

// LivenessHandler answers 200 while the process serves requests
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
	}
}

// SourcesCheck reports on the sources of st. No sources at all, or none
// loaded while some failed, is unhealthy. Any failed or cancelled source
// makes it degraded.
func SourcesCheck(st *store.Store) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		counts := make(map[types.SourceState]int)
		sources := st.Sources()
		for _, src := range sources {
			counts[src.State]++
		}

		failed := counts[types.StateLoadFailed] + counts[types.StateCancelled]
		meta := map[string]any{
			"sources": len(sources),
			"loaded":  counts[types.StateLoaded],
			"loading": counts[types.StatePending] + counts[types.StateLoading],
			"failed":  failed,
			"records": st.TotalCount(),
		}

		switch {
		case len(sources) == 0:
			return ComponentHealth{Status: StatusUnhealthy, Message: "no sources", Metadata: meta}
		case counts[types.StateLoaded] == 0 && failed == len(sources):
			return ComponentHealth{Status: StatusUnhealthy, Message: "every source failed to load", Metadata: meta}
		case failed > 0:
			return ComponentHealth{
				Status:   StatusDegraded,
				Message:  fmt.Sprintf("%d of %d sources failed", failed, len(sources)),
				Metadata: meta,
			}
		default:
			return ComponentHealth{Status: StatusHealthy, Metadata: meta}
		}
	}
}

// PoolCheck reports on the load workers. A full queue or a success rate
// under minSuccess percent is degraded.
func PoolCheck(snapshot func() worker.PoolMetrics, minSuccess float64) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		m := snapshot()
		meta := map[string]any{
			"utilization":    m.Utilization(),
			"workers":        m.NumWorkers,
			"active":         m.WorkersActive,
			"queue_size":     m.QueueSize,
			"queue_capacity": m.QueueCapacity,
			"jobs_processed": m.JobsProcessed,
			"jobs_failed":    m.JobsFailed,
		}

		switch {
		case m.Utilization() >= 100:
			return ComponentHealth{Status: StatusDegraded, Message: "load queue is full", Metadata: meta}
		case m.SuccessRate() < minSuccess:
			return ComponentHealth{
				Status:   StatusDegraded,
				Message:  fmt.Sprintf("load success rate %.1f%%", m.SuccessRate()),
				Metadata: meta,
			}
		default:
			return ComponentHealth{Status: StatusHealthy, Metadata: meta}
		}
	}
}
