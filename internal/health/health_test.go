package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/therealutkarshpriyadarshi/logview/internal/store"
	"github.com/therealutkarshpriyadarshi/logview/internal/worker"
	"github.com/therealutkarshpriyadarshi/logview/pkg/types"
)

func fixed(status Status) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		return ComponentHealth{Status: status}
	}
}

func TestNewChecker(t *testing.T) {
	if c := NewChecker(0); c.timeout != 5*time.Second {
		t.Errorf("default timeout = %v, want 5s", c.timeout)
	}
	if c := NewChecker(time.Second); c.timeout != time.Second {
		t.Errorf("timeout = %v, want 1s", c.timeout)
	}
}

func TestOverall(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy wins", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(time.Second)
			for i, s := range tt.statuses {
				c.Register(string(rune('a'+i)), fixed(s))
			}
			if got := c.OverallStatus(context.Background()); got != tt.want {
				t.Errorf("OverallStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCheck_RecordsLastStatus(t *testing.T) {
	c := NewChecker(time.Second)
	c.Register("sources", fixed(StatusDegraded))
	c.Register("pool", fixed(StatusHealthy))

	results := c.Check(context.Background())
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	last := c.LastStatus()
	if last["sources"].Status != StatusDegraded || last["sources"].LastChecked.IsZero() {
		t.Errorf("last status = %+v", last["sources"])
	}

	c.Unregister("sources")
	if _, ok := c.LastStatus()["sources"]; ok {
		t.Error("Unregister should drop the last status")
	}
}

func addSource(t *testing.T, st *store.Store, id string, state types.SourceState) {
	t.Helper()
	if err := st.AddSource(&types.LogSource{ID: id, Path: "/tmp/" + id + ".log", State: state}); err != nil {
		t.Fatalf("AddSource() error = %v", err)
	}
}

func TestSourcesCheck(t *testing.T) {
	tests := []struct {
		name   string
		states []types.SourceState
		want   Status
	}{
		{"no sources", nil, StatusUnhealthy},
		{"all loaded", []types.SourceState{types.StateLoaded, types.StateLoaded}, StatusHealthy},
		{"still loading", []types.SourceState{types.StateLoading}, StatusHealthy},
		{"one failed", []types.SourceState{types.StateLoaded, types.StateLoadFailed}, StatusDegraded},
		{"cancelled", []types.SourceState{types.StateLoaded, types.StateCancelled}, StatusDegraded},
		{"all failed", []types.SourceState{types.StateLoadFailed, types.StateCancelled}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.New(10)
			for i, s := range tt.states {
				addSource(t, st, string(rune('a'+i)), s)
			}
			got := SourcesCheck(st)(context.Background())
			if got.Status != tt.want {
				t.Errorf("status = %s (%s), want %s", got.Status, got.Message, tt.want)
			}
			if got.Metadata["sources"] != len(tt.states) {
				t.Errorf("metadata = %v", got.Metadata)
			}
		})
	}
}

func TestPoolCheck(t *testing.T) {
	tests := []struct {
		name string
		m    worker.PoolMetrics
		want Status
	}{
		{"idle", worker.PoolMetrics{NumWorkers: 2, QueueCapacity: 4}, StatusHealthy},
		{"queue full", worker.PoolMetrics{QueueSize: 4, QueueCapacity: 4}, StatusDegraded},
		{"queue busy", worker.PoolMetrics{QueueSize: 3, QueueCapacity: 4}, StatusHealthy},
		{"no queue", worker.PoolMetrics{}, StatusHealthy},
		{"failing", worker.PoolMetrics{QueueCapacity: 4, JobsProcessed: 10, JobsFailed: 8}, StatusDegraded},
		{"mostly fine", worker.PoolMetrics{QueueCapacity: 4, JobsProcessed: 10, JobsFailed: 1}, StatusHealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := PoolCheck(func() worker.PoolMetrics { return tt.m }, 50)
			got := check(context.Background())
			if got.Status != tt.want {
				t.Errorf("status = %s, want %s", got.Status, tt.want)
			}
			if got.Metadata["utilization"] != tt.m.Utilization() {
				t.Errorf("utilization = %v, want %v", got.Metadata["utilization"], tt.m.Utilization())
			}
		})
	}
}

func TestHTTPHandler(t *testing.T) {
	tests := []struct {
		name       string
		status     Status
		wantCode   int
		wantStatus Status
	}{
		{"healthy", StatusHealthy, http.StatusOK, StatusHealthy},
		{"degraded", StatusDegraded, http.StatusOK, StatusDegraded},
		{"unhealthy", StatusUnhealthy, http.StatusServiceUnavailable, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(time.Second)
			c.Register("sources", fixed(tt.status))

			rec := httptest.NewRecorder()
			c.HTTPHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if resp.Status != tt.wantStatus || len(resp.Components) != 1 {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestLivenessHandler(t *testing.T) {
	c := NewChecker(time.Second)
	c.Register("sources", fixed(StatusUnhealthy))

	rec := httptest.NewRecorder()
	c.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("liveness code = %d, want 200", rec.Code)
	}
}
