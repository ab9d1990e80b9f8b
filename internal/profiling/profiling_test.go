package profiling

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	m := New(Config{Enabled: true}, nil)

	if m.config.Interval != DefaultInterval {
		t.Errorf("Interval = %v, want %v", m.config.Interval, DefaultInterval)
	}
	if m.config.GoroutineThreshold != DefaultGoroutineThreshold {
		t.Errorf("GoroutineThreshold = %d, want %d", m.config.GoroutineThreshold, DefaultGoroutineThreshold)
	}
	if _, ok := m.Latest(); ok {
		t.Error("new monitor should have no sample")
	}
}

func TestSample(t *testing.T) {
	m := New(Config{}, nil)

	var got []Sample
	m.Subscribe(func(s Sample) { got = append(got, s) })

	first := m.Sample()
	if first.CPUPercent != 0 {
		t.Errorf("first sample CPU = %v, want 0", first.CPUPercent)
	}
	if first.Goroutines < 1 || first.MemoryMB <= 0 {
		t.Errorf("sample = %+v", first)
	}

	time.Sleep(10 * time.Millisecond)
	second := m.Sample()
	if second.CPUPercent < 0 || second.CPUPercent > 100 {
		t.Errorf("CPU = %v, want within [0, 100]", second.CPUPercent)
	}

	if len(got) != 2 {
		t.Errorf("subscriber saw %d samples, want 2", len(got))
	}
	latest, ok := m.Latest()
	if !ok || !latest.Time.Equal(second.Time) {
		t.Errorf("Latest() = %+v, %v", latest, ok)
	}
}

func TestSample_Summary(t *testing.T) {
	s := Sample{CPUPercent: 12.34, MemoryMB: 56.78, Goroutines: 9, NumGC: 3}
	want := "CPU: 12.3% | Memory: 56.8 MB | Goroutines: 9 | GC: 3"
	if got := s.Summary(); got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
}

func TestCPUPercent(t *testing.T) {
	tests := []struct {
		name string
		cpu  float64
		wall time.Duration
		cpus int
		want float64
	}{
		{"half of one core", 0.5, time.Second, 1, 50},
		{"one core of four", 1, time.Second, 4, 25},
		{"clamped", 10, time.Second, 1, 100},
		{"negative", -1, time.Second, 1, 0},
		{"no wall time", 1, 0, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cpuPercent(tt.cpu, tt.wall, tt.cpus); got != tt.want {
				t.Errorf("cpuPercent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStartStop(t *testing.T) {
	m := New(Config{
		Enabled:  true,
		Address:  "127.0.0.1:0",
		Interval: 20 * time.Millisecond,
	}, nil)

	var mu sync.Mutex
	samples := 0
	m.Subscribe(func(Sample) {
		mu.Lock()
		samples++
		mu.Unlock()
	})

	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get("http://" + m.Addr() + "/debug/stats")
	if err != nil {
		t.Fatalf("Failed to connect to profiling server: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Goroutines:") {
		t.Errorf("stats = %d %q", resp.StatusCode, body)
	}

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	mu.Lock()
	n := samples
	mu.Unlock()
	if n < 2 {
		t.Errorf("samples = %d, want periodic sampling", n)
	}

	if _, err := http.Get("http://" + m.Addr() + "/debug/stats"); err == nil {
		t.Error("profiling server still serving after Stop")
	}
}

func TestDisabled(t *testing.T) {
	m := New(Config{Address: "127.0.0.1:0"}, nil)
	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if m.Addr() != "" {
		t.Error("disabled monitor should not listen")
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestStopWithoutStart(t *testing.T) {
	m := New(Config{Enabled: true}, nil)
	if err := m.Stop(context.Background()); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
