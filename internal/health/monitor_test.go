package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ncecere/tenant_console/internal/config"
)

func TestNewMonitorDefaults(t *testing.T) {
	m := NewMonitor(config.AIConfig{})
	if m.interval != time.Minute || m.timeout != 5*time.Second {
		t.Fatalf("unexpected defaults: interval=%v timeout=%v", m.interval, m.timeout)
	}
	m = NewMonitor(config.AIConfig{CheckInterval: time.Second, ProbeTimeout: 2 * time.Second})
	if m.timeout != 5*time.Second {
		t.Fatalf("timeout longer than interval should fall back, got %v", m.timeout)
	}
}

func TestMonitorReportsEveryCheck(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	results := map[string]error{}
	done := make(chan struct{})

	m := NewMonitor(config.AIConfig{CheckInterval: time.Hour, ProbeTimeout: time.Second})
	failure := errors.New("unreachable")
	m.Start(ctx, []Check{
		{Name: "ok", Run: func(context.Context) error { return nil }},
		{Name: "bad", Run: func(context.Context) error { return failure }},
		{Name: "skipped"},
	}, func(_ context.Context, name string, err error, _ time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		results[name] = err
		if len(results) == 2 {
			close(done)
		}
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("initial sweep did not report")
	}

	mu.Lock()
	defer mu.Unlock()
	if results["ok"] != nil {
		t.Fatalf("expected ok check to pass, got %v", results["ok"])
	}
	if !errors.Is(results["bad"], failure) {
		t.Fatalf("expected failure, got %v", results["bad"])
	}
	if _, ran := results["skipped"]; ran {
		t.Fatal("check without Run should be skipped")
	}
}

func TestMonitorAppliesTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan error, 1)
	m := NewMonitor(config.AIConfig{CheckInterval: time.Hour, ProbeTimeout: 20 * time.Millisecond})
	m.Start(ctx, []Check{{Name: "slow", Run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}}, func(_ context.Context, _ string, err error, _ time.Duration) {
		got <- err
	})

	select {
	case err := <-got:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("slow check was not cut off")
	}
}
