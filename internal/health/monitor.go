package health

import (
	"context"
	"sync"
	"time"

	"github.com/ncecere/tenant_console/internal/config"
)

// Check is a named probe run by the monitor.
type Check struct {
	Name string
	Run  func(ctx context.Context) error
}

// ReportFunc receives the outcome of each check.
type ReportFunc func(ctx context.Context, name string, err error, latency time.Duration)

// Monitor periodically runs checks and reports their outcomes.
type Monitor struct {
	interval  time.Duration
	timeout   time.Duration
	checks    []Check
	report    ReportFunc
	startOnce sync.Once
}

// NewMonitor constructs a monitor using the AI probe configuration.
func NewMonitor(cfg config.AIConfig) *Monitor {
	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = time.Minute
	}
	timeout := cfg.ProbeTimeout
	if timeout <= 0 || timeout > interval {
		timeout = 5 * time.Second
	}

	return &Monitor{
		interval: interval,
		timeout:  timeout,
	}
}

// Start begins the monitoring loop until ctx is canceled.
func (m *Monitor) Start(ctx context.Context, checks []Check, report ReportFunc) {
	if len(checks) == 0 || report == nil {
		return
	}

	m.startOnce.Do(func() {
		m.checks = checks
		m.report = report
		go m.run(ctx)
	})
}

func (m *Monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// Initial sweep
	m.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Monitor) sweep(ctx context.Context) {
	var wg sync.WaitGroup
	for _, check := range m.checks {
		if check.Run == nil {
			continue
		}
		wg.Add(1)
		go func(check Check) {
			defer wg.Done()
			timeoutCtx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()

			started := time.Now()
			err := check.Run(timeoutCtx)
			m.report(ctx, check.Name, err, time.Since(started))
		}(check)
	}
	wg.Wait()
}
