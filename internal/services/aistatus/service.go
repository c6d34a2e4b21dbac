package aistatus

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ncecere/tenant_console/internal/auth"
	"github.com/ncecere/tenant_console/internal/cache"
	"github.com/ncecere/tenant_console/internal/health"
)

const (
	probeResultOK    = "ok"
	probeResultError = "error"
)

// Prober checks one AI provider.
type Prober interface {
	Name() string
	Model() string
	Probe(ctx context.Context) error
}

// MetricsRecorder counts probe outcomes.
type MetricsRecorder interface {
	RecordAIProbe(provider, result string, duration time.Duration)
}

// UsageReader returns a subject's counters for the current usage period.
type UsageReader interface {
	Current(ctx context.Context, subject uuid.UUID) (string, map[string]int64, error)
}

type ProviderStatus struct {
	Name       string     `json:"name"`
	Configured bool       `json:"configured"`
	Reachable  bool       `json:"reachable"`
	Model      string     `json:"model,omitempty"`
	LatencyMS  int64      `json:"latency_ms"`
	Error      string     `json:"error,omitempty"`
	CheckedAt  *time.Time `json:"checked_at,omitempty"`
}

type UsageStatus struct {
	Period string `json:"period"`
	Metric string `json:"metric"`
	Count  int64  `json:"count"`
}

// Snapshot is the AI status payload returned to callers.
type Snapshot struct {
	Available bool              `json:"available"`
	Provider  string            `json:"provider,omitempty"`
	Model     string            `json:"model,omitempty"`
	Providers []ProviderStatus  `json:"providers"`
	Usage     *UsageStatus      `json:"usage,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
}

type ServiceOptions struct {
	// Providers lists provider names in priority order.
	Providers   []string
	Probers     []Prober
	Cache       *cache.JSONCache
	Usage       UsageReader
	UsageMetric string
	Labels      map[string]string
	Timeout     time.Duration
	Metrics     MetricsRecorder
	Logger      *zap.Logger
}

// Service computes AI status snapshots from cached or live provider probes.
type Service struct {
	order       []string
	probers     map[string]Prober
	cache       *cache.JSONCache
	usage       UsageReader
	usageMetric string
	labels      map[string]string
	timeout     time.Duration
	metrics     MetricsRecorder
	logger      *zap.Logger
	now         func() time.Time
}

func NewService(opts ServiceOptions) *Service {
	probers := make(map[string]Prober, len(opts.Probers))
	for _, p := range opts.Probers {
		if p != nil {
			probers[p.Name()] = p
		}
	}
	order := make([]string, 0, len(opts.Providers))
	for _, name := range opts.Providers {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			order = append(order, name)
		}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		order:       order,
		probers:     probers,
		cache:       opts.Cache,
		usage:       opts.Usage,
		usageMetric: opts.UsageMetric,
		labels:      opts.Labels,
		timeout:     timeout,
		metrics:     opts.Metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// Snapshot reports provider availability and the caller's current AI usage.
func (s *Service) Snapshot(ctx context.Context, session auth.Session) (Snapshot, error) {
	snap := Snapshot{Providers: make([]ProviderStatus, 0, len(s.order)), Labels: s.labels}
	for _, name := range s.order {
		prober, ok := s.probers[name]
		if !ok {
			snap.Providers = append(snap.Providers, ProviderStatus{Name: name})
			continue
		}
		status := s.providerStatus(ctx, prober)
		snap.Providers = append(snap.Providers, status)
		if !snap.Available && status.Reachable {
			snap.Available = true
			snap.Provider = status.Name
			snap.Model = status.Model
		}
	}
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	if s.usage != nil && s.usageMetric != "" {
		period, counters, err := s.usage.Current(ctx, session.UserID)
		if err != nil {
			s.logger.Warn("load ai usage", zap.String("user_id", session.UserID.String()), zap.Error(err))
		} else {
			snap.Usage = &UsageStatus{Period: period, Metric: s.usageMetric, Count: counters[s.usageMetric]}
		}
	}
	return snap, nil
}

func (s *Service) providerStatus(ctx context.Context, prober Prober) ProviderStatus {
	var cached ProviderStatus
	hit, err := s.cache.Get(ctx, prober.Name(), &cached)
	if err != nil {
		s.logger.Warn("read ai status cache", zap.String("provider", prober.Name()), zap.Error(err))
	}
	if hit {
		return cached
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	started := time.Now()
	err = prober.Probe(probeCtx)
	return s.store(ctx, prober, err, time.Since(started))
}

// Checks exposes every configured prober to the background monitor.
func (s *Service) Checks() []health.Check {
	checks := make([]health.Check, 0, len(s.probers))
	for _, name := range s.order {
		if p, ok := s.probers[name]; ok {
			checks = append(checks, health.Check{Name: name, Run: p.Probe})
		}
	}
	return checks
}

// Report records a monitor probe outcome.
func (s *Service) Report(ctx context.Context, name string, err error, latency time.Duration) {
	prober, ok := s.probers[name]
	if !ok {
		return
	}
	s.store(ctx, prober, err, latency)
}

func (s *Service) store(ctx context.Context, prober Prober, probeErr error, latency time.Duration) ProviderStatus {
	checkedAt := s.now().UTC()
	status := ProviderStatus{
		Name:       prober.Name(),
		Configured: true,
		Reachable:  probeErr == nil,
		Model:      prober.Model(),
		LatencyMS:  latency.Milliseconds(),
		CheckedAt:  &checkedAt,
	}
	result := probeResultOK
	if probeErr != nil {
		result = probeResultError
		status.Error = probeErr.Error()
		s.logger.Warn("ai provider probe failed", zap.String("provider", status.Name), zap.Error(probeErr))
	}
	if s.metrics != nil {
		s.metrics.RecordAIProbe(status.Name, result, latency)
	}
	if err := s.cache.Set(ctx, status.Name, status); err != nil {
		s.logger.Warn("write ai status cache", zap.String("provider", status.Name), zap.Error(err))
	}
	return status
}
