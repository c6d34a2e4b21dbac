package usage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/ncecere/tenant_console/internal/config"
	"github.com/ncecere/tenant_console/internal/timeutil"
)

// CostMetric holds spend in millionths of a US dollar.
const CostMetric = "cost_micros"

const defaultRetention = 400 * 24 * time.Hour

// MaxEventAmount bounds a single recorded amount.
const MaxEventAmount int64 = 1 << 40

var (
	ErrInvalidMetric = errors.New("metric must match [a-z0-9_.]{1,64}")
	ErrInvalidAmount = errors.New("amount must be between 1 and 1099511627776")
	ErrOverflow      = errors.New("usage counter would overflow")
	ErrUnavailable   = errors.New("usage meter not initialized")
)

var metricPattern = regexp.MustCompile(`^[a-z0-9_.]{1,64}$`)

// MetricsRecorder mirrors recorded usage into process metrics.
type MetricsRecorder interface {
	RecordUsage(metric string, amount int64)
}

// Meter keeps per-subject monthly counters in Redis hashes keyed by the
// usage period key.
type Meter struct {
	client    *redis.Client
	retention time.Duration
	loc       *time.Location
	metrics   MetricsRecorder
	now       func() time.Time
}

func NewMeter(client *redis.Client, cfg config.UsageConfig, loc *time.Location, metrics MetricsRecorder) *Meter {
	retention := cfg.Retention
	if retention <= 0 {
		retention = defaultRetention
	}
	return &Meter{
		client:    client,
		retention: retention,
		loc:       timeutil.EnsureLocation(loc),
		metrics:   metrics,
		now:       time.Now,
	}
}

// Summary is the usage of one subject in one period.
type Summary struct {
	Period   string           `json:"period"`
	Start    string           `json:"start"`
	End      string           `json:"end"`
	Timezone string           `json:"timezone"`
	Counters map[string]int64 `json:"counters"`
	Metrics  []string         `json:"metrics"`
	CostUSD  decimal.Decimal  `json:"cost_usd"`
}

func periodKey(subject uuid.UUID, period string) string {
	return fmt.Sprintf("usage:%s:%s", subject, period)
}

// Record adds amount to metric in the period containing at.
func (m *Meter) Record(ctx context.Context, subject uuid.UUID, metric string, amount int64, at time.Time) error {
	if m == nil || m.client == nil {
		return ErrUnavailable
	}
	if !metricPattern.MatchString(metric) {
		return ErrInvalidMetric
	}
	if amount <= 0 || amount > MaxEventAmount {
		return ErrInvalidAmount
	}
	if at.IsZero() {
		at = m.now()
	}

	key := periodKey(subject, timeutil.UsagePeriodKeyIn(at, m.loc))
	pipe := m.client.TxPipeline()
	pipe.HIncrBy(ctx, key, metric, amount)
	pipe.Expire(ctx, key, m.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		if isOverflow(err) {
			return ErrOverflow
		}
		return fmt.Errorf("record usage: %w", err)
	}
	if m.metrics != nil {
		m.metrics.RecordUsage(metric, amount)
	}
	return nil
}

// isOverflow matches the Redis reply to an INCRBY family command that would
// leave the int64 range.
func isOverflow(err error) bool {
	var redisErr redis.Error
	if !errors.As(err, &redisErr) {
		return false
	}
	return strings.Contains(redisErr.Error(), "would overflow")
}

// Period returns every counter recorded for subject in period.
func (m *Meter) Period(ctx context.Context, subject uuid.UUID, period string) (map[string]int64, error) {
	if m == nil || m.client == nil {
		return nil, ErrUnavailable
	}
	period = strings.TrimSpace(period)
	if _, _, err := timeutil.UsagePeriodBounds(period, m.loc); err != nil {
		return nil, err
	}
	raw, err := m.client.HGetAll(ctx, periodKey(subject, period)).Result()
	if err != nil {
		return nil, fmt.Errorf("load usage: %w", err)
	}
	counters := make(map[string]int64, len(raw))
	for field, value := range raw {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("usage counter %s: %w", field, err)
		}
		counters[field] = n
	}
	return counters, nil
}

// Current returns the current period key and its counters.
func (m *Meter) Current(ctx context.Context, subject uuid.UUID) (string, map[string]int64, error) {
	if m == nil {
		return "", nil, ErrUnavailable
	}
	period := timeutil.UsagePeriodKeyIn(m.now(), m.loc)
	counters, err := m.Period(ctx, subject, period)
	return period, counters, err
}

// Summarize builds the usage summary for period; an empty period means the
// current one.
func (m *Meter) Summarize(ctx context.Context, subject uuid.UUID, period string) (Summary, error) {
	if m == nil {
		return Summary{}, ErrUnavailable
	}
	if period == "" {
		period = timeutil.UsagePeriodKeyIn(m.now(), m.loc)
	}
	window, err := timeutil.NewMonthWindow(period, m.loc)
	if err != nil {
		return Summary{}, err
	}
	counters, err := m.Period(ctx, subject, period)
	if err != nil {
		return Summary{}, err
	}

	metrics := make([]string, 0, len(counters))
	for name := range counters {
		metrics = append(metrics, name)
	}
	sort.Strings(metrics)

	return Summary{
		Period:   window.Period(),
		Start:    window.StartString(),
		End:      window.EndString(),
		Timezone: window.Timezone(),
		Counters: counters,
		Metrics:  metrics,
		CostUSD:  decimal.New(counters[CostMetric], -6),
	}, nil
}
