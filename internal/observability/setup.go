package observability

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	promreg "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/ncecere/tenant_console/internal/config"
)

const metricsNamespace = "tenant_console"

type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *metric.MeterProvider
	promExporter   *prometheus.Exporter
	promHandler    http.Handler
	shutdownFuncs  []func(context.Context) error

	httpRequestCounter *promreg.CounterVec
	httpRequestLatency *promreg.HistogramVec
	auditReadFailures  promreg.Counter
	aiProbeCounter     *promreg.CounterVec
	aiProbeLatency     *promreg.HistogramVec
	usageEventsCounter *promreg.CounterVec
}

func Setup(ctx context.Context, cfg config.ObservabilityConfig) (*Provider, error) {
	if !cfg.EnableOTLP && !cfg.EnableMetrics {
		return nil, nil
	}

	provider := &Provider{}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("tenant-console"),
		),
	)
	if err != nil {
		return nil, err
	}

	if cfg.EnableOTLP {
		rawEndpoint := strings.TrimSpace(cfg.OTLPEndpoint)
		endpoint := rawEndpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		opts := []otlptracegrpc.Option{}
		switch {
		case strings.HasPrefix(endpoint, "http://"):
			endpoint = strings.TrimPrefix(endpoint, "http://")
			opts = append(opts, otlptracegrpc.WithInsecure())
		case strings.HasPrefix(endpoint, "https://"):
			endpoint = strings.TrimPrefix(endpoint, "https://")
		default:
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		opts = append(opts, otlptracegrpc.WithEndpoint(endpoint))

		client := otlptracegrpc.NewClient(opts...)
		exporter, err := otlptrace.New(ctx, client)
		if err != nil {
			return nil, err
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		provider.tracerProvider = tp
		provider.shutdownFuncs = append(provider.shutdownFuncs, tp.Shutdown)
	}

	if cfg.EnableMetrics {
		registry := promreg.NewRegistry()
		promExporter, err := prometheus.New(prometheus.WithRegisterer(registry))
		if err != nil {
			return nil, err
		}
		mp := metric.NewMeterProvider(
			metric.WithReader(promExporter),
			metric.WithResource(res),
		)
		otel.SetMeterProvider(mp)
		provider.meterProvider = mp
		provider.promExporter = promExporter
		provider.promHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
		provider.shutdownFuncs = append(provider.shutdownFuncs, mp.Shutdown)

		httpRequests := promreg.NewCounterVec(
			promreg.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed.",
			},
			[]string{"method", "route", "status"},
		)
		latencyBuckets := []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10}
		httpLatency := promreg.NewHistogramVec(
			promreg.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds.",
				Buckets:   latencyBuckets,
			},
			[]string{"method", "route", "status"},
		)
		auditFailures := promreg.NewCounter(
			promreg.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "audit_read_failures_total",
				Help:      "Audit log reads that failed at the store and were answered with an empty page.",
			},
		)
		aiProbes := promreg.NewCounterVec(
			promreg.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "ai_probe_total",
				Help:      "AI provider reachability probes by result.",
			},
			[]string{"provider", "result"},
		)
		aiProbeLatency := promreg.NewHistogramVec(
			promreg.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "ai_probe_duration_seconds",
				Help:      "Duration of AI provider reachability probes.",
				Buckets:   latencyBuckets,
			},
			[]string{"provider"},
		)
		usageEvents := promreg.NewCounterVec(
			promreg.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "usage_events_total",
				Help:      "Usage units recorded by metric.",
			},
			[]string{"metric"},
		)
		for _, c := range []promreg.Collector{httpRequests, httpLatency, auditFailures, aiProbes, aiProbeLatency, usageEvents} {
			if err := registry.Register(c); err != nil {
				return nil, err
			}
		}
		provider.httpRequestCounter = httpRequests
		provider.httpRequestLatency = httpLatency
		provider.auditReadFailures = auditFailures
		provider.aiProbeCounter = aiProbes
		provider.aiProbeLatency = aiProbeLatency
		provider.usageEventsCounter = usageEvents
	}

	return provider, nil
}

func (p *Provider) PrometheusHandler() http.Handler {
	if p == nil || p.promHandler == nil {
		return nil
	}
	return p.promHandler
}

func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	for _, fn := range p.shutdownFuncs {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) TracerProvider() *sdktrace.TracerProvider {
	if p == nil {
		return nil
	}
	return p.tracerProvider
}

func (p *Provider) RecordHTTPRequest(_ context.Context, method, route string, status int, duration time.Duration) {
	if p == nil {
		return
	}

	statusLabel := strconv.Itoa(status)

	if p.httpRequestCounter != nil {
		p.httpRequestCounter.WithLabelValues(method, route, statusLabel).Inc()
	}

	if p.httpRequestLatency != nil {
		p.httpRequestLatency.WithLabelValues(method, route, statusLabel).Observe(duration.Seconds())
	}
}

// RecordAuditReadFailure counts an audit read whose store error was swallowed.
func (p *Provider) RecordAuditReadFailure() {
	if p == nil || p.auditReadFailures == nil {
		return
	}
	p.auditReadFailures.Inc()
}

func (p *Provider) RecordAIProbe(provider, result string, duration time.Duration) {
	if p == nil || p.aiProbeCounter == nil {
		return
	}
	p.aiProbeCounter.WithLabelValues(provider, result).Inc()
	if p.aiProbeLatency != nil {
		p.aiProbeLatency.WithLabelValues(provider).Observe(duration.Seconds())
	}
}

func (p *Provider) RecordUsage(metric string, amount int64) {
	if p == nil || p.usageEventsCounter == nil || amount <= 0 {
		return
	}
	p.usageEventsCounter.WithLabelValues(metric).Add(float64(amount))
}
