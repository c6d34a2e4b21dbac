package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ncecere/tenant_console/internal/adapters/anthropic"
	"github.com/ncecere/tenant_console/internal/adapters/bedrock"
	"github.com/ncecere/tenant_console/internal/adapters/openai"
	"github.com/ncecere/tenant_console/internal/auth"
	"github.com/ncecere/tenant_console/internal/authz"
	"github.com/ncecere/tenant_console/internal/cache"
	"github.com/ncecere/tenant_console/internal/config"
	"github.com/ncecere/tenant_console/internal/health"
	"github.com/ncecere/tenant_console/internal/limits"
	"github.com/ncecere/tenant_console/internal/logging"
	"github.com/ncecere/tenant_console/internal/observability"
	"github.com/ncecere/tenant_console/internal/redisclient"
	"github.com/ncecere/tenant_console/internal/services/aistatus"
	"github.com/ncecere/tenant_console/internal/services/audit"
	"github.com/ncecere/tenant_console/internal/services/usage"
	"github.com/ncecere/tenant_console/internal/store"
)

const (
	aiStatusCachePrefix = "ai:status:"
	loginLimiterPrefix  = "login"
)

// Container aggregates runtime dependencies for handlers and services. The
// store clients are unexported: the service-role client only reaches the
// admin guard, the audit recorder and the identity service.
type Container struct {
	Config            *config.Config
	Logger            *zap.Logger
	Redis             *redis.Client
	Tokens            *auth.TokenManager
	Auth              *auth.Service
	Sessions          *auth.Sessions
	AdminGuard        *authz.AdminGuard
	AuditRecorder     *audit.Recorder
	AuditReader       *audit.Reader
	Usage             *usage.Meter
	AIStatus          *aistatus.Service
	AIReporter        *aistatus.Reporter
	HealthMon         *health.Monitor
	LoginLimiter      *limits.RateLimiter
	Observability     *observability.Provider
	ReportingLocation *time.Location

	service *store.ServiceClient
	users   *store.UserClient
}

// NewContainer builds the dependency graph. Missing store credentials are
// not fatal: the affected endpoints answer with a 500 instead.
func NewContainer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	logger = logging.OrNop(logger)

	tokens, err := auth.NewTokenManager(cfg.Session.JWTSecret, cfg.Session.AccessTokenTTL, cfg.Session.RefreshTokenTTL, cfg.Session.Issuer)
	if err != nil {
		return nil, fmt.Errorf("init token manager: %w", err)
	}

	service, err := store.NewServiceRoleClient(cfg.Store)
	if err != nil {
		if !errors.Is(err, store.ErrNotConfigured) {
			return nil, fmt.Errorf("init service-role store: %w", err)
		}
		logger.Warn("service-role store disabled", zap.Error(err))
	}
	users, err := store.NewUserScopedClient(cfg.Store)
	if err != nil {
		if !errors.Is(err, store.ErrNotConfigured) {
			service.Close()
			return nil, fmt.Errorf("init user-scoped store: %w", err)
		}
		logger.Warn("user-scoped store disabled", zap.Error(err))
	}

	redisClient, err := redisclient.New(cfg.Redis)
	if err != nil {
		service.Close()
		users.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	obsProvider, err := observability.Setup(ctx, cfg.Observability)
	if err != nil {
		service.Close()
		users.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("setup observability: %w", err)
	}

	reportingLoc := cfg.Reporting.Location()

	c := &Container{
		Config:            cfg,
		Logger:            logger,
		Redis:             redisClient,
		Tokens:            tokens,
		Sessions:          auth.NewSessions(tokens),
		Observability:     obsProvider,
		ReportingLocation: reportingLoc,
		service:           service,
		users:             users,
	}

	// Interfaces are only assigned from non-nil clients so a disabled store
	// surfaces as a nil dependency rather than a typed nil.
	var (
		adminStore    authz.AdminStore
		identityStore auth.IdentityStore
		auditRecorder auth.AuditRecorder
	)
	if service != nil {
		adminStore = service
		identityStore = service
		c.AuditRecorder = audit.NewRecorder(service)
		auditRecorder = c.AuditRecorder
	}

	var oidcExchanger auth.OIDCExchanger
	if cfg.Auth.OIDC.Enabled {
		provider, err := auth.NewOIDCProvider(ctx, cfg.Auth.OIDC)
		if err != nil {
			c.Close(ctx)
			return nil, fmt.Errorf("init oidc provider: %w", err)
		}
		oidcExchanger = provider
	}

	c.Auth, err = auth.NewService(auth.ServiceOptions{
		Config: cfg.Auth,
		Store:  identityStore,
		Tokens: tokens,
		OIDC:   oidcExchanger,
		Audit:  auditRecorder,
		Logger: logger.Named("auth"),
	})
	if err != nil {
		c.Close(ctx)
		return nil, fmt.Errorf("init auth service: %w", err)
	}

	c.AdminGuard = authz.NewAdminGuard(tokens, adminStore, logger.Named("authz"))
	c.AuditReader = audit.NewReader(audit.ReaderOptions{
		Guard:              c.AdminGuard,
		SwallowStoreErrors: cfg.Audit.SwallowStoreErrors,
		Limit:              cfg.Audit.Limit,
		Metrics:            obsProvider,
		Logger:             logger.Named("audit"),
	})

	c.Usage = usage.NewMeter(redisClient, cfg.Usage, reportingLoc, obsProvider)
	c.LoginLimiter = limits.NewRateLimiter(redisClient, loginLimiterPrefix)

	c.AIStatus = aistatus.NewService(aistatus.ServiceOptions{
		Providers:   cfg.AI.Providers,
		Probers:     buildProbers(ctx, cfg.AI, logger),
		Cache:       cache.NewJSONCache(redisClient, aiStatusCachePrefix, cfg.AI.ProbeTTL),
		Usage:       c.Usage,
		UsageMetric: cfg.AI.UsageMetric,
		Labels:      cfg.AI.Labels,
		Timeout:     cfg.AI.ProbeTimeout,
		Metrics:     obsProvider,
		Logger:      logger.Named("aistatus"),
	})
	var selfLoader auth.SelfLoader
	if users != nil {
		selfLoader = users
	}
	c.AIReporter = aistatus.NewReporter(selfLoader, c.Sessions, c.AIStatus, logger.Named("aistatus"))
	c.HealthMon = health.NewMonitor(cfg.AI)

	return c, nil
}

// buildProbers constructs a prober for every configured provider. Providers
// whose credentials are missing are skipped with a warning and reported as
// unconfigured in the status payload.
func buildProbers(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) []aistatus.Prober {
	probers := make([]aistatus.Prober, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		name = strings.ToLower(strings.TrimSpace(name))
		var (
			prober aistatus.Prober
			err    error
		)
		switch name {
		case openai.Name:
			var p *openai.Prober
			if p, err = openai.New(cfg.OpenAI); err == nil {
				prober = p
			}
		case anthropic.Name:
			var p *anthropic.Prober
			if p, err = anthropic.New(cfg.Anthropic, nil); err == nil {
				prober = p
			}
		case bedrock.Name:
			var p *bedrock.Prober
			if p, err = bedrock.New(ctx, cfg.Bedrock); err == nil {
				prober = p
			}
		default:
			err = fmt.Errorf("unsupported provider %q", name)
		}
		if err != nil {
			logger.Warn("ai provider disabled", zap.String("provider", name), zap.Error(err))
			continue
		}
		probers = append(probers, prober)
	}
	return probers
}

// UserStore returns the user-scoped store, or nil when it is not configured.
func (c *Container) UserStore() auth.SelfLoader {
	if c == nil || c.users == nil {
		return nil
	}
	return c.users
}

// StartMonitors launches the background AI probe loop.
func (c *Container) StartMonitors(ctx context.Context) {
	if c == nil || c.HealthMon == nil || c.AIStatus == nil {
		return
	}
	c.HealthMon.Start(ctx, c.AIStatus.Checks(), c.AIStatus.Report)
}

// HealthChecks lists the dependency checks served by /healthz.
func (c *Container) HealthChecks() []health.Check {
	if c == nil {
		return nil
	}
	checks := make([]health.Check, 0, 3)
	if c.service != nil {
		checks = append(checks, health.Check{Name: "postgres", Run: c.service.Ping})
	}
	if c.users != nil {
		checks = append(checks, health.Check{Name: "postgres_user", Run: c.users.Ping})
	}
	if c.Redis != nil {
		checks = append(checks, health.Check{Name: "redis", Run: func(ctx context.Context) error {
			return redisclient.Ping(ctx, c.Redis, c.Config.Redis.PingTimeout)
		}})
	}
	return checks
}

// Close releases pooled connections and flushes telemetry.
func (c *Container) Close(ctx context.Context) {
	if c == nil {
		return
	}
	c.service.Close()
	c.users.Close()
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("close redis", zap.Error(err))
		}
	}
	if err := c.Observability.Shutdown(ctx); err != nil {
		c.Logger.Warn("shutdown observability", zap.Error(err))
	}
}
