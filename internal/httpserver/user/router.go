package user

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ncecere/tenant_console/internal/auth"
	"github.com/ncecere/tenant_console/internal/services/aistatus"
	"github.com/ncecere/tenant_console/internal/services/usage"
)

// StatusReporter produces the AI status payload for a session token.
type StatusReporter interface {
	Report(ctx context.Context, token string) (aistatus.Snapshot, error)
}

// SessionResolver turns a session token into a caller.
type SessionResolver interface {
	Resolve(ctx context.Context, users auth.SelfLoader, token string) (auth.Session, error)
}

// UsageMeter reads and records per-user consumption.
type UsageMeter interface {
	Record(ctx context.Context, subject uuid.UUID, metric string, amount int64, at time.Time) error
	Summarize(ctx context.Context, subject uuid.UUID, period string) (usage.Summary, error)
}

type Deps struct {
	Status   StatusReporter
	Sessions SessionResolver

	// Users is the user-scoped store; nil when the store is not configured.
	Users      auth.SelfLoader
	Usage      UsageMeter
	CookieName string
	Logger     *zap.Logger
}

// Register wires the session-authenticated routes.
func Register(router fiber.Router, deps Deps) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	status := &statusHandler{reporter: deps.Status, cookieName: deps.CookieName}
	router.Get("/ai/status", status.get)

	usageHandler := &usageHandler{meter: deps.Usage, logger: deps.Logger}
	group := router.Group("/usage", sessionMiddleware(deps))
	group.Get("/", usageHandler.summary)
	group.Post("/events", usageHandler.record)
}

func userContext(c *fiber.Ctx) context.Context {
	if uc := c.UserContext(); uc != nil {
		return uc
	}
	return context.Background()
}
