package public

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ncecere/tenant_console/internal/auth"
	"github.com/ncecere/tenant_console/internal/store"
)

// Authenticator is the identity service surface used by the login routes.
type Authenticator interface {
	AllowedAuthMethods() []string
	AuthenticateLocal(ctx context.Context, email, password string) (*auth.TokenPair, store.User, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, store.User, error)
	StartOIDCAuth(state, nonce string) (string, error)
	CompleteOIDCAuth(ctx context.Context, code, expectedNonce string) (*auth.TokenPair, store.User, error)
}

// LoginLimiter counts login attempts per client.
type LoginLimiter interface {
	AllowPerMinute(ctx context.Context, key string, limit int) error
}

type Deps struct {
	Auth Authenticator

	// Redis holds OIDC state between start and callback.
	Redis       *redis.Client
	Limiter     LoginLimiter
	LoginLimit  int
	CookieName  string
	LocalLogin  bool
	OIDCEnabled bool
	Logger      *zap.Logger
}

// Register wires the unauthenticated login routes under /auth.
func Register(router fiber.Router, deps Deps) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	handler := &authHandler{
		auth:        deps.Auth,
		redis:       deps.Redis,
		limiter:     deps.Limiter,
		loginLimit:  deps.LoginLimit,
		cookies:     newSessionCookies(deps.CookieName),
		localLogin:  deps.LocalLogin,
		oidcEnabled: deps.OIDCEnabled,
		logger:      deps.Logger,
	}

	group := router.Group("/auth")
	group.Get("/methods", handler.listMethods)
	group.Post("/login", handler.loginLocal)
	group.Post("/refresh", handler.refresh)
	group.Post("/logout", handler.logout)
	group.Get("/oidc/start", handler.oidcStart)
	group.Get("/oidc/callback", handler.oidcCallback)
}

func userContext(c *fiber.Ctx) context.Context {
	if uc := c.UserContext(); uc != nil {
		return uc
	}
	return context.Background()
}
