package public

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ncecere/tenant_console/internal/auth"
	"github.com/ncecere/tenant_console/internal/authz"
	"github.com/ncecere/tenant_console/internal/httpserver/httputil"
	"github.com/ncecere/tenant_console/internal/limits"
	"github.com/ncecere/tenant_console/internal/store"
)

type authHandler struct {
	auth        Authenticator
	redis       *redis.Client
	limiter     LoginLimiter
	loginLimit  int
	cookies     sessionCookies
	localLogin  bool
	oidcEnabled bool
	logger      *zap.Logger
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken      string       `json:"access_token"`
	AccessExpiresAt  time.Time    `json:"access_expires_at"`
	RefreshToken     string       `json:"refresh_token"`
	RefreshExpiresAt time.Time    `json:"refresh_expires_at"`
	Method           string       `json:"method"`
	User             userResponse `json:"user"`
}

type userResponse struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Role         string     `json:"role"`
	IsSuperAdmin bool       `json:"is_super_admin"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (h *authHandler) listMethods(c *fiber.Ctx) error {
	methods := []string{}
	if h.auth != nil {
		methods = h.auth.AllowedAuthMethods()
	}
	return c.JSON(fiber.Map{"methods": methods})
}

func (h *authHandler) loginLocal(c *fiber.Ctx) error {
	if !h.localLogin {
		return httputil.WriteError(c, fiber.StatusNotFound, "local authentication disabled")
	}
	if h.auth == nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, authz.MessageServerError)
	}

	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "email and password required")
	}

	ctx := userContext(c)
	if h.limiter != nil {
		if err := h.limiter.AllowPerMinute(ctx, c.IP(), h.loginLimit); err != nil {
			if errors.Is(err, limits.ErrLimitExceeded) {
				return httputil.WriteError(c, fiber.StatusTooManyRequests, "too many login attempts")
			}
			h.logger.Warn("login limiter unavailable", zap.Error(err))
		}
	}

	pair, user, err := h.auth.AuthenticateLocal(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			return httputil.WriteError(c, fiber.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, auth.ErrLocalDisabled):
			return httputil.WriteError(c, fiber.StatusNotFound, "local authentication disabled")
		}
		h.logger.Error("local login failed", zap.Error(err))
		return httputil.WriteError(c, fiber.StatusInternalServerError, authz.MessageServerError)
	}

	h.cookies.set(c, pair)
	return c.JSON(buildTokenResponse(pair, user, auth.ProviderLocal))
}

func (h *authHandler) refresh(c *fiber.Ctx) error {
	if h.auth == nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, authz.MessageServerError)
	}

	var req refreshRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}
	token := strings.TrimSpace(req.RefreshToken)
	if token == "" {
		token = h.cookies.refreshToken(c)
	}
	if token == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "refresh token required")
	}

	pair, user, err := h.auth.Refresh(userContext(c), token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return httputil.WriteError(c, fiber.StatusUnauthorized, "invalid refresh token")
		}
		h.logger.Error("token refresh failed", zap.Error(err))
		return httputil.WriteError(c, fiber.StatusInternalServerError, authz.MessageServerError)
	}

	h.cookies.set(c, pair)
	return c.JSON(buildTokenResponse(pair, user, "refresh"))
}

func (h *authHandler) logout(c *fiber.Ctx) error {
	h.cookies.clear(c)
	return c.SendStatus(fiber.StatusNoContent)
}

func buildTokenResponse(pair *auth.TokenPair, user store.User, method string) tokenResponse {
	return tokenResponse{
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		Method:           method,
		User: userResponse{
			ID:           user.ID.String(),
			Email:        user.Email,
			Name:         user.Name,
			Role:         string(user.Role),
			IsSuperAdmin: user.IsSuperAdmin,
			LastLoginAt:  user.LastLoginAt,
			CreatedAt:    user.CreatedAt,
		},
	}
}
