package user

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ncecere/tenant_console/internal/auth"
	"github.com/ncecere/tenant_console/internal/authz"
	"github.com/ncecere/tenant_console/internal/httpserver/httputil"
	"github.com/ncecere/tenant_console/internal/requestctx"
)

func sessionMiddleware(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Sessions == nil || deps.Users == nil {
			return httputil.WriteError(c, fiber.StatusInternalServerError, authz.MessageServerError)
		}
		token := httputil.ExtractToken(c, deps.CookieName)
		session, err := deps.Sessions.Resolve(userContext(c), deps.Users, token)
		if err != nil {
			if errors.Is(err, auth.ErrSessionLookup) {
				deps.Logger.Error("resolve session", zap.Error(err))
				return httputil.WriteError(c, fiber.StatusInternalServerError, authz.MessageServerError)
			}
			return httputil.WriteError(c, fiber.StatusUnauthorized, authz.MessageUnauthorized)
		}
		c.SetUserContext(requestctx.WithSession(userContext(c), session))
		return c.Next()
	}
}
