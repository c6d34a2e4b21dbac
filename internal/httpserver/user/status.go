package user

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/tenant_console/internal/authz"
	"github.com/ncecere/tenant_console/internal/httpserver/httputil"
)

type statusHandler struct {
	reporter   StatusReporter
	cookieName string
}

func (h *statusHandler) get(c *fiber.Ctx) error {
	if h.reporter == nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, authz.MessageServerError)
	}
	snapshot, err := h.reporter.Report(userContext(c), httputil.ExtractToken(c, h.cookieName))
	if err != nil {
		return httputil.WriteDenial(c, err)
	}
	return c.JSON(snapshot)
}
