package admin

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/tenant_console/internal/authz"
	"github.com/ncecere/tenant_console/internal/httpserver/httputil"
)

type auditRoutes struct {
	reader     AuditReader
	cookieName string
}

func registerAuditRoutes(router fiber.Router, deps Deps) {
	handler := &auditRoutes{reader: deps.Audit, cookieName: deps.CookieName}
	router.Get("/audit", handler.list)
}

func (h *auditRoutes) list(c *fiber.Ctx) error {
	if h.reader == nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, authz.MessageServerError)
	}
	token := httputil.ExtractToken(c, h.cookieName)
	page, err := h.reader.Recent(userContext(c), token)
	if err != nil {
		return httputil.WriteDenial(c, err)
	}
	return c.JSON(page)
}
