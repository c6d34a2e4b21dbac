package admin

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/tenant_console/internal/services/audit"
)

// AuditReader serves the admin audit log behind the admin guard.
type AuditReader interface {
	Recent(ctx context.Context, token string) (audit.Page, error)
}

type Deps struct {
	Audit      AuditReader
	CookieName string
}

// Register wires up the /api/admin routes. Every handler authorizes through
// the admin guard before touching the privileged store.
func Register(router fiber.Router, deps Deps) {
	group := router.Group("/admin")
	registerAuditRoutes(group, deps)
}

func userContext(c *fiber.Ctx) context.Context {
	if uc := c.UserContext(); uc != nil {
		return uc
	}
	return context.Background()
}
