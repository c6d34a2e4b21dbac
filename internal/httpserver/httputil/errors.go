package httputil

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/tenant_console/internal/authz"
)

// WriteError standardizes JSON error responses for every API group.
func WriteError(c *fiber.Ctx, status int, msg string) error {
	if msg == "" {
		msg = http.StatusText(status)
		if msg == "" {
			msg = "unknown error"
		}
	}
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
	})
}

// WriteDenial writes err verbatim when it is an authz.Denial and a generic
// 500 otherwise.
func WriteDenial(c *fiber.Ctx, err error) error {
	if denial, ok := authz.AsDenial(err); ok {
		return WriteError(c, denial.Status, denial.Message)
	}
	return WriteError(c, fiber.StatusInternalServerError, authz.MessageServerError)
}
