package httputil

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const bearerPrefix = "bearer "

// ExtractToken returns the bearer token from the Authorization header,
// falling back to the named session cookie.
func ExtractToken(c *fiber.Ctx, cookieName string) string {
	if token := extractBearer(c); token != "" {
		return token
	}
	if cookieName == "" {
		return ""
	}
	return strings.TrimSpace(c.Cookies(cookieName))
}

func extractBearer(c *fiber.Ctx) string {
	raw := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(raw), bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(raw[len(bearerPrefix):])
}
