package public

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/tenant_console/internal/auth"
)

const refreshCookieSuffix = "_refresh"

// sessionCookies sets the access cookie read by the authenticated routes and
// a separate refresh cookie read only by /auth/refresh.
type sessionCookies struct {
	access  string
	refresh string
}

func newSessionCookies(name string) sessionCookies {
	name = strings.TrimSpace(name)
	if name == "" {
		return sessionCookies{}
	}
	return sessionCookies{access: name, refresh: name + refreshCookieSuffix}
}

func (s sessionCookies) set(c *fiber.Ctx, pair *auth.TokenPair) {
	if s.access == "" || pair == nil {
		return
	}
	c.Cookie(s.cookie(c, s.access, pair.AccessToken, pair.AccessExpiresAt))
	c.Cookie(s.cookie(c, s.refresh, pair.RefreshToken, pair.RefreshExpiresAt))
}

func (s sessionCookies) clear(c *fiber.Ctx) {
	if s.access == "" {
		return
	}
	c.Cookie(s.cookie(c, s.access, "", time.Unix(0, 0)))
	c.Cookie(s.cookie(c, s.refresh, "", time.Unix(0, 0)))
}

func (s sessionCookies) refreshToken(c *fiber.Ctx) string {
	if s.refresh == "" {
		return ""
	}
	return strings.TrimSpace(c.Cookies(s.refresh))
}

func (s sessionCookies) cookie(c *fiber.Ctx, name, value string, expires time.Time) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   strings.EqualFold(c.Protocol(), "https"),
		SameSite: fiber.CookieSameSiteLaxMode,
	}
}
