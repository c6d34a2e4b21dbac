package public

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ncecere/tenant_console/internal/auth"
	"github.com/ncecere/tenant_console/internal/authz"
	"github.com/ncecere/tenant_console/internal/httpserver/httputil"
)

const (
	oidcStatePrefix       = "oidc:state:"
	oidcStateTTL          = 10 * time.Minute
	defaultOIDCReturnPath = "/auth/oidc/complete"
)

var allowedReturnPrefixes = []string{"/admin", "/user", "/auth"}

type oidcStateData struct {
	Nonce string `json:"nonce"`
	// ReturnTo is empty when the caller wants the token pair as JSON.
	ReturnTo string `json:"return_to,omitempty"`
}

type oidcStartResponse struct {
	AuthURL string `json:"auth_url"`
	State   string `json:"state"`
}

func (h *authHandler) oidcStart(c *fiber.Ctx) error {
	if !h.oidcEnabled {
		return httputil.WriteError(c, fiber.StatusNotFound, "oidc disabled")
	}
	if h.auth == nil || h.redis == nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, authz.MessageServerError)
	}

	returnTo := ""
	if raw := strings.TrimSpace(c.Query("return_to")); raw != "" {
		returnTo = sanitizeReturnPath(raw)
	}

	state, err := auth.GenerateState(32)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, authz.MessageServerError)
	}
	nonce, err := auth.GenerateState(32)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, authz.MessageServerError)
	}

	authURL, err := h.auth.StartOIDCAuth(state, nonce)
	if err != nil {
		if errors.Is(err, auth.ErrOIDCDisabled) {
			return httputil.WriteError(c, fiber.StatusNotFound, "oidc disabled")
		}
		return httputil.WriteError(c, fiber.StatusInternalServerError, authz.MessageServerError)
	}

	payload, err := json.Marshal(oidcStateData{Nonce: nonce, ReturnTo: returnTo})
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to encode oidc state")
	}
	if err := h.redis.Set(userContext(c), oidcStateKey(state), payload, oidcStateTTL).Err(); err != nil {
		h.logger.Error("persist oidc state", zap.Error(err))
		return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to persist oidc state")
	}

	return c.JSON(oidcStartResponse{AuthURL: authURL, State: state})
}

func (h *authHandler) oidcCallback(c *fiber.Ctx) error {
	if !h.oidcEnabled {
		return httputil.WriteError(c, fiber.StatusNotFound, "oidc disabled")
	}
	if h.auth == nil || h.redis == nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, authz.MessageServerError)
	}

	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "state and code required")
	}

	ctx := userContext(c)
	key := oidcStateKey(state)
	rawState, err := h.redis.GetDel(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return httputil.WriteError(c, fiber.StatusUnauthorized, "invalid or expired state")
		}
		h.logger.Error("load oidc state", zap.Error(err))
		return httputil.WriteError(c, fiber.StatusInternalServerError, authz.MessageServerError)
	}

	var stateData oidcStateData
	if err := json.Unmarshal(rawState, &stateData); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid oidc state payload")
	}

	pair, user, err := h.auth.CompleteOIDCAuth(ctx, code, stateData.Nonce)
	if err != nil {
		h.logger.Warn("oidc login failed", zap.Error(err))
		if stateData.ReturnTo != "" {
			return redirectOIDC(c, stateData.ReturnTo, "login failed")
		}
		if errors.Is(err, auth.ErrStoreUnavailable) {
			return httputil.WriteError(c, fiber.StatusInternalServerError, authz.MessageServerError)
		}
		return httputil.WriteError(c, fiber.StatusUnauthorized, "oidc login failed")
	}

	h.cookies.set(c, pair)
	if stateData.ReturnTo != "" {
		return redirectOIDC(c, stateData.ReturnTo, "")
	}
	return c.JSON(buildTokenResponse(pair, user, auth.ProviderOIDC))
}

func oidcStateKey(state string) string {
	return oidcStatePrefix + state
}

func sanitizeReturnPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" || strings.Contains(path, "://") || strings.HasPrefix(path, "//") {
		return defaultOIDCReturnPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	for _, prefix := range allowedReturnPrefixes {
		if strings.HasPrefix(path, prefix) {
			return path
		}
	}
	return defaultOIDCReturnPath
}

func redirectOIDC(c *fiber.Ctx, path, failure string) error {
	target := sanitizeReturnPath(path)
	if failure != "" {
		target = appendQueryParam(target, "error", failure)
	} else {
		target = appendQueryParam(target, "status", "success")
	}
	return c.Redirect(target, fiber.StatusTemporaryRedirect)
}

func appendQueryParam(path, key, value string) string {
	if key == "" || value == "" {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s%s=%s", path, sep, key, url.QueryEscape(value))
}
