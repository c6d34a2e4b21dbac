package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/ncecere/tenant_console/internal/authz"
)

func decodeError(t *testing.T, body io.Reader) string {
	t.Helper()
	var payload map[string]string
	require.NoError(t, json.NewDecoder(body).Decode(&payload))
	return payload["error"]
}

func TestWriteDenial(t *testing.T) {
	app := fiber.New()
	app.Get("/denied", func(c *fiber.Ctx) error {
		return WriteDenial(c, authz.Deny(fiber.StatusForbidden, "insufficient permissions"))
	})
	app.Get("/plain", func(c *fiber.Ctx) error {
		return WriteDenial(c, errors.New("database exploded"))
	})
	app.Get("/empty", func(c *fiber.Ctx) error {
		return WriteError(c, fiber.StatusTeapot, "")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/denied", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	require.Equal(t, "insufficient permissions", decodeError(t, resp.Body))

	resp, err = app.Test(httptest.NewRequest("GET", "/plain", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "Server error", decodeError(t, resp.Body))

	resp, err = app.Test(httptest.NewRequest("GET", "/empty", nil))
	require.NoError(t, err)
	require.Equal(t, "I'm a teapot", decodeError(t, resp.Body))
}

func TestExtractToken(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(ExtractToken(c, "tc_session"))
	})

	cases := []struct {
		name   string
		header string
		cookie string
		want   string
	}{
		{name: "bearer", header: "Bearer abc", want: "abc"},
		{name: "case insensitive", header: "bearer  xyz ", want: "xyz"},
		{name: "cookie fallback", cookie: "from-cookie", want: "from-cookie"},
		{name: "header wins", header: "Bearer h", cookie: "c", want: "h"},
		{name: "basic ignored", header: "Basic Zm9vOmJhcg==", want: ""},
		{name: "none", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != "" {
				req.Header.Set("Cookie", "tc_session="+tc.cookie)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			require.Equal(t, tc.want, string(body))
		})
	}
}
