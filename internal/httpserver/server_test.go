package httpserver

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ncecere/tenant_console/internal/app"
	"github.com/ncecere/tenant_console/internal/config"
)

func newTestServer(t *testing.T, logger *zap.Logger) (*Server, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := &config.Config{
		Server: config.ServerConfig{BodyLimitMB: 1},
		Redis:  config.RedisConfig{URL: "redis://" + mr.Addr()},
		Session: config.SessionConfig{
			JWTSecret:       "server-secret",
			AccessTokenTTL:  time.Minute,
			RefreshTokenTTL: time.Hour,
			CookieName:      "tc_session",
			Issuer:          "tenant-console",
		},
		Auth:      config.AuthConfig{Local: config.LocalAuthConfig{Enabled: true}},
		Audit:     config.AuditConfig{SwallowStoreErrors: true},
		Reporting: config.ReportingConfig{Timezone: "UTC"},
	}
	container, err := app.NewContainer(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { container.Close(context.Background()) })

	srv, err := New(container)
	require.NoError(t, err)
	return srv, mr
}

func decode(t *testing.T, srv *Server, method, target string) (int, map[string]any) {
	t.Helper()
	resp, err := srv.App().Test(httptest.NewRequest(method, target, nil), -1)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestHealthzReportsRedis(t *testing.T) {
	srv, mr := newTestServer(t, nil)

	status, body := decode(t, srv, "GET", "/healthz")
	require.Equal(t, 200, status)
	require.Equal(t, "ok", body["status"])
	checks := body["checks"].(map[string]any)
	require.Contains(t, checks, "redis")
	require.NotContains(t, checks, "postgres")

	mr.Close()
	status, body = decode(t, srv, "GET", "/healthz")
	require.Equal(t, 200, status)
	require.Equal(t, "degraded", body["status"])
}

func TestRoutesWithoutStoreAnswerServerError(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	status, body := decode(t, srv, "GET", "/api/ai/status")
	require.Equal(t, 500, status)
	require.Equal(t, "Server error", body["error"])

	status, body = decode(t, srv, "GET", "/api/admin/audit")
	require.Equal(t, 500, status)
	require.Equal(t, "Server error", body["error"])

	status, body = decode(t, srv, "GET", "/api/usage")
	require.Equal(t, 500, status)
	require.Equal(t, "Server error", body["error"])
}

func TestAuthMethods(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	status, body := decode(t, srv, "GET", "/api/auth/methods")
	require.Equal(t, 200, status)
	require.Equal(t, []any{"local"}, body["methods"])
}

func TestRequestLoggerEmitsDebugEntry(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	srv, _ := newTestServer(t, zap.New(core))

	status, _ := decode(t, srv, "GET", "/api/auth/methods")
	require.Equal(t, 200, status)

	entries := logs.FilterMessage("HTTP request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "/api/auth/methods", fields["path"])
	require.EqualValues(t, 200, fields["status"])
}
