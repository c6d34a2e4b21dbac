package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "console.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("CONSOLE_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("CONSOLE_SESSION_JWT_SECRET", "secret")
	path := writeConfigFile(t, "server:\n  listen_addr: \":9090\"\n")

	cfg, err := Load(Options{ConfigFile: path, EnvFile: filepath.Join(t.TempDir(), "missing.env")})
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.Server.ListenAddr)
	require.True(t, cfg.Audit.SwallowStoreErrors)
	require.Equal(t, int32(100), cfg.Audit.Limit)
	require.Equal(t, []string{"openai", "anthropic", "bedrock"}, cfg.AI.Providers)
	require.Equal(t, "Local", cfg.Reporting.Timezone)
	require.Equal(t, 15*time.Minute, cfg.Session.AccessTokenTTL)
	require.Equal(t, 400*24*time.Hour, cfg.Usage.Retention)
	require.Equal(t, 10, cfg.Auth.LoginAttemptsPerMinute)
	require.Equal(t, "json", cfg.Logging.Format)
	require.Equal(t, 3*time.Second, cfg.Redis.PingTimeout)
	require.Equal(t, 5*time.Second, cfg.Redis.DialTimeout)
	require.Equal(t, "disabled", cfg.Redis.MaintNotifications)
	require.Empty(t, cfg.Store.ServiceRoleKey, "store secrets are optional at load time")
}

func TestLoadReadsStoreSecretsFromEnv(t *testing.T) {
	t.Setenv("CONSOLE_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("CONSOLE_SESSION_JWT_SECRET", "secret")
	t.Setenv("CONSOLE_STORE_URL", "postgres://db.internal:5432/console")
	t.Setenv("CONSOLE_STORE_SERVICE_ROLE_KEY", "service-secret")
	t.Setenv("CONSOLE_STORE_ANON_KEY", "anon-secret")
	t.Setenv("CONSOLE_AUDIT_SWALLOW_STORE_ERRORS", "false")
	path := writeConfigFile(t, "store:\n  service_role_user: service_role\n  anon_user: console_anon\n")

	cfg, err := Load(Options{ConfigFile: path, EnvFile: filepath.Join(t.TempDir(), "missing.env")})
	require.NoError(t, err)

	require.Equal(t, "postgres://db.internal:5432/console", cfg.Store.URL)
	require.Equal(t, "service-secret", cfg.Store.ServiceRoleKey)
	require.Equal(t, "anon-secret", cfg.Store.AnonKey)
	require.Equal(t, "service_role", cfg.Store.ServiceRoleUser)
	require.Equal(t, "console_anon", cfg.Store.AnonUser)
	require.False(t, cfg.Audit.SwallowStoreErrors)
}

func TestValidateReportsMissingKeys(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "CONSOLE_REDIS_URL")
	require.Contains(t, err.Error(), "CONSOLE_SESSION_JWT_SECRET")
}

func validConfig() *Config {
	return &Config{
		Redis: RedisConfig{URL: "redis://localhost:6379"},
		Session: SessionConfig{
			JWTSecret:       "secret",
			AccessTokenTTL:  time.Minute,
			RefreshTokenTTL: time.Hour,
			CookieName:      "tc_session",
		},
		Auth: AuthConfig{Local: LocalAuthConfig{Enabled: true}},
		AI:   AIConfig{Providers: []string{"OpenAI", " bedrock ", "openai"}},
	}
}

func TestValidateNormalizesProviders(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, []string{"openai", "bedrock"}, cfg.AI.Providers)
	require.Equal(t, 2*time.Minute, cfg.AI.ProbeTTL)
	require.Equal(t, "ai.requests", cfg.AI.UsageMetric)
	require.Equal(t, "tenant-console", cfg.Session.Issuer)
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	cfg := validConfig()
	cfg.AI.Providers = []string{"openai", "vertex"}
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsBadTimezone(t *testing.T) {
	cfg := validConfig()
	cfg.Reporting.Timezone = "Mars/Olympus"
	require.Error(t, cfg.Validate())
}

func TestValidateRequiresAuthMethod(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Local.Enabled = false
	require.Error(t, cfg.Validate())
}

func TestValidateRedisMaintNotifications(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "disabled", cfg.Redis.MaintNotifications)

	cfg = validConfig()
	cfg.Redis.MaintNotifications = "sometimes"
	require.Error(t, cfg.Validate())
}
