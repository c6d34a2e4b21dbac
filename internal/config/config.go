package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config captures the runtime configuration for the console service.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Store         StoreConfig         `mapstructure:"store"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Session       SessionConfig       `mapstructure:"session"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Audit         AuditConfig         `mapstructure:"audit"`
	AI            AIConfig            `mapstructure:"ai"`
	Usage         UsageConfig         `mapstructure:"usage"`
	Reporting     ReportingConfig     `mapstructure:"reporting"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

type ServerConfig struct {
	ListenAddr            string        `mapstructure:"listen_addr"`
	BodyLimitMB           int           `mapstructure:"body_limit_mb"`
	ReadTimeout           time.Duration `mapstructure:"read_timeout"`
	IdleTimeout           time.Duration `mapstructure:"idle_timeout"`
	GracefulShutdownDelay time.Duration `mapstructure:"graceful_shutdown_delay"`
}

// DatabaseConfig controls schema migrations. Migrations run with the
// service-role credentials from StoreConfig.
type DatabaseConfig struct {
	RunMigrations bool   `mapstructure:"run_migrations"`
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// StoreConfig holds the data store location and the two role secrets. The
// secrets are optional at load time; connectors report their absence.
type StoreConfig struct {
	URL             string        `mapstructure:"url"`
	ServiceRoleKey  string        `mapstructure:"service_role_key"`
	ServiceRoleUser string        `mapstructure:"service_role_user"`
	AnonKey         string        `mapstructure:"anon_key"`
	AnonUser        string        `mapstructure:"anon_user"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

type RedisConfig struct {
	URL         string        `mapstructure:"url"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	TLS         bool          `mapstructure:"tls"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	PingTimeout time.Duration `mapstructure:"ping_timeout"`

	// MaintNotifications is the go-redis maintenance notification mode:
	// disabled, enabled or auto.
	MaintNotifications string `mapstructure:"maint_notifications"`
}

type SessionConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	CookieName      string        `mapstructure:"cookie_name"`
	Issuer          string        `mapstructure:"issuer"`
}

type AuthConfig struct {
	Local                  LocalAuthConfig `mapstructure:"local"`
	OIDC                   OIDCConfig      `mapstructure:"oidc"`
	LoginAttemptsPerMinute int             `mapstructure:"login_attempts_per_minute"`
}

type LocalAuthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type OIDCConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Issuer         string        `mapstructure:"issuer"`
	ClientID       string        `mapstructure:"client_id"`
	ClientSecret   string        `mapstructure:"client_secret"`
	RedirectURL    string        `mapstructure:"redirect_url"`
	Scopes         []string      `mapstructure:"scopes"`
	AllowedDomains []string      `mapstructure:"allowed_domains"`
	HTTPTimeout    time.Duration `mapstructure:"http_timeout"`
	RolesClaim     string        `mapstructure:"roles_claim"`
	AllowedRoles   []string      `mapstructure:"allowed_roles"`
	AdminRoles     []string      `mapstructure:"admin_roles"`
}

type AuditConfig struct {
	// SwallowStoreErrors keeps the audit endpoint answering with an empty
	// list when the store query fails. The failure is still logged.
	SwallowStoreErrors bool  `mapstructure:"swallow_store_errors"`
	Limit              int32 `mapstructure:"limit"`
}

type AIConfig struct {
	Providers     []string          `mapstructure:"providers"`
	CheckInterval time.Duration     `mapstructure:"check_interval"`
	ProbeTimeout  time.Duration     `mapstructure:"probe_timeout"`
	ProbeTTL      time.Duration     `mapstructure:"probe_ttl"`
	OpenAI        OpenAIConfig      `mapstructure:"openai"`
	Anthropic     AnthropicConfig   `mapstructure:"anthropic"`
	Bedrock       BedrockConfig     `mapstructure:"bedrock"`
	UsageMetric   string            `mapstructure:"usage_metric"`
	Labels        map[string]string `mapstructure:"labels"`
}

type OpenAIConfig struct {
	APIKey       string `mapstructure:"api_key"`
	BaseURL      string `mapstructure:"base_url"`
	Organization string `mapstructure:"organization"`
	Model        string `mapstructure:"model"`
}

type AnthropicConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Version string `mapstructure:"version"`
	Model   string `mapstructure:"model"`
}

type BedrockConfig struct {
	Region          string `mapstructure:"region"`
	Profile         string `mapstructure:"profile"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
	// Endpoint overrides the STS endpoint, e.g. for a VPC interface endpoint.
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"`
}

type UsageConfig struct {
	Retention time.Duration `mapstructure:"retention"`
}

type ReportingConfig struct {
	Timezone string `mapstructure:"timezone"`
}

type ObservabilityConfig struct {
	OTLPEndpoint  string `mapstructure:"otlp_endpoint"`
	EnableOTLP    bool   `mapstructure:"enable_otlp"`
	EnableMetrics bool   `mapstructure:"enable_metrics"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Options controls the config loader behavior.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Load returns the merged configuration sourced from YAML and environment variables.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		_ = godotenv.Load(opts.EnvFile)
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)

	explicitFile := false
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		explicitFile = true
	} else if cfg := os.Getenv("CONSOLE_CONFIG_FILE"); cfg != "" {
		v.SetConfigFile(cfg)
		explicitFile = true
	}

	if !explicitFile {
		v.SetConfigName("console")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("CONSOLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindSecretEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		timeStringToDurationHook(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindSecretEnv makes secret keys visible to AutomaticEnv even when the YAML
// file does not mention them; viper only resolves env vars for known keys.
func bindSecretEnv(v *viper.Viper) {
	for _, key := range []string{
		"redis.url",
		"redis.password",
		"store.url",
		"store.service_role_key",
		"store.anon_key",
		"session.jwt_secret",
		"auth.oidc.client_secret",
		"ai.openai.api_key",
		"ai.anthropic.api_key",
		"ai.bedrock.access_key_id",
		"ai.bedrock.secret_access_key",
		"ai.bedrock.session_token",
	} {
		_ = v.BindEnv(key)
	}
}

// Validate ensures required values are set.
func (c *Config) Validate() error {
	var missing []string

	if c.Redis.URL == "" {
		missing = append(missing, "CONSOLE_REDIS_URL")
	}
	if c.Session.JWTSecret == "" {
		missing = append(missing, "CONSOLE_SESSION_JWT_SECRET")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if err := c.Session.validate(); err != nil {
		return err
	}
	if err := c.Auth.validate(); err != nil {
		return err
	}
	if err := c.AI.validate(); err != nil {
		return err
	}

	if c.Database.RunMigrations && c.Database.MigrationsDir == "" {
		return fmt.Errorf("database.migrations_dir must be provided when run_migrations is true")
	}
	if c.Store.MaxConns < 0 {
		return fmt.Errorf("store.max_conns must be >= 0")
	}
	if c.Redis.PoolSize < 0 {
		return fmt.Errorf("redis.pool_size must be >= 0")
	}
	switch c.Redis.MaintNotifications {
	case "":
		c.Redis.MaintNotifications = "disabled"
	case "disabled", "enabled", "auto":
	default:
		return fmt.Errorf("redis.maint_notifications must be disabled, enabled or auto")
	}
	if c.Audit.Limit <= 0 || c.Audit.Limit > 100 {
		c.Audit.Limit = 100
	}
	if c.Usage.Retention <= 0 {
		c.Usage.Retention = 400 * 24 * time.Hour
	}

	reportingTZ := strings.TrimSpace(c.Reporting.Timezone)
	if reportingTZ == "" {
		reportingTZ = "Local"
	}
	if _, err := time.LoadLocation(reportingTZ); err != nil {
		return fmt.Errorf("invalid reporting.timezone: %w", err)
	}
	c.Reporting.Timezone = reportingTZ

	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "json":
		c.Logging.Format = "json"
	case "console":
		c.Logging.Format = "console"
	default:
		return fmt.Errorf("logging.format must be json or console")
	}

	return nil
}

// Location resolves the reporting timezone; Validate guarantees it loads.
func (r ReportingConfig) Location() *time.Location {
	name := strings.TrimSpace(r.Timezone)
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

func (s *SessionConfig) validate() error {
	if s.AccessTokenTTL <= 0 {
		return fmt.Errorf("session.access_token_ttl must be > 0")
	}
	if s.RefreshTokenTTL <= 0 {
		return fmt.Errorf("session.refresh_token_ttl must be > 0")
	}
	if s.CookieName == "" {
		return fmt.Errorf("session.cookie_name must be provided")
	}
	if s.Issuer == "" {
		s.Issuer = "tenant-console"
	}
	return nil
}

func (a *AuthConfig) validate() error {
	if !a.Local.Enabled && !a.OIDC.Enabled {
		return fmt.Errorf("at least one authentication method must be enabled (local or oidc)")
	}
	if a.LoginAttemptsPerMinute < 0 {
		return fmt.Errorf("auth.login_attempts_per_minute must be >= 0")
	}

	if a.OIDC.Enabled {
		if a.OIDC.Issuer == "" {
			return fmt.Errorf("auth.oidc.issuer must be provided when OIDC is enabled")
		}
		if a.OIDC.ClientID == "" {
			return fmt.Errorf("auth.oidc.client_id must be provided when OIDC is enabled")
		}
		if a.OIDC.ClientSecret == "" {
			return fmt.Errorf("auth.oidc.client_secret must be provided when OIDC is enabled")
		}
		if a.OIDC.RedirectURL == "" {
			return fmt.Errorf("auth.oidc.redirect_url must be provided when OIDC is enabled")
		}
		if a.OIDC.HTTPTimeout <= 0 {
			return fmt.Errorf("auth.oidc.http_timeout must be > 0")
		}
	}
	a.OIDC.AllowedDomains = normalizeStringSlice(a.OIDC.AllowedDomains)
	a.OIDC.AllowedRoles = normalizeStringSlice(a.OIDC.AllowedRoles)
	a.OIDC.AdminRoles = normalizeStringSlice(a.OIDC.AdminRoles)
	return nil
}

func (a *AIConfig) validate() error {
	providers := make([]string, 0, len(a.Providers))
	seen := make(map[string]struct{}, len(a.Providers))
	for i, p := range a.Providers {
		name := strings.ToLower(strings.TrimSpace(p))
		switch name {
		case "openai", "anthropic", "bedrock":
		case "":
			continue
		default:
			return fmt.Errorf("ai.providers[%d] must be openai, anthropic or bedrock", i)
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		providers = append(providers, name)
	}
	a.Providers = providers

	if a.ProbeTimeout <= 0 {
		a.ProbeTimeout = 5 * time.Second
	}
	if a.CheckInterval <= 0 {
		a.CheckInterval = time.Minute
	}
	if a.ProbeTTL <= 0 {
		a.ProbeTTL = 2 * a.CheckInterval
	}
	if strings.TrimSpace(a.UsageMetric) == "" {
		a.UsageMetric = "ai.requests"
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.body_limit_mb", 4)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.graceful_shutdown_delay", "5s")

	v.SetDefault("database.run_migrations", true)
	v.SetDefault("database.migrations_dir", "./migrations")

	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.max_conn_idle_time", "5m")
	v.SetDefault("store.max_conn_lifetime", "30m")

	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.ping_timeout", "3s")
	v.SetDefault("redis.maint_notifications", "disabled")

	v.SetDefault("session.access_token_ttl", "15m")
	v.SetDefault("session.refresh_token_ttl", "24h")
	v.SetDefault("session.cookie_name", "tc_session")
	v.SetDefault("session.issuer", "tenant-console")

	v.SetDefault("auth.local.enabled", true)
	v.SetDefault("auth.login_attempts_per_minute", 10)
	v.SetDefault("auth.oidc.enabled", false)
	v.SetDefault("auth.oidc.scopes", []string{"openid", "email", "profile"})
	v.SetDefault("auth.oidc.http_timeout", "5s")

	v.SetDefault("audit.swallow_store_errors", true)
	v.SetDefault("audit.limit", 100)

	v.SetDefault("ai.providers", []string{"openai", "anthropic", "bedrock"})
	v.SetDefault("ai.check_interval", "60s")
	v.SetDefault("ai.probe_timeout", "5s")
	v.SetDefault("ai.probe_ttl", "120s")
	v.SetDefault("ai.anthropic.version", "2023-06-01")
	v.SetDefault("ai.usage_metric", "ai.requests")

	v.SetDefault("usage.retention", "9600h")

	v.SetDefault("reporting.timezone", "Local")

	v.SetDefault("observability.enable_otlp", false)
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.otlp_endpoint", "http://localhost:4317")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func normalizeStringSlice(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	clean := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			clean = append(clean, trimmed)
		}
	}
	if len(clean) == 0 {
		return nil
	}
	return clean
}

func timeStringToDurationHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case time.Duration:
			return v, nil
		case string:
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, err
			}
			return d, nil
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		default:
			return nil, fmt.Errorf("cannot decode %T into time.Duration", data)
		}
	}
}
