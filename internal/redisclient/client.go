package redisclient

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"

	"github.com/ncecere/tenant_console/internal/config"
)

const defaultPingTimeout = 3 * time.Second

var ErrNoURL = errors.New("redis url is required")

// New builds the client shared by the usage meter, the AI status cache, OIDC
// state and the login limiter. cfg.URL is a redis://, rediss:// or unix://
// URL or a bare host:port; explicit credentials and TLS override the URL.
func New(cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := Options(cfg)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

// Options resolves cfg into go-redis options without dialing.
func Options(cfg config.RedisConfig) (*redis.Options, error) {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return nil, ErrNoURL
	}

	var opts *redis.Options
	if strings.Contains(raw, "://") {
		parsed, err := redis.ParseURL(raw)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: raw}
	}

	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.Username != "" {
		opts.Username = cfg.Username
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.TLS && opts.TLSConfig == nil {
		host, _, err := net.SplitHostPort(opts.Addr)
		if err != nil {
			host = opts.Addr
		}
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host}
	}

	mode := maintnotifications.Mode(cfg.MaintNotifications)
	if mode == "" {
		mode = maintnotifications.ModeDisabled
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("invalid redis maint_notifications mode %q", cfg.MaintNotifications)
	}
	opts.MaintNotificationsConfig = &maintnotifications.Config{Mode: mode}
	return opts, nil
}

// Ping checks connectivity within timeout (3s when zero).
func Ping(ctx context.Context, client *redis.Client, timeout time.Duration) error {
	if client == nil {
		return ErrNoURL
	}
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}
