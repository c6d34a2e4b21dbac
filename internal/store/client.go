package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ncecere/tenant_console/internal/config"
)

var (
	// ErrNotConfigured reports that the store location or a role secret is absent.
	ErrNotConfigured = errors.New("store not configured")
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
)

const (
	applicationName   = "tenant-console"
	authenticatedRole = "authenticated"
)

// ServiceClient runs queries as the privileged service role. Row-level
// security does not apply to it, so it must only be handed to components
// that have already decided the caller is allowed to see everything.
type ServiceClient struct {
	*Queries
	pool *pgxpool.Pool
}

// UserClient runs every query inside a transaction bound to a single user so
// row-level security policies see that user as the caller.
type UserClient struct {
	pool *pgxpool.Pool
}

// NewServiceRoleClient returns a privileged client, or ErrNotConfigured when
// store.url or store.service_role_key is missing. No connection is opened
// until the first query.
func NewServiceRoleClient(cfg config.StoreConfig) (*ServiceClient, error) {
	poolCfg, err := rolePoolConfig(cfg, cfg.ServiceRoleUser, cfg.ServiceRoleKey, "store.service_role_key")
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return &ServiceClient{Queries: New(pool), pool: pool}, nil
}

// NewUserScopedClient returns the per-user client, or ErrNotConfigured when
// store.url or store.anon_key is missing.
func NewUserScopedClient(cfg config.StoreConfig) (*UserClient, error) {
	poolCfg, err := rolePoolConfig(cfg, cfg.AnonUser, cfg.AnonKey, "store.anon_key")
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return &UserClient{pool: pool}, nil
}

// ServiceRoleConnConfig resolves the connection settings for the service role.
// Migrations reuse it so schema changes run as the table owner.
func ServiceRoleConnConfig(cfg config.StoreConfig) (*pgx.ConnConfig, error) {
	poolCfg, err := rolePoolConfig(cfg, cfg.ServiceRoleUser, cfg.ServiceRoleKey, "store.service_role_key")
	if err != nil {
		return nil, err
	}
	return poolCfg.ConnConfig, nil
}

// rolePoolConfig never dials: MinConns stays 0 so the pool connects on first use.
func rolePoolConfig(cfg config.StoreConfig, user, secret, secretKey string) (*pgxpool.Config, error) {
	url := strings.TrimSpace(cfg.URL)
	secret = strings.TrimSpace(secret)
	if url == "" {
		return nil, fmt.Errorf("%w: store.url missing", ErrNotConfigured)
	}
	if secret == "" {
		return nil, fmt.Errorf("%w: %s missing", ErrNotConfigured, secretKey)
	}

	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse store url: %w", err)
	}
	if u := strings.TrimSpace(user); u != "" {
		poolCfg.ConnConfig.User = u
	}
	poolCfg.ConnConfig.Password = secret
	if poolCfg.ConnConfig.RuntimeParams == nil {
		poolCfg.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName

	poolCfg.MinConns = 0
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	return poolCfg, nil
}

// Ping verifies the service role can reach the store.
func (c *ServiceClient) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// Close releases pooled connections.
func (c *ServiceClient) Close() {
	if c != nil && c.pool != nil {
		c.pool.Close()
	}
}

// WithUser runs fn in a transaction where the session role is
// "authenticated" and request.jwt.claim.sub is userID. The settings are
// transaction-local, so nothing leaks back into the pool.
func (c *UserClient) WithUser(ctx context.Context, userID uuid.UUID, fn func(q *Queries) error) error {
	if userID == uuid.Nil {
		return fmt.Errorf("user id required")
	}
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin user transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SET LOCAL ROLE "+authenticatedRole); err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	if _, err := tx.Exec(ctx, "SELECT set_config('request.jwt.claim.sub', $1, true)", userID.String()); err != nil {
		return fmt.Errorf("set claims: %w", err)
	}

	if err := fn(New(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit user transaction: %w", err)
	}
	return nil
}

// GetSelf loads the caller's own users row through row-level security.
func (c *UserClient) GetSelf(ctx context.Context, userID uuid.UUID) (User, error) {
	var user User
	err := c.WithUser(ctx, userID, func(q *Queries) error {
		var err error
		user, err = q.GetUserByID(ctx, userID)
		return err
	})
	return user, err
}

// Ping verifies the anon role can reach the store.
func (c *UserClient) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// Close releases pooled connections.
func (c *UserClient) Close() {
	if c != nil && c.pool != nil {
		c.pool.Close()
	}
}
