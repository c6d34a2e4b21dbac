//go:build integration

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/ncecere/tenant_console/internal/config"
	"github.com/ncecere/tenant_console/internal/database"
	"github.com/ncecere/tenant_console/internal/rbac"
	"github.com/ncecere/tenant_console/migrations"
)

const (
	testDBUser     = "console"
	testDBPassword = "console_password"
	testAnonUser   = "console_anon"
	testAnonKey    = "anon_password"
)

func startPostgres(t *testing.T) config.StoreConfig {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "console",
				"POSTGRES_USER":     testDBUser,
				"POSTGRES_PASSWORD": testDBPassword,
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := config.StoreConfig{
		URL:            fmt.Sprintf("postgres://%s@%s:%s/console?sslmode=disable", testDBUser, host, port.Port()),
		ServiceRoleKey: testDBPassword,
		AnonUser:       testAnonUser,
		AnonKey:        testAnonKey,
		MaxConns:       4,
	}

	connCfg, err := ServiceRoleConnConfig(cfg)
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(ctx, connCfg, migrations.FS, zap.NewNop()))

	conn, err := pgx.ConnectConfig(ctx, connCfg)
	require.NoError(t, err)
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, fmt.Sprintf("CREATE ROLE %s LOGIN PASSWORD '%s'", testAnonUser, testAnonKey))
	require.NoError(t, err)
	_, err = conn.Exec(ctx, fmt.Sprintf("GRANT authenticated TO %s", testAnonUser))
	require.NoError(t, err)

	return cfg
}

func TestIntegrationAuditOrderingAndLimit(t *testing.T) {
	cfg := startPostgres(t)
	ctx := context.Background()

	svc, err := NewServiceRoleClient(cfg)
	require.NoError(t, err)
	defer svc.Close()

	for i := 0; i < 120; i++ {
		_, err := svc.InsertAuditEntry(ctx, InsertAuditEntryParams{
			Action:       "tenant.update",
			ResourceType: "tenant",
			ResourceID:   fmt.Sprintf("t-%03d", i),
		})
		require.NoError(t, err)
	}

	entries, err := svc.ListAuditEntries(ctx, 100)
	require.NoError(t, err)
	require.Len(t, entries, 100)
	for i := 1; i < len(entries); i++ {
		require.False(t, entries[i].CreatedAt.After(entries[i-1].CreatedAt), "entries must be newest first")
	}
	require.Equal(t, "t-119", entries[0].ResourceID)
	require.JSONEq(t, `{}`, string(entries[0].Metadata))
}

func TestIntegrationAuditEntriesAreImmutable(t *testing.T) {
	cfg := startPostgres(t)
	ctx := context.Background()

	svc, err := NewServiceRoleClient(cfg)
	require.NoError(t, err)
	defer svc.Close()

	entry, err := svc.InsertAuditEntry(ctx, InsertAuditEntryParams{Action: "a", ResourceType: "r"})
	require.NoError(t, err)

	_, err = svc.db.Exec(ctx, `UPDATE admin_audit_log SET action = 'b' WHERE id = $1`, pgUUID(entry.ID))
	require.Error(t, err)
}

func TestIntegrationRowLevelSecurity(t *testing.T) {
	cfg := startPostgres(t)
	ctx := context.Background()

	svc, err := NewServiceRoleClient(cfg)
	require.NoError(t, err)
	defer svc.Close()
	userClient, err := NewUserScopedClient(cfg)
	require.NoError(t, err)
	defer userClient.Close()

	alice, err := svc.CreateUser(ctx, CreateUserParams{Email: "alice@example.com", Name: "Alice", Role: rbac.RoleAdmin})
	require.NoError(t, err)
	bob, err := svc.CreateUser(ctx, CreateUserParams{Email: "bob@example.com", Name: "Bob"})
	require.NoError(t, err)
	_, err = svc.InsertAuditEntry(ctx, InsertAuditEntryParams{ActorID: &alice.ID, Action: "a", ResourceType: "r"})
	require.NoError(t, err)

	self, err := userClient.GetSelf(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", self.Email)
	require.Equal(t, rbac.RoleAdmin, self.Role)

	err = userClient.WithUser(ctx, alice.ID, func(q *Queries) error {
		_, err := q.GetUserByID(ctx, bob.ID)
		require.ErrorIs(t, err, ErrNotFound)

		entries, err := q.ListAuditEntries(ctx, 100)
		require.NoError(t, err)
		require.Empty(t, entries, "audit log must be invisible to user-scoped sessions")
		return nil
	})
	require.NoError(t, err)

	_, err = userClient.GetSelf(ctx, uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}
