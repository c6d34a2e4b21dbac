package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ncecere/tenant_console/internal/rbac"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries holds the SQL used by the console.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	Role         rbac.Role
	IsSuperAdmin bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Credential struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Provider     string
	Issuer       string
	Subject      string
	PasswordHash string
	Metadata     json.RawMessage
}

// AuditEntry is one immutable row of admin_audit_log.
type AuditEntry struct {
	ID           uuid.UUID
	ActorID      *uuid.UUID
	Action       string
	ResourceType string
	ResourceID   string
	Metadata     json.RawMessage
	CreatedAt    time.Time
}

const userColumns = `id, email, name, role, is_super_admin, last_login_at, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var (
		id        pgtype.UUID
		role      string
		lastLogin pgtype.Timestamptz
		u         User
	)
	if err := row.Scan(&id, &u.Email, &u.Name, &role, &u.IsSuperAdmin, &lastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	u.ID = uuid.UUID(id.Bytes)
	u.Role = rbac.Role(role)
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return u, nil
}

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, pgUUID(id))
	return scanUser(row)
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email))
	return scanUser(row)
}

type CreateUserParams struct {
	Email        string
	Name         string
	Role         rbac.Role
	IsSuperAdmin bool
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	role := arg.Role
	if role == "" {
		role = rbac.RoleUser
	}
	row := q.db.QueryRow(ctx, `
INSERT INTO users (email, name, role, is_super_admin)
VALUES ($1, $2, $3, $4)
RETURNING `+userColumns,
		strings.TrimSpace(arg.Email), arg.Name, string(role), arg.IsSuperAdmin)
	return scanUser(row)
}

func (q *Queries) SetUserRole(ctx context.Context, id uuid.UUID, role rbac.Role) error {
	return q.execOne(ctx, `UPDATE users SET role = $2, updated_at = now() WHERE id = $1`, pgUUID(id), string(role))
}

func (q *Queries) SetUserSuperAdmin(ctx context.Context, id uuid.UUID, isSuperAdmin bool) error {
	return q.execOne(ctx, `UPDATE users SET is_super_admin = $2, updated_at = now() WHERE id = $1`, pgUUID(id), isSuperAdmin)
}

func (q *Queries) UpdateUserLastLogin(ctx context.Context, id uuid.UUID) error {
	return q.execOne(ctx, `UPDATE users SET last_login_at = now() WHERE id = $1`, pgUUID(id))
}

func (q *Queries) GetCredential(ctx context.Context, userID uuid.UUID, provider, issuer string) (Credential, error) {
	var (
		id, uid pgtype.UUID
		hash    pgtype.Text
		c       Credential
	)
	err := q.db.QueryRow(ctx, `
SELECT id, user_id, provider, issuer, subject, password_hash, metadata
FROM user_credentials
WHERE user_id = $1 AND provider = $2 AND issuer = $3`,
		pgUUID(userID), provider, issuer).Scan(&id, &uid, &c.Provider, &c.Issuer, &c.Subject, &hash, &c.Metadata)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credential{}, ErrNotFound
		}
		return Credential{}, err
	}
	c.ID = uuid.UUID(id.Bytes)
	c.UserID = uuid.UUID(uid.Bytes)
	if hash.Valid {
		c.PasswordHash = hash.String
	}
	return c, nil
}

type UpsertCredentialParams struct {
	UserID       uuid.UUID
	Provider     string
	Issuer       string
	Subject      string
	PasswordHash string
	Metadata     json.RawMessage
}

func (q *Queries) UpsertCredential(ctx context.Context, arg UpsertCredentialParams) error {
	hash := pgtype.Text{String: arg.PasswordHash, Valid: arg.PasswordHash != ""}
	metadata := arg.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}
	_, err := q.db.Exec(ctx, `
INSERT INTO user_credentials (user_id, provider, issuer, subject, password_hash, metadata)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id, provider, issuer) DO UPDATE
SET subject = EXCLUDED.subject,
    password_hash = EXCLUDED.password_hash,
    metadata = EXCLUDED.metadata,
    updated_at = now()`,
		pgUUID(arg.UserID), arg.Provider, arg.Issuer, arg.Subject, hash, []byte(metadata))
	if err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

// ListAuditEntries returns the newest entries first.
func (q *Queries) ListAuditEntries(ctx context.Context, limit int32) ([]AuditEntry, error) {
	rows, err := q.db.Query(ctx, `
SELECT id, actor_id, action, resource_type, resource_id, metadata, created_at
FROM admin_audit_log
ORDER BY created_at DESC, id DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type InsertAuditEntryParams struct {
	ActorID      *uuid.UUID
	Action       string
	ResourceType string
	ResourceID   string
	Metadata     json.RawMessage
}

func (q *Queries) InsertAuditEntry(ctx context.Context, arg InsertAuditEntryParams) (AuditEntry, error) {
	var actor pgtype.UUID
	if arg.ActorID != nil {
		actor = pgUUID(*arg.ActorID)
	}
	metadata := arg.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}
	row := q.db.QueryRow(ctx, `
INSERT INTO admin_audit_log (actor_id, action, resource_type, resource_id, metadata)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, actor_id, action, resource_type, resource_id, metadata, created_at`,
		actor, arg.Action, arg.ResourceType, arg.ResourceID, []byte(metadata))
	return scanAuditEntry(row)
}

func scanAuditEntry(row pgx.Row) (AuditEntry, error) {
	var (
		id, actor pgtype.UUID
		metadata  []byte
		e         AuditEntry
	)
	if err := row.Scan(&id, &actor, &e.Action, &e.ResourceType, &e.ResourceID, &metadata, &e.CreatedAt); err != nil {
		return AuditEntry{}, err
	}
	e.ID = uuid.UUID(id.Bytes)
	if actor.Valid {
		a := uuid.UUID(actor.Bytes)
		e.ActorID = &a
	}
	e.Metadata = json.RawMessage(metadata)
	return e, nil
}

func (q *Queries) execOne(ctx context.Context, sql string, args ...any) error {
	tag, err := q.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}
