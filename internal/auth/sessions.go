package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ncecere/tenant_console/internal/rbac"
	"github.com/ncecere/tenant_console/internal/store"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	// ErrSessionLookup wraps store failures while loading a session's user.
	ErrSessionLookup = errors.New("session lookup failed")
)

// SelfLoader loads the caller's own row through the user-scoped store.
type SelfLoader interface {
	GetSelf(ctx context.Context, userID uuid.UUID) (store.User, error)
}

// Session is an authenticated caller resolved from an access token.
type Session struct {
	UserID       uuid.UUID
	Email        string
	Name         string
	Role         rbac.Role
	IsSuperAdmin bool
	ExpiresAt    time.Time
}

// Sessions resolves access tokens into sessions.
type Sessions struct {
	tokens *TokenManager
}

func NewSessions(tokens *TokenManager) *Sessions {
	return &Sessions{tokens: tokens}
}

// Resolve validates token and loads the user it names through users. Token
// failures and a missing row are ErrUnauthorized; any other store error is
// wrapped in ErrSessionLookup.
func (s *Sessions) Resolve(ctx context.Context, users SelfLoader, token string) (Session, error) {
	if s == nil || s.tokens == nil || users == nil || token == "" {
		return Session{}, ErrUnauthorized
	}
	claims, err := s.tokens.ParseAccess(token)
	if err != nil {
		return Session{}, ErrUnauthorized
	}
	user, err := users.GetSelf(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrUnauthorized
		}
		return Session{}, fmt.Errorf("%w: %w", ErrSessionLookup, err)
	}
	return Session{
		UserID:       user.ID,
		Email:        user.Email,
		Name:         user.Name,
		Role:         user.Role,
		IsSuperAdmin: user.IsSuperAdmin,
		ExpiresAt:    claims.ExpiresAt,
	}, nil
}
