package aistatus

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ncecere/tenant_console/internal/auth"
	"github.com/ncecere/tenant_console/internal/authz"
)

// Source computes the status payload for an authenticated caller.
type Source interface {
	Snapshot(ctx context.Context, session auth.Session) (Snapshot, error)
}

// SessionResolver turns a session token into a caller.
type SessionResolver interface {
	Resolve(ctx context.Context, users auth.SelfLoader, token string) (auth.Session, error)
}

// Reporter gates the AI status behind a valid user session.
type Reporter struct {
	users    auth.SelfLoader
	sessions SessionResolver
	source   Source
	logger   *zap.Logger
}

// NewReporter builds a reporter. users is the user-scoped store and is nil
// when the store is not configured.
func NewReporter(users auth.SelfLoader, sessions SessionResolver, source Source, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{users: users, sessions: sessions, source: source, logger: logger}
}

// Report returns a 500 denial when the store is not configured or fails, a
// 401 denial when token names no session, and otherwise the source's snapshot.
func (r *Reporter) Report(ctx context.Context, token string) (Snapshot, error) {
	if r == nil || r.users == nil || r.sessions == nil {
		return Snapshot{}, authz.ServerError()
	}
	session, err := r.sessions.Resolve(ctx, r.users, token)
	if err != nil {
		if errors.Is(err, auth.ErrSessionLookup) {
			r.logger.Error("resolve session", zap.Error(err))
			return Snapshot{}, authz.ServerError()
		}
		return Snapshot{}, authz.Deny(http.StatusUnauthorized, authz.MessageUnauthorized)
	}
	if r.source == nil {
		return Snapshot{}, authz.ServerError()
	}
	snap, err := r.source.Snapshot(ctx, session)
	if err != nil {
		r.logger.Error("compute ai status", zap.String("user_id", session.UserID.String()), zap.Error(err))
		return Snapshot{}, authz.ServerError()
	}
	return snap, nil
}
