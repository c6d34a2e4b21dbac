package requestctx

import (
	"context"

	"github.com/ncecere/tenant_console/internal/auth"
)

type contextKey string

// Key is the typed context key used for storing the resolved session.
var Key contextKey = "tenant-console/session"

// WithSession embeds the caller's session into the parent context.
func WithSession(parent context.Context, session auth.Session) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithValue(parent, Key, session)
}

// SessionFrom retrieves the session if a middleware attached one.
func SessionFrom(ctx context.Context) (auth.Session, bool) {
	if ctx == nil {
		return auth.Session{}, false
	}
	session, ok := ctx.Value(Key).(auth.Session)
	return session, ok
}
