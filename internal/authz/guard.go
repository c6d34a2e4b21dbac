package authz

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ncecere/tenant_console/internal/auth"
	"github.com/ncecere/tenant_console/internal/rbac"
	"github.com/ncecere/tenant_console/internal/store"
)

const (
	MessageServerError  = "Server error"
	MessageUnauthorized = "Unauthorized"
	MessageAuthRequired = "admin authorization required"
	MessageInvalidToken = "invalid or expired token"
	MessageInsufficient = "insufficient permissions"
)

// Denial is a ready-to-send rejection. Handlers write Status and
// {"error": Message} without further interpretation.
type Denial struct {
	Status  int
	Message string
}

func (d *Denial) Error() string {
	return fmt.Sprintf("%d %s", d.Status, d.Message)
}

func Deny(status int, message string) *Denial {
	if message == "" {
		message = http.StatusText(status)
	}
	return &Denial{Status: status, Message: message}
}

// ServerError is the 500 denial used when a backing dependency is missing or failing.
func ServerError() *Denial {
	return Deny(http.StatusInternalServerError, MessageServerError)
}

// AsDenial extracts a Denial from err.
func AsDenial(err error) (*Denial, bool) {
	var d *Denial
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// AdminStore is the privileged store surface handed to admin handlers.
type AdminStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (store.User, error)
	ListAuditEntries(ctx context.Context, limit int32) ([]store.AuditEntry, error)
}

// AdminAccess is the result of a successful admin check. Store is the
// service-role handle; it is only reachable through this value.
type AdminAccess struct {
	UserID       uuid.UUID
	Email        string
	Role         rbac.Role
	IsSuperAdmin bool
	Store        AdminStore
}

// AdminGuard verifies that a session token belongs to an administrator.
type AdminGuard struct {
	tokens *auth.TokenManager
	store  AdminStore
	logger *zap.Logger
}

// NewAdminGuard builds a guard. A nil store makes every call fail with a
// 500 denial.
func NewAdminGuard(tokens *auth.TokenManager, adminStore AdminStore, logger *zap.Logger) *AdminGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminGuard{tokens: tokens, store: adminStore, logger: logger}
}

func (g *AdminGuard) Authorize(ctx context.Context, token string) (*AdminAccess, error) {
	if g == nil || g.store == nil || g.tokens == nil {
		return nil, ServerError()
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, Deny(http.StatusUnauthorized, MessageAuthRequired)
	}

	claims, err := g.tokens.ParseAccess(token)
	if err != nil {
		return nil, Deny(http.StatusUnauthorized, MessageInvalidToken)
	}

	user, err := g.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Deny(http.StatusUnauthorized, MessageInvalidToken)
		}
		g.logger.Error("admin guard user lookup",
			zap.String("user_id", claims.UserID.String()),
			zap.Error(err),
		)
		return nil, ServerError()
	}

	if !user.IsSuperAdmin {
		if err := rbac.Ensure(user.Role, rbac.RoleAdmin); err != nil {
			return nil, Deny(http.StatusForbidden, MessageInsufficient)
		}
	}

	return &AdminAccess{
		UserID:       user.ID,
		Email:        user.Email,
		Role:         user.Role,
		IsSuperAdmin: user.IsSuperAdmin,
		Store:        g.store,
	}, nil
}
