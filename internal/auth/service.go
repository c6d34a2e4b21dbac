package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ncecere/tenant_console/internal/config"
	"github.com/ncecere/tenant_console/internal/rbac"
	"github.com/ncecere/tenant_console/internal/store"
)

const (
	ProviderLocal = "local"
	ProviderOIDC  = "oidc"

	ActionLoginLocal = "auth.login.local"
	ActionLoginOIDC  = "auth.login.oidc"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLocalDisabled      = errors.New("local authentication disabled")
	ErrOIDCDisabled       = errors.New("oidc authentication disabled")
	// ErrStoreUnavailable means the service-role store was not configured.
	ErrStoreUnavailable = errors.New("identity store unavailable")
)

// IdentityStore is the part of the service-role client used for credential checks.
type IdentityStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	CreateUser(ctx context.Context, arg store.CreateUserParams) (store.User, error)
	SetUserSuperAdmin(ctx context.Context, id uuid.UUID, isSuperAdmin bool) error
	UpdateUserLastLogin(ctx context.Context, id uuid.UUID) error
	GetCredential(ctx context.Context, userID uuid.UUID, provider, issuer string) (store.Credential, error)
	UpsertCredential(ctx context.Context, arg store.UpsertCredentialParams) error
}

// AuditRecorder persists admin audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, actorID uuid.UUID, action, resourceType, resourceID string, metadata any) error
}

// OIDCExchanger completes an authorization code flow.
type OIDCExchanger interface {
	AuthCodeURL(state, nonce string) string
	Exchange(ctx context.Context, code, expectedNonce string) (*OIDCIdentity, error)
	HasAdminRoles() bool
}

// Service performs logins and token refreshes.
type Service struct {
	cfg    config.AuthConfig
	store  IdentityStore
	tokens *TokenManager
	oidc   OIDCExchanger
	audit  AuditRecorder
	logger *zap.Logger
}

type ServiceOptions struct {
	Config config.AuthConfig
	// Store may be nil when the service role is not configured; logins then
	// fail with ErrStoreUnavailable.
	Store  IdentityStore
	Tokens *TokenManager
	OIDC   OIDCExchanger
	Audit  AuditRecorder
	Logger *zap.Logger
}

func NewService(opts ServiceOptions) (*Service, error) {
	if opts.Tokens == nil {
		return nil, errors.New("token manager required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:    opts.Config,
		store:  opts.Store,
		tokens: opts.Tokens,
		oidc:   opts.OIDC,
		audit:  opts.Audit,
		logger: logger,
	}, nil
}

func (s *Service) AllowedAuthMethods() []string {
	methods := []string{}
	if s.cfg.Local.Enabled {
		methods = append(methods, ProviderLocal)
	}
	if s.oidc != nil {
		methods = append(methods, ProviderOIDC)
	}
	return methods
}

func (s *Service) AuthenticateLocal(ctx context.Context, email, password string) (*TokenPair, store.User, error) {
	if !s.cfg.Local.Enabled {
		return nil, store.User{}, ErrLocalDisabled
	}
	if s.store == nil {
		return nil, store.User{}, ErrStoreUnavailable
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.User{}, ErrInvalidCredentials
		}
		return nil, store.User{}, fmt.Errorf("lookup user: %w", err)
	}

	cred, err := s.store.GetCredential(ctx, user.ID, ProviderLocal, ProviderLocal)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.User{}, ErrInvalidCredentials
		}
		return nil, store.User{}, fmt.Errorf("load credential: %w", err)
	}
	if cred.PasswordHash == "" {
		return nil, store.User{}, ErrInvalidCredentials
	}

	match, err := VerifyPassword(password, cred.PasswordHash)
	if err != nil {
		if errors.Is(err, ErrPasswordRequired) {
			return nil, store.User{}, ErrInvalidCredentials
		}
		return nil, store.User{}, err
	}
	if !match {
		return nil, store.User{}, ErrInvalidCredentials
	}

	return s.completeLogin(ctx, user, ProviderLocal, ActionLoginLocal)
}

// SetLocalPassword stores an argon2id hash for the user's local credential.
func (s *Service) SetLocalPassword(ctx context.Context, userID uuid.UUID, email, password string) error {
	if s.store == nil {
		return ErrStoreUnavailable
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return s.store.UpsertCredential(ctx, store.UpsertCredentialParams{
		UserID:       userID,
		Provider:     ProviderLocal,
		Issuer:       ProviderLocal,
		Subject:      email,
		PasswordHash: hash,
	})
}

func (s *Service) StartOIDCAuth(state, nonce string) (string, error) {
	if s.oidc == nil {
		return "", ErrOIDCDisabled
	}
	return s.oidc.AuthCodeURL(state, nonce), nil
}

func (s *Service) CompleteOIDCAuth(ctx context.Context, code, expectedNonce string) (*TokenPair, store.User, error) {
	if s.oidc == nil {
		return nil, store.User{}, ErrOIDCDisabled
	}
	if s.store == nil {
		return nil, store.User{}, ErrStoreUnavailable
	}

	identity, err := s.oidc.Exchange(ctx, code, expectedNonce)
	if err != nil {
		return nil, store.User{}, err
	}

	user, err := s.store.GetUserByEmail(ctx, identity.Email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		user, err = s.store.CreateUser(ctx, store.CreateUserParams{
			Email: identity.Email,
			Name:  identity.DisplayName(),
			Role:  rbac.RoleUser,
		})
		if err != nil {
			return nil, store.User{}, fmt.Errorf("create user: %w", err)
		}
	case err != nil:
		return nil, store.User{}, fmt.Errorf("get user: %w", err)
	}

	if s.oidc.HasAdminRoles() && user.IsSuperAdmin != identity.IsAdmin {
		if err := s.store.SetUserSuperAdmin(ctx, user.ID, identity.IsAdmin); err != nil {
			return nil, store.User{}, fmt.Errorf("update user admin flag: %w", err)
		}
		user.IsSuperAdmin = identity.IsAdmin
	}

	issuer := identity.Issuer
	if issuer == "" {
		issuer = s.cfg.OIDC.Issuer
	}
	metadata := identity.MetadataJSON
	if len(metadata) == 0 {
		metadata, _ = json.Marshal(map[string]any{"email": identity.Email, "name": identity.Name})
	}
	if err := s.store.UpsertCredential(ctx, store.UpsertCredentialParams{
		UserID:   user.ID,
		Provider: ProviderOIDC,
		Issuer:   issuer,
		Subject:  identity.Subject,
		Metadata: metadata,
	}); err != nil {
		return nil, store.User{}, err
	}

	return s.completeLogin(ctx, user, ProviderOIDC, ActionLoginOIDC)
}

// Refresh exchanges a refresh token for a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, store.User, error) {
	if s.store == nil {
		return nil, store.User{}, ErrStoreUnavailable
	}
	claims, err := s.tokens.ParseRefresh(strings.TrimSpace(refreshToken))
	if err != nil {
		return nil, store.User{}, err
	}
	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.User{}, ErrInvalidToken
		}
		return nil, store.User{}, fmt.Errorf("get user: %w", err)
	}
	pair, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return nil, store.User{}, err
	}
	return pair, user, nil
}

func (s *Service) completeLogin(ctx context.Context, user store.User, method, action string) (*TokenPair, store.User, error) {
	if err := s.store.UpdateUserLastLogin(ctx, user.ID); err != nil {
		return nil, store.User{}, fmt.Errorf("update last login: %w", err)
	}
	pair, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return nil, store.User{}, err
	}

	if s.audit != nil && IsAdmin(user) {
		if err := s.audit.Record(ctx, user.ID, action, "user", user.ID.String(), map[string]string{"method": method}); err != nil {
			s.logger.Error("record login audit entry",
				zap.String("user_id", user.ID.String()),
				zap.String("action", action),
				zap.Error(err),
			)
		}
	}
	return pair, user, nil
}

// IsAdmin reports whether the user may use admin surfaces.
func IsAdmin(user store.User) bool {
	return user.IsSuperAdmin || rbac.AtLeast(user.Role, rbac.RoleAdmin)
}
