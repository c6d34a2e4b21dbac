package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	oidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/ncecere/tenant_console/internal/config"
)

var ErrOIDCRejected = errors.New("oidc identity rejected")

// OIDCIdentity is the verified result of an authorization code exchange.
type OIDCIdentity struct {
	Issuer        string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	PreferredName string
	Roles         []string
	IsAdmin       bool
	MetadataJSON  []byte
}

// DisplayName picks the best human-readable name the provider supplied.
func (i *OIDCIdentity) DisplayName() string {
	switch {
	case i.Name != "":
		return i.Name
	case i.PreferredName != "":
		return i.PreferredName
	default:
		return i.Email
	}
}

type OIDCProvider struct {
	cfg            config.OIDCConfig
	provider       *oidc.Provider
	oauth2Config   *oauth2.Config
	verifier       *oidc.IDTokenVerifier
	allowedDomains map[string]struct{}
	allowedRoles   map[string]struct{}
	adminRoles     map[string]struct{}
}

func NewOIDCProvider(ctx context.Context, cfg config.OIDCConfig) (*OIDCProvider, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}

	return &OIDCProvider{
		cfg:      cfg,
		provider: provider,
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
		},
		verifier:       provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		allowedDomains: lowerSet(cfg.AllowedDomains),
		allowedRoles:   lowerSet(cfg.AllowedRoles),
		adminRoles:     lowerSet(cfg.AdminRoles),
	}, nil
}

func (p *OIDCProvider) AuthCodeURL(state string, nonce string) string {
	var opts []oauth2.AuthCodeOption
	if nonce != "" {
		opts = append(opts, oidc.Nonce(nonce))
	}
	return p.oauth2Config.AuthCodeURL(state, opts...)
}

func (p *OIDCProvider) Exchange(ctx context.Context, code string, expectedNonce string) (*OIDCIdentity, error) {
	timeout := p.cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange auth code: %w", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, errors.New("oidc: missing id_token in token response")
	}
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}
	if expectedNonce != "" && idToken.Nonce != expectedNonce {
		return nil, errors.New("oidc: nonce mismatch")
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("parse id token claims: %w", err)
	}

	identity := &OIDCIdentity{Issuer: idToken.Issuer, Subject: idToken.Subject}
	fillIdentity(identity, claims)
	identity.Roles = rolesFromClaims(claims, p.cfg.RolesClaim)

	if identity.Email == "" || (p.cfg.RolesClaim != "" && len(identity.Roles) == 0) {
		info, err := p.provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
		if err != nil {
			return nil, fmt.Errorf("fetch userinfo: %w", err)
		}
		var extra map[string]any
		if err := info.Claims(&extra); err != nil {
			return nil, fmt.Errorf("parse userinfo claims: %w", err)
		}
		fillIdentity(identity, extra)
		if len(identity.Roles) == 0 {
			identity.Roles = rolesFromClaims(extra, p.cfg.RolesClaim)
		}
	}
	if identity.Email == "" {
		return nil, errors.New("oidc: email not present in claims")
	}

	if err := p.applyRules(identity); err != nil {
		return nil, err
	}

	identity.MetadataJSON, err = json.Marshal(map[string]any{
		"email":         identity.Email,
		"emailVerified": identity.EmailVerified,
		"name":          identity.Name,
		"preferredName": identity.PreferredName,
		"expiry":        token.Expiry,
		"roles":         identity.Roles,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal claims: %w", err)
	}
	return identity, nil
}

// applyRules enforces the domain allow-list and role requirements, then
// derives the admin flag from the configured admin roles.
func (p *OIDCProvider) applyRules(identity *OIDCIdentity) error {
	if len(p.allowedDomains) > 0 {
		domain, err := emailDomain(identity.Email)
		if err != nil {
			return err
		}
		if _, ok := p.allowedDomains[domain]; !ok {
			return fmt.Errorf("%w: email domain %s not permitted", ErrOIDCRejected, domain)
		}
	}
	if len(p.allowedRoles) > 0 && !anyRoleIn(identity.Roles, p.allowedRoles) {
		return fmt.Errorf("%w: user missing required role", ErrOIDCRejected)
	}
	if len(p.adminRoles) > 0 {
		identity.IsAdmin = anyRoleIn(identity.Roles, p.adminRoles)
	}
	return nil
}

// HasAdminRoles reports whether the admin flag is driven by provider roles.
func (p *OIDCProvider) HasAdminRoles() bool {
	return len(p.adminRoles) > 0
}

func fillIdentity(identity *OIDCIdentity, claims map[string]any) {
	if identity.Email == "" {
		identity.Email, _ = claims["email"].(string)
		identity.EmailVerified, _ = claims["email_verified"].(bool)
	}
	if identity.Name == "" {
		identity.Name, _ = claims["name"].(string)
	}
	if identity.PreferredName == "" {
		identity.PreferredName, _ = claims["preferred_username"].(string)
	}
}

func emailDomain(email string) (string, error) {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return "", fmt.Errorf("invalid email address %q", email)
	}
	domain := strings.ToLower(strings.TrimSpace(email[at+1:]))
	if domain == "" {
		return "", fmt.Errorf("invalid email domain %q", email)
	}
	return domain, nil
}

// rolesFromClaims reads field as a string, a list of strings, or a map of
// role name to boolean (Keycloak style).
func rolesFromClaims(claims map[string]any, field string) []string {
	field = strings.TrimSpace(field)
	if field == "" || len(claims) == 0 {
		return nil
	}
	var raw []string
	switch v := claims[field].(type) {
	case string:
		raw = []string{v}
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	case map[string]any:
		for key, enabled := range v {
			if b, ok := enabled.(bool); ok && b {
				raw = append(raw, key)
			}
		}
	}

	seen := make(map[string]struct{}, len(raw))
	var roles []string
	for _, r := range raw {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		roles = append(roles, r)
	}
	return roles
}

func lowerSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

func anyRoleIn(roles []string, set map[string]struct{}) bool {
	for _, role := range roles {
		if _, ok := set[role]; ok {
			return true
		}
	}
	return false
}
