package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRolesFromClaims(t *testing.T) {
	cases := []struct {
		name   string
		claims map[string]any
		want   []string
	}{
		{name: "string", claims: map[string]any{"roles": "Admin"}, want: []string{"admin"}},
		{name: "list", claims: map[string]any{"roles": []any{"Admin", " ops ", 7, "admin"}}, want: []string{"admin", "ops"}},
		{name: "string slice", claims: map[string]any{"roles": []string{"viewer"}}, want: []string{"viewer"}},
		{name: "keycloak map", claims: map[string]any{"roles": map[string]any{"admin": true, "ops": false}}, want: []string{"admin"}},
		{name: "missing", claims: map[string]any{"groups": "admin"}, want: nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, rolesFromClaims(tc.claims, "roles"))
		})
	}
	require.Nil(t, rolesFromClaims(map[string]any{"roles": "admin"}, " "))
}

func TestApplyRules(t *testing.T) {
	p := &OIDCProvider{
		allowedDomains: lowerSet([]string{"Example.com"}),
		allowedRoles:   lowerSet([]string{"staff"}),
		adminRoles:     lowerSet([]string{"Admin"}),
	}
	require.True(t, p.HasAdminRoles())

	admin := &OIDCIdentity{Email: "a@EXAMPLE.com", Roles: []string{"staff", "admin"}}
	require.NoError(t, p.applyRules(admin))
	require.True(t, admin.IsAdmin)

	staff := &OIDCIdentity{Email: "b@example.com", Roles: []string{"staff"}}
	require.NoError(t, p.applyRules(staff))
	require.False(t, staff.IsAdmin)

	require.ErrorIs(t, p.applyRules(&OIDCIdentity{Email: "c@other.org", Roles: []string{"staff"}}), ErrOIDCRejected)
	require.ErrorIs(t, p.applyRules(&OIDCIdentity{Email: "d@example.com"}), ErrOIDCRejected)
	require.Error(t, p.applyRules(&OIDCIdentity{Email: "no-at-sign"}))
}

func TestDisplayName(t *testing.T) {
	require.Equal(t, "Full", (&OIDCIdentity{Name: "Full", PreferredName: "p", Email: "e"}).DisplayName())
	require.Equal(t, "p", (&OIDCIdentity{PreferredName: "p", Email: "e"}).DisplayName())
	require.Equal(t, "e", (&OIDCIdentity{Email: "e"}).DisplayName())
}
