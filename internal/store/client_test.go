package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ncecere/tenant_console/internal/config"
)

// Port 1 is never listening; construction must succeed anyway because the
// pool does not dial until the first query.
const unreachableURL = "postgres://console@127.0.0.1:1/console?sslmode=disable"

func TestNewServiceRoleClientRequiresURLAndKey(t *testing.T) {
	cases := []struct {
		name      string
		url       string
		key       string
		available bool
	}{
		{name: "both present", url: unreachableURL, key: "service-secret", available: true},
		{name: "key missing", url: unreachableURL, key: "", available: false},
		{name: "url missing", url: "", key: "service-secret", available: false},
		{name: "both missing", url: "", key: "", available: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, err := NewServiceRoleClient(config.StoreConfig{URL: tc.url, ServiceRoleKey: tc.key})
			if tc.available {
				require.NoError(t, err)
				require.NotNil(t, client)
				client.Close()
				return
			}
			require.Nil(t, client)
			require.True(t, errors.Is(err, ErrNotConfigured), "expected ErrNotConfigured, got %v", err)
		})
	}
}

func TestNewServiceRoleClientTreatsWhitespaceAsMissing(t *testing.T) {
	client, err := NewServiceRoleClient(config.StoreConfig{URL: "  ", ServiceRoleKey: "secret"})
	require.Nil(t, client)
	require.ErrorIs(t, err, ErrNotConfigured)

	client, err = NewServiceRoleClient(config.StoreConfig{URL: unreachableURL, ServiceRoleKey: "\t"})
	require.Nil(t, client)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewUserScopedClientRequiresAnonKey(t *testing.T) {
	client, err := NewUserScopedClient(config.StoreConfig{URL: unreachableURL, ServiceRoleKey: "service-secret"})
	require.Nil(t, client)
	require.ErrorIs(t, err, ErrNotConfigured)

	client, err = NewUserScopedClient(config.StoreConfig{URL: unreachableURL, AnonKey: "anon-secret"})
	require.NoError(t, err)
	require.NotNil(t, client)
	client.Close()
}

func TestServiceRoleConnConfigAppliesRoleCredentials(t *testing.T) {
	connCfg, err := ServiceRoleConnConfig(config.StoreConfig{
		URL:             unreachableURL,
		ServiceRoleKey:  "service-secret",
		ServiceRoleUser: "service_role",
	})
	require.NoError(t, err)
	require.Equal(t, "service_role", connCfg.User)
	require.Equal(t, "service-secret", connCfg.Password)
	require.Equal(t, applicationName, connCfg.RuntimeParams["application_name"])
}

func TestServiceRoleConnConfigKeepsURLUserWhenUnset(t *testing.T) {
	connCfg, err := ServiceRoleConnConfig(config.StoreConfig{URL: unreachableURL, ServiceRoleKey: "k"})
	require.NoError(t, err)
	require.Equal(t, "console", connCfg.User)
}

func TestRolePoolConfigIsLazy(t *testing.T) {
	poolCfg, err := rolePoolConfig(config.StoreConfig{URL: unreachableURL, MaxConns: 3}, "", "k", "store.service_role_key")
	require.NoError(t, err)
	require.Equal(t, int32(0), poolCfg.MinConns)
	require.Equal(t, int32(3), poolCfg.MaxConns)
}
