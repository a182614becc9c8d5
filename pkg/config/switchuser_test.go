package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-idm-switchuser/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "main", cfg.Firewall.Name)
	assert.Equal(t, "ROLE_ALLOWED_TO_SWITCH", cfg.Firewall.SwitchRole)
	assert.Equal(t, "30m", cfg.Signer.Expiry)
	assert.Equal(t, "switch_user_token", cfg.Signer.CookieName)
	assert.Equal(t, "jwt", cfg.Store.Transport)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, 1024, cfg.Store.Size)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 10, cfg.RateLimit.LoginPerMinute)

	users, err := cfg.Seed.ParseUsers()
	require.NoError(t, err)
	assert.Len(t, users, 3)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("FIREWALL_NAME", "admin_area")
	t.Setenv("JWT_EXPIRY", "1h")
	t.Setenv("TOKEN_TRANSPORT", "session")
	t.Setenv("TOKEN_STORE_TYPE", "file")
	t.Setenv("TOKEN_STORE_SIZE", "16")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "admin_area", cfg.Firewall.Name)
	assert.Equal(t, "session", cfg.Store.Transport)
	assert.Equal(t, "file", cfg.Store.Type)
	assert.Equal(t, 16, cfg.Store.Size)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())

	expiry, err := ParseDurationValue(cfg.Signer.Expiry)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, expiry)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Firewall: FirewallConfig{Name: "main"},
			Signer:   SignerConfig{Secret: "secret", Expiry: "30m"},
			Store:    StoreConfig{Transport: "jwt", Type: "memory"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty firewall", func(c *Config) { c.Firewall.Name = "" }},
		{"empty secret", func(c *Config) { c.Signer.Secret = "" }},
		{"bad expiry", func(c *Config) { c.Signer.Expiry = "soon" }},
		{"bad transport", func(c *Config) { c.Store.Transport = "carrier-pigeon" }},
		{"bad store", func(c *Config) { c.Store.Type = "postgres" }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidConfiguration), "got %v", err)
		})
	}
}

func TestConfig_ValidateProductionSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	cfg := Config{
		Firewall: FirewallConfig{Name: "main"},
		Signer:   SignerConfig{Secret: defaultSecret, Expiry: "30m"},
		Store:    StoreConfig{Transport: "jwt", Type: "memory"},
	}
	assert.True(t, errors.IsCode(cfg.Validate(), errors.ErrCodeInvalidConfiguration))

	cfg.Signer.Secret = "a-real-secret"
	assert.NoError(t, cfg.Validate())
}

func TestSeedConfig_ParseUsers(t *testing.T) {
	users, err := SeedConfig{Users: "admin:pw:ROLE_ADMIN|ROLE_ALLOWED_TO_SWITCH, john:pw2 ,jane:p:w:ROLE_USER"}.ParseUsers()
	require.NoError(t, err)
	require.Len(t, users, 3)

	assert.Equal(t, SeedUser{Username: "admin", Password: "pw", Roles: []string{"ROLE_ADMIN", "ROLE_ALLOWED_TO_SWITCH"}}, users[0])
	assert.Equal(t, "john", users[1].Username)
	assert.Empty(t, users[1].Roles)
	// Only the first two colons separate fields
	assert.Equal(t, "p", users[2].Password)
	assert.Equal(t, []string{"w:ROLE_USER"}, users[2].Roles)

	_, err = SeedConfig{Users: "nopassword"}.ParseUsers()
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidConfiguration))

	users, err = SeedConfig{}.ParseUsers()
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestSeedConfig_ParseDelegations(t *testing.T) {
	delegations, err := SeedConfig{Delegations: "john:support, jane:support"}.ParseDelegations()
	require.NoError(t, err)
	assert.Equal(t, []SeedDelegation{{"john", "support"}, {"jane", "support"}}, delegations)

	_, err = SeedConfig{Delegations: "john"}.ParseDelegations()
	assert.Error(t, err)
}
