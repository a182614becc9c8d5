package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-idm-switchuser/pkg/errors"
)

func TestNewAuthenticationToken(t *testing.T) {
	t.Run("authenticated when roles are granted", func(t *testing.T) {
		tok, err := NewAuthenticationToken(Username("user"), "foo", "provider-key", []string{"ROLE_ADMIN"})
		require.NoError(t, err)

		assert.True(t, tok.IsAuthenticated())
		assert.Equal(t, "user", tok.UserIdentifier())
		assert.Equal(t, "foo", tok.Credentials())
		assert.Equal(t, "provider-key", tok.FirewallName())
	})

	t.Run("unauthenticated without roles", func(t *testing.T) {
		tok, err := NewAuthenticationToken(Username("user"), "foo", "provider-key", nil)
		require.NoError(t, err)

		assert.False(t, tok.IsAuthenticated())
		assert.Empty(t, tok.RoleNames())
	})

	t.Run("empty firewall name", func(t *testing.T) {
		tok, err := NewAuthenticationToken(Username("user"), "foo", "", []string{"ROLE_USER"})
		assert.Nil(t, tok)
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidConfiguration))
	})

	t.Run("nil principal", func(t *testing.T) {
		_, err := NewAuthenticationToken(nil, "foo", "main", []string{"ROLE_USER"})
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidConfiguration))
	})
}

type badgeNumber int

func (badgeNumber) Identifier() string { return "badge" }

func TestNewAuthenticationToken_RejectsUnencodablePrincipals(t *testing.T) {
	tests := []struct {
		name      string
		principal Principal
	}{
		{"empty username", Username("")},
		{"user without username", &User{Roles: []string{"ROLE_USER"}}},
		{"nil user", (*User)(nil)},
		{"unsupported principal type", badgeNumber(7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := NewAuthenticationToken(tt.principal, "foo", "main", []string{"ROLE_USER"})
			assert.Nil(t, tok)
			assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidConfiguration), "got %v", err)
		})
	}
}

func TestAuthenticationToken_SetUserIgnoresInvalidPrincipal(t *testing.T) {
	tok, err := NewAuthenticationToken(Username("user"), nil, "main", []string{"ROLE_USER"})
	require.NoError(t, err)

	tok.SetUser(nil)
	tok.SetUser(Username(""))
	tok.SetUser((*User)(nil))
	assert.Equal(t, Username("user"), tok.User())

	// Whatever SetUser accepted still round-trips.
	decoded, err := Deserialize(mustSerialize(t, tok))
	require.NoError(t, err)
	assert.Equal(t, "user", decoded.UserIdentifier())
}

func TestAuthenticationToken_RoleNames(t *testing.T) {
	tok, err := NewAuthenticationToken(Username("user"), nil, "main", []string{"ROLE_B", "ROLE_A", "ROLE_B", "ROLE_C", "ROLE_A"})
	require.NoError(t, err)

	assert.Equal(t, []string{"ROLE_B", "ROLE_A", "ROLE_C"}, tok.RoleNames())
	assert.True(t, tok.HasRole("ROLE_C"))

	blank, err := NewAuthenticationToken(Username("user"), nil, "main", []string{"", "ROLE_USER", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"ROLE_USER"}, blank.RoleNames())
	assert.Equal(t, []string{"ROLE_USER"}, roundTrip(t, blank).RoleNames())

	empty, err := NewAuthenticationToken(Username("user"), nil, "main", []string{""})
	require.NoError(t, err)
	assert.False(t, empty.IsAuthenticated())
	assert.False(t, tok.HasRole("ROLE_D"))

	// Callers get a copy.
	names := tok.RoleNames()
	names[0] = "ROLE_HACKED"
	assert.Equal(t, "ROLE_B", tok.RoleNames()[0])
}

func TestAuthenticationToken_SetUserKeepsState(t *testing.T) {
	tok, err := NewAuthenticationToken(Username("user"), "secret", "main", []string{"ROLE_USER"})
	require.NoError(t, err)

	tok.SetUser(&User{Username: "reloaded", Roles: []string{"ROLE_OTHER"}})

	assert.Equal(t, "reloaded", tok.UserIdentifier())
	assert.True(t, tok.IsAuthenticated())
	assert.Equal(t, []string{"ROLE_USER"}, tok.RoleNames())
	assert.Equal(t, "secret", tok.Credentials())
	assert.Equal(t, "main", tok.FirewallName())
}

func TestAuthenticationToken_SetAuthenticated(t *testing.T) {
	tok, err := NewAuthenticationToken(Username("user"), nil, "main", []string{"ROLE_USER"})
	require.NoError(t, err)

	tok.SetAuthenticated(false)
	assert.False(t, tok.IsAuthenticated())

	tok.SetUser(Username("other"))
	assert.False(t, tok.IsAuthenticated(), "SetUser must not re-authenticate")

	tok.SetAuthenticated(true)
	assert.True(t, tok.IsAuthenticated())
}

func TestAuthenticationToken_EraseCredentials(t *testing.T) {
	hash := "$2a$10$hash"
	user := &User{Username: "user", Password: &hash}
	tok, err := NewAuthenticationToken(user, map[string]any{"otp": "123456"}, "main", []string{"ROLE_USER"})
	require.NoError(t, err)

	tok.EraseCredentials()
	assert.Nil(t, tok.Credentials())

	tok.EraseCredentials()
	assert.Nil(t, tok.Credentials())

	assert.True(t, tok.IsAuthenticated())
	assert.Equal(t, []string{"ROLE_USER"}, tok.RoleNames())
	require.NotNil(t, user.Password)
	assert.Equal(t, hash, *user.Password, "the principal is never modified")
}

func TestAuthenticationToken_Clone(t *testing.T) {
	user := &User{Username: "user", Roles: []string{"ROLE_USER"}}
	tok, err := NewAuthenticationToken(user, map[string]any{"nested": []any{"a"}}, "main", []string{"ROLE_USER"})
	require.NoError(t, err)

	clone := tok.Clone()
	clone.SetAuthenticated(false)
	clone.User().(*User).Roles[0] = "ROLE_CHANGED"
	clone.Credentials().(map[string]any)["nested"].([]any)[0] = "b"

	assert.True(t, tok.IsAuthenticated())
	assert.Equal(t, "ROLE_USER", user.Roles[0])
	assert.Equal(t, "a", tok.Credentials().(map[string]any)["nested"].([]any)[0])
}

func TestAuthenticationToken_String(t *testing.T) {
	tok, err := NewAuthenticationToken(Username("admin"), nil, "main", []string{"ROLE_USER", "ROLE_ADMIN"})
	require.NoError(t, err)

	assert.Equal(t, `AuthenticationToken(user="admin", authenticated=true, roles="ROLE_USER, ROLE_ADMIN")`, tok.String())
}

func TestSameRoles(t *testing.T) {
	a, err := NewAuthenticationToken(Username("a"), nil, "main", []string{"ROLE_ADMIN", "ROLE_ALLOWED_TO_SWITCH"})
	require.NoError(t, err)
	b, err := NewAuthenticationToken(Username("b"), nil, "main", []string{"ROLE_ALLOWED_TO_SWITCH", "ROLE_ADMIN"})
	require.NoError(t, err)
	c, err := NewAuthenticationToken(Username("c"), nil, "main", []string{"ROLE_ADMIN"})
	require.NoError(t, err)

	assert.True(t, SameRoles(a, b))
	assert.False(t, SameRoles(a, c))
	assert.NotEqual(t, a.RoleNames(), b.RoleNames())
}

func TestUser_Clone(t *testing.T) {
	hash, salt := "hash", "salt"
	user := &User{Username: "john", Password: &hash, Salt: &salt, Roles: []string{"ROLE_USER"}, DisplayName: "John"}

	clone := user.Clone()
	require.NotNil(t, clone)
	assert.Equal(t, user, clone)

	*clone.Password = "changed"
	clone.Roles[0] = "ROLE_ADMIN"
	assert.Equal(t, "hash", *user.Password)
	assert.Equal(t, "ROLE_USER", user.Roles[0])

	var nilUser *User
	assert.Nil(t, nilUser.Clone())
	assert.Equal(t, "", nilUser.Identifier())
}
