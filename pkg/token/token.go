package token

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tendant/simple-idm-switchuser/pkg/errors"
)

// Token is the surface authorization code reads to decide access.
type Token interface {
	// User returns the acting principal.
	User() Principal
	// SetUser replaces the acting principal. It never changes the
	// authenticated flag, roles, credentials or firewall name. Principals
	// rejected by NewAuthenticationToken are ignored.
	SetUser(principal Principal)
	// UserIdentifier returns the acting principal's identifier.
	UserIdentifier() string

	// Credentials returns the secret the principal proved itself with.
	// Only JSON-shaped values survive Serialize unchanged: strings, bools,
	// nil, float64, []any and map[string]any. Other values decode as their
	// JSON form, so a struct comes back as map[string]any.
	Credentials() any
	// EraseCredentials drops the credentials. Idempotent.
	EraseCredentials()

	FirewallName() string
	// RoleNames returns the granted roles in insertion order.
	RoleNames() []string
	HasRole(role string) bool

	IsAuthenticated() bool
	SetAuthenticated(authenticated bool)

	// Clone returns a deep copy that shares no mutable state with the receiver.
	Clone() Token
	String() string
}

// AuthenticationToken holds a principal, its credentials and the roles
// granted to it within one firewall.
type AuthenticationToken struct {
	principal     Principal
	credentials   any
	firewallName  string
	roles         []string
	authenticated bool
}

// NewAuthenticationToken builds a token for principal. The token is
// authenticated when at least one role is granted.
func NewAuthenticationToken(principal Principal, credentials any, firewallName string, roles []string) (*AuthenticationToken, error) {
	if err := validatePrincipal(principal); err != nil {
		return nil, err
	}
	if firewallName == "" {
		return nil, errors.InvalidConfiguration("firewall name must not be empty")
	}

	return newAuthenticationToken(principal, credentials, firewallName, roles), nil
}

// validatePrincipal accepts the principals Serialize can encode and
// Deserialize reads back.
func validatePrincipal(principal Principal) error {
	switch p := principal.(type) {
	case nil:
		return errors.InvalidConfiguration("principal must not be nil")
	case *User:
		if p == nil {
			return errors.InvalidConfiguration("principal must not be nil")
		}
	case Username:
	default:
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "unsupported principal type %T", principal)
	}
	if principal.Identifier() == "" {
		return errors.InvalidConfiguration("principal identifier must not be empty")
	}
	return nil
}

func newAuthenticationToken(principal Principal, credentials any, firewallName string, roles []string) *AuthenticationToken {
	names := uniqueRoles(roles)
	return &AuthenticationToken{
		principal:     principal,
		credentials:   credentials,
		firewallName:  firewallName,
		roles:         names,
		authenticated: len(names) > 0,
	}
}

func (t *AuthenticationToken) User() Principal {
	return t.principal
}

func (t *AuthenticationToken) SetUser(principal Principal) {
	if err := validatePrincipal(principal); err != nil {
		slog.Warn("Ignoring invalid principal", "current", t.UserIdentifier(), "err", err)
		return
	}
	t.principal = principal
}

func (t *AuthenticationToken) UserIdentifier() string {
	if t.principal == nil {
		return ""
	}
	return t.principal.Identifier()
}

func (t *AuthenticationToken) Credentials() any {
	return t.credentials
}

func (t *AuthenticationToken) EraseCredentials() {
	t.credentials = nil
}

func (t *AuthenticationToken) FirewallName() string {
	return t.firewallName
}

func (t *AuthenticationToken) RoleNames() []string {
	return append([]string{}, t.roles...)
}

func (t *AuthenticationToken) HasRole(role string) bool {
	for _, r := range t.roles {
		if r == role {
			return true
		}
	}
	return false
}

func (t *AuthenticationToken) IsAuthenticated() bool {
	return t.authenticated
}

func (t *AuthenticationToken) SetAuthenticated(authenticated bool) {
	t.authenticated = authenticated
}

func (t *AuthenticationToken) Clone() Token {
	return t.clone()
}

func (t *AuthenticationToken) clone() *AuthenticationToken {
	return &AuthenticationToken{
		principal:     clonePrincipal(t.principal),
		credentials:   cloneValue(t.credentials),
		firewallName:  t.firewallName,
		roles:         append([]string{}, t.roles...),
		authenticated: t.authenticated,
	}
}

func (t *AuthenticationToken) String() string {
	return t.describe("AuthenticationToken")
}

func (t *AuthenticationToken) describe(kind string) string {
	return fmt.Sprintf("%s(user=%q, authenticated=%t, roles=%q)",
		kind, t.UserIdentifier(), t.authenticated, strings.Join(t.roles, ", "))
}

// SameRoles reports whether a and b grant the same set of roles,
// ignoring order.
func SameRoles(a, b Token) bool {
	left, right := a.RoleNames(), b.RoleNames()
	if len(left) != len(right) {
		return false
	}
	set := make(map[string]struct{}, len(left))
	for _, r := range left {
		set[r] = struct{}{}
	}
	for _, r := range right {
		if _, ok := set[r]; !ok {
			return false
		}
	}
	return true
}

// uniqueRoles drops duplicates and empty names and keeps first-seen order.
func uniqueRoles(roles []string) []string {
	names := make([]string, 0, len(roles))
	seen := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		names = append(names, r)
	}
	return names
}

// cloneValue deep copies the JSON-shaped values credentials decode into.
// Anything else is returned as is.
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[k] = cloneValue(item)
		}
		return m
	case []any:
		s := make([]any, len(val))
		for i, item := range val {
			s[i] = cloneValue(item)
		}
		return s
	default:
		return v
	}
}
