package token

import (
	"log/slog"

	"github.com/jinzhu/copier"
)

// Principal is the identity subject of a token: either a bare Username or a
// rich *User loaded by a credential provider.
type Principal interface {
	Identifier() string
}

// Username is a principal known only by its identifier.
type Username string

// Identifier implements Principal.
func (u Username) Identifier() string {
	return string(u)
}

// User is a rich user record. Tokens hold users but never modify them.
type User struct {
	Username    string   `json:"username"`
	Password    *string  `json:"password"` // Credential hash, nil when not exposed
	Salt        *string  `json:"salt"`     // Legacy salt, nil for modern hashes
	Roles       []string `json:"roles"`
	DisplayName string   `json:"display_name,omitempty"`
}

// Identifier implements Principal.
func (u *User) Identifier() string {
	if u == nil {
		return ""
	}
	return u.Username
}

// Clone returns a deep copy of the user.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	clone := &User{}
	if err := copier.CopyWithOption(clone, u, copier.Option{DeepCopy: true}); err != nil {
		slog.Error("Failed to deep copy user, falling back to field copy", "username", u.Username, "err", err)
		*clone = *u
		clone.Roles = append([]string(nil), u.Roles...)
	}
	return clone
}

// clonePrincipal copies principals that carry mutable state. Other
// principals are immutable values and are shared.
func clonePrincipal(p Principal) Principal {
	if u, ok := p.(*User); ok {
		return u.Clone()
	}
	return p
}
