package token

import (
	"fmt"

	"github.com/tendant/simple-idm-switchuser/pkg/errors"
)

// SwitchUserToken is issued while one principal impersonates another. It
// owns the token the impersonator held before the switch.
type SwitchUserToken struct {
	AuthenticationToken

	originalToken     Token
	originatedFromURI *string
}

// SwitchOption configures a SwitchUserToken.
type SwitchOption func(*SwitchUserToken)

// WithOriginatedFromURI records the URI the switch was requested from.
func WithOriginatedFromURI(uri string) SwitchOption {
	return func(t *SwitchUserToken) {
		t.originatedFromURI = &uri
	}
}

// NewSwitchUserToken builds the token for principal acting on behalf of the
// identity in originalToken. The outer roles are independent of the roles
// held by originalToken.
func NewSwitchUserToken(principal Principal, credentials any, firewallName string, roles []string, originalToken Token, opts ...SwitchOption) (*SwitchUserToken, error) {
	base, err := NewAuthenticationToken(principal, credentials, firewallName, roles)
	if err != nil {
		return nil, err
	}
	if isNilToken(originalToken) {
		return nil, errors.InvalidConfiguration("switch user token requires an original token")
	}

	t := &SwitchUserToken{
		AuthenticationToken: *base,
		originalToken:       originalToken,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// isNilToken also catches nil pointers stored in the Token interface.
func isNilToken(t Token) bool {
	switch v := t.(type) {
	case nil:
		return true
	case *AuthenticationToken:
		return v == nil
	case *SwitchUserToken:
		return v == nil
	default:
		return false
	}
}

// OriginalToken returns the pre-switch token. Its authenticated flag and
// roles are unrelated to the outer token's.
func (t *SwitchUserToken) OriginalToken() Token {
	return t.originalToken
}

// OriginatedFromURI returns the URI the switch started from, or nil when the
// switch was not URI-triggered or the token predates the field.
func (t *SwitchUserToken) OriginatedFromURI() *string {
	return t.originatedFromURI
}

// Impersonator returns the identifier of the principal that started the switch.
func (t *SwitchUserToken) Impersonator() string {
	return t.originalToken.UserIdentifier()
}

func (t *SwitchUserToken) Clone() Token {
	clone := &SwitchUserToken{
		AuthenticationToken: *t.AuthenticationToken.clone(),
		originalToken:       t.originalToken.Clone(),
	}
	if t.originatedFromURI != nil {
		uri := *t.originatedFromURI
		clone.originatedFromURI = &uri
	}
	return clone
}

func (t *SwitchUserToken) String() string {
	return fmt.Sprintf("%s, original=%s", t.describe("SwitchUserToken"), t.originalToken)
}

// Unwrap follows original-token links down to the token held before the
// first switch. Tokens that are not switch tokens are returned unchanged.
func Unwrap(t Token) Token {
	for {
		sw, ok := t.(*SwitchUserToken)
		if !ok {
			return t
		}
		t = sw.originalToken
	}
}
