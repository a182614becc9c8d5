package token

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tendant/simple-idm-switchuser/pkg/errors"
)

const (
	kindAuthentication = "authentication"
	kindSwitchUser     = "switch_user"
)

// envelope is the persisted form of a token. Data holds positional slots:
//
//	authentication: [principal, credentials, firewallName, roles, authenticated]
//	switch_user:    [principal, credentials, firewallName, roles, authenticated, original, originatedFromUri]
//
// Tokens written before originatedFromUri existed carry six switch_user slots.
type envelope struct {
	Type string            `json:"type"`
	Data []json.RawMessage `json:"data"`
}

// shape matches one revision of a token kind by its slot count.
type shape struct {
	kind   string
	slots  int
	decode func(data []json.RawMessage) (Token, error)
}

// shapes are tried in order, newest revision first. The table is filled in
// init because decodeSwitchUser recurses through Deserialize.
var shapes []shape

func init() {
	shapes = []shape{
		{kind: kindSwitchUser, slots: 7, decode: decodeSwitchUser},
		{kind: kindSwitchUser, slots: 6, decode: decodeSwitchUser},
		{kind: kindAuthentication, slots: 5, decode: decodeAuthentication},
	}
}

// Serialize encodes t, including any nested original token.
func Serialize(t Token) ([]byte, error) {
	var env envelope
	switch tok := t.(type) {
	case *SwitchUserToken:
		data, err := encodeBase(&tok.AuthenticationToken)
		if err != nil {
			return nil, err
		}
		original, err := Serialize(tok.originalToken)
		if err != nil {
			return nil, fmt.Errorf("serialize original token: %w", err)
		}
		uri, err := json.Marshal(tok.originatedFromURI)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInvalidConfiguration, "encode originated from uri")
		}
		env = envelope{Type: kindSwitchUser, Data: append(data, original, uri)}
	case *AuthenticationToken:
		data, err := encodeBase(tok)
		if err != nil {
			return nil, err
		}
		env = envelope{Type: kindAuthentication, Data: data}
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unsupported token type %T", t)
	}

	return json.Marshal(env)
}

// Deserialize decodes data produced by Serialize, including tokens written
// before originatedFromUri was recorded. Any failure is reported as
// CORRUPT_TOKEN_DATA and no token is returned.
func Deserialize(data []byte) (Token, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.CorruptTokenData(err, "malformed token envelope")
	}

	for _, s := range shapes {
		if s.kind != env.Type || s.slots != len(env.Data) {
			continue
		}
		t, err := s.decode(env.Data)
		if err != nil {
			return nil, errors.CorruptTokenData(err, fmt.Sprintf("invalid %s token", env.Type))
		}
		return t, nil
	}

	return nil, errors.CorruptTokenData(nil,
		fmt.Sprintf("no known layout for %q token with %d slots", env.Type, len(env.Data)))
}

func encodeBase(t *AuthenticationToken) ([]json.RawMessage, error) {
	principal, err := encodePrincipal(t.principal)
	if err != nil {
		return nil, err
	}
	values := []any{t.credentials, t.firewallName, t.RoleNames(), t.authenticated}

	data := make([]json.RawMessage, 0, len(values)+1)
	data = append(data, principal)
	for _, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrCodeInvalidConfiguration, "encode token of %q", t.UserIdentifier())
		}
		data = append(data, raw)
	}
	return data, nil
}

func encodePrincipal(p Principal) (json.RawMessage, error) {
	switch v := p.(type) {
	case Username:
		return json.Marshal(string(v))
	case *User:
		if v == nil {
			return nil, errors.InvalidConfiguration("principal must not be nil")
		}
		return json.Marshal(v)
	case nil:
		return nil, errors.InvalidConfiguration("principal must not be nil")
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unsupported principal type %T", p)
	}
}

func decodeAuthentication(data []json.RawMessage) (Token, error) {
	return decodeBase(data)
}

func decodeSwitchUser(data []json.RawMessage) (Token, error) {
	base, err := decodeBase(data[:5])
	if err != nil {
		return nil, err
	}

	if isNull(data[5]) {
		return nil, fmt.Errorf("original token is missing")
	}
	original, err := Deserialize(data[5])
	if err != nil {
		return nil, fmt.Errorf("original token: %w", err)
	}

	t := &SwitchUserToken{
		AuthenticationToken: *base,
		originalToken:       original,
	}
	if len(data) > 6 {
		if err := json.Unmarshal(data[6], &t.originatedFromURI); err != nil {
			return nil, fmt.Errorf("originated from uri: %w", err)
		}
	}
	return t, nil
}

func decodeBase(data []json.RawMessage) (*AuthenticationToken, error) {
	principal, err := decodePrincipal(data[0])
	if err != nil {
		return nil, err
	}

	// Credentials come back in their JSON form: objects as map[string]any
	// and numbers as float64.
	var credentials any
	if err := json.Unmarshal(data[1], &credentials); err != nil {
		return nil, fmt.Errorf("credentials: %w", err)
	}

	var firewallName string
	if err := json.Unmarshal(data[2], &firewallName); err != nil {
		return nil, fmt.Errorf("firewall name: %w", err)
	}
	if firewallName == "" {
		return nil, fmt.Errorf("firewall name is empty")
	}

	var roles []string
	if err := json.Unmarshal(data[3], &roles); err != nil {
		return nil, fmt.Errorf("roles: %w", err)
	}
	for i, r := range roles {
		if r == "" {
			return nil, fmt.Errorf("role %d is empty", i)
		}
	}

	var authenticated *bool
	if err := json.Unmarshal(data[4], &authenticated); err != nil {
		return nil, fmt.Errorf("authenticated flag: %w", err)
	}
	if authenticated == nil {
		return nil, fmt.Errorf("authenticated flag is missing")
	}

	t := newAuthenticationToken(principal, credentials, firewallName, roles)
	t.authenticated = *authenticated
	return t, nil
}

func decodePrincipal(raw json.RawMessage) (Principal, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("principal is empty")
	}

	switch trimmed[0] {
	case '"':
		var name string
		if err := json.Unmarshal(trimmed, &name); err != nil {
			return nil, fmt.Errorf("principal: %w", err)
		}
		if name == "" {
			return nil, fmt.Errorf("principal identifier is empty")
		}
		return Username(name), nil
	case '{':
		user := &User{}
		if err := json.Unmarshal(trimmed, user); err != nil {
			return nil, fmt.Errorf("principal: %w", err)
		}
		if user.Username == "" {
			return nil, fmt.Errorf("principal identifier is empty")
		}
		return user, nil
	default:
		return nil, fmt.Errorf("principal must be a string or an object")
	}
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
