package tokensigner

import (
	"encoding/base64"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tendant/simple-idm-switchuser/pkg/config"
	"github.com/tendant/simple-idm-switchuser/pkg/errors"
	"github.com/tendant/simple-idm-switchuser/pkg/token"
)

const defaultExpiry = 30 * time.Minute

// Claims carries a serialized token inside a JWT
type Claims struct {
	Token        string `json:"tok"`
	Impersonator string `json:"imp,omitempty"`
	FirewallName string `json:"fwn,omitempty"`
	jwt.RegisteredClaims
}

// Signer seals tokens into HS256 JWTs and opens them again
type Signer struct {
	secret []byte
	issuer string
	expiry time.Duration
	now    func() time.Time
}

// Option configures a Signer
type Option func(*Signer)

// WithExpiry sets how long a sealed token stays valid.
// Accepts either time.Duration or string (e.g., "30m", "1h")
func WithExpiry(expiry interface{}) Option {
	return func(s *Signer) {
		if d, err := config.ParseDurationValue(expiry); err == nil && d > 0 {
			s.expiry = d
		} else if err != nil {
			slog.Error("Failed to parse token expiry", "err", err, "value", expiry)
		}
	}
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.now = now
	}
}

// NewSigner creates a Signer
func NewSigner(secret, issuer string, opts ...Option) *Signer {
	s := &Signer{
		secret: []byte(secret),
		issuer: issuer,
		expiry: defaultExpiry,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seal serializes t and signs it. It returns the JWT and its expiry.
func (s *Signer) Seal(t token.Token) (string, time.Time, error) {
	payload, err := token.Serialize(t)
	if err != nil {
		return "", time.Time{}, err
	}

	now := s.now().UTC()
	claims := Claims{
		Token:        base64.RawURLEncoding.EncodeToString(payload),
		FirewallName: t.FirewallName(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Minute)),
			Issuer:    s.issuer,
			Subject:   t.UserIdentifier(),
			ID:        uuid.New().String(),
		},
	}
	if sw, ok := t.(*token.SwitchUserToken); ok {
		claims.Impersonator = sw.Impersonator()
	}

	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		slog.Error("Failed sign JWT Claim string!", "err", err)
		return "", time.Time{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to sign token")
	}
	return ss, claims.ExpiresAt.Time, nil
}

// Open verifies a sealed token and decodes the token inside it.
// Signature and expiry failures are TOKEN_INVALID; a verified JWT whose
// payload cannot be decoded is CORRUPT_TOKEN_DATA.
func (s *Signer) Open(tokenStr string) (token.Token, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		slog.Error("Failed parse JWT string!", "err", err)
		return nil, errors.Wrap(err, errors.ErrCodeTokenInvalid, "invalid token signature or claims")
	}

	payload, err := base64.RawURLEncoding.DecodeString(claims.Token)
	if err != nil {
		return nil, errors.CorruptTokenData(err, "token payload is not base64")
	}
	t, err := token.Deserialize(payload)
	if err != nil {
		return nil, err
	}
	if t.UserIdentifier() != claims.Subject {
		return nil, errors.CorruptTokenData(nil, "token payload does not match subject")
	}
	return t, nil
}
