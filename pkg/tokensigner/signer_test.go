package tokensigner

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-idm-switchuser/pkg/errors"
	"github.com/tendant/simple-idm-switchuser/pkg/token"
)

func newSwitchToken(t *testing.T) *token.SwitchUserToken {
	t.Helper()
	original, err := token.NewAuthenticationToken(token.Username("user"), "foo", "provider-key", []string{"ROLE_ADMIN", "ROLE_ALLOWED_TO_SWITCH"})
	require.NoError(t, err)
	tok, err := token.NewSwitchUserToken(token.Username("admin"), "bar", "provider-key", []string{"ROLE_USER"}, original,
		token.WithOriginatedFromURI("https://example.com/blog"))
	require.NoError(t, err)
	return tok
}

func TestSigner_SealAndOpen(t *testing.T) {
	signer := NewSigner("test-secret", "test-issuer")

	sealed, expiry, err := signer.Seal(newSwitchToken(t))
	require.NoError(t, err)
	assert.NotEmpty(t, sealed)
	assert.WithinDuration(t, time.Now().UTC().Add(30*time.Minute), expiry, time.Second)

	opened, err := signer.Open(sealed)
	require.NoError(t, err)

	sw, ok := opened.(*token.SwitchUserToken)
	require.True(t, ok)
	assert.Equal(t, "admin", sw.UserIdentifier())
	assert.Equal(t, "bar", sw.Credentials())
	assert.Equal(t, []string{"ROLE_USER"}, sw.RoleNames())
	assert.Equal(t, "https://example.com/blog", *sw.OriginatedFromURI())
	assert.Equal(t, "user", sw.OriginalToken().UserIdentifier())
}

func TestSigner_Claims(t *testing.T) {
	signer := NewSigner("test-secret", "test-issuer")
	sealed, _, err := signer.Seal(newSwitchToken(t))
	require.NoError(t, err)

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(sealed, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)

	assert.Equal(t, "admin", claims.Subject)
	assert.Equal(t, "user", claims.Impersonator)
	assert.Equal(t, "provider-key", claims.FirewallName)
	assert.Equal(t, "test-issuer", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestSigner_WithExpiry(t *testing.T) {
	tok, err := token.NewAuthenticationToken(token.Username("user"), nil, "main", []string{"ROLE_USER"})
	require.NoError(t, err)

	_, expiry, err := NewSigner("s", "i", WithExpiry("2h")).Seal(tok)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(2*time.Hour), expiry, time.Second)

	_, expiry, err = NewSigner("s", "i", WithExpiry("not-a-duration")).Seal(tok)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(defaultExpiry), expiry, time.Second)
}

func TestSigner_OpenRejects(t *testing.T) {
	signer := NewSigner("test-secret", "test-issuer")
	sealed, _, err := signer.Seal(newSwitchToken(t))
	require.NoError(t, err)

	t.Run("tampered signature", func(t *testing.T) {
		i := len(sealed) - 5
		replacement := "A"
		if sealed[i] == 'A' {
			replacement = "B"
		}
		_, err := signer.Open(sealed[:i] + replacement + sealed[i+1:])
		assert.True(t, errors.IsCode(err, errors.ErrCodeTokenInvalid))
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewSigner("other-secret", "test-issuer").Open(sealed)
		assert.True(t, errors.IsCode(err, errors.ErrCodeTokenInvalid))
	})

	t.Run("wrong issuer", func(t *testing.T) {
		_, err := NewSigner("test-secret", "other-issuer").Open(sealed)
		assert.True(t, errors.IsCode(err, errors.ErrCodeTokenInvalid))
	})

	t.Run("expired", func(t *testing.T) {
		later := NewSigner("test-secret", "test-issuer", WithClock(func() time.Time {
			return time.Now().Add(time.Hour)
		}))
		_, err := later.Open(sealed)
		assert.True(t, errors.IsCode(err, errors.ErrCodeTokenInvalid))
	})
}

func TestSigner_OpenCorruptPayload(t *testing.T) {
	sign := func(t *testing.T, claims Claims) string {
		t.Helper()
		claims.Issuer = "test-issuer"
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Minute))
		ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		return ss
	}
	signer := NewSigner("test-secret", "test-issuer")

	t.Run("not base64", func(t *testing.T) {
		_, err := signer.Open(sign(t, Claims{Token: "%%%"}))
		assert.True(t, errors.IsCode(err, errors.ErrCodeCorruptTokenData))
	})

	t.Run("undecodable token", func(t *testing.T) {
		payload := base64.RawURLEncoding.EncodeToString([]byte(`{"type":"switch_user","data":[]}`))
		_, err := signer.Open(sign(t, Claims{Token: payload}))
		assert.True(t, errors.IsCode(err, errors.ErrCodeCorruptTokenData))
	})

	t.Run("subject mismatch", func(t *testing.T) {
		payload := base64.RawURLEncoding.EncodeToString([]byte(`{"type":"authentication","data":["john",null,"main",["ROLE_USER"],true]}`))
		claims := Claims{Token: payload}
		claims.Subject = "jane"
		_, err := signer.Open(sign(t, claims))
		assert.True(t, errors.IsCode(err, errors.ErrCodeCorruptTokenData))
	})
}

func TestCookieSetter(t *testing.T) {
	setter := NewCookieSetter(true)
	expire := time.Now().Add(time.Hour)

	rec := httptest.NewRecorder()
	require.NoError(t, setter.SetCookie(rec, "switch_user_token", "value", expire))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "switch_user_token", cookies[0].Name)
	assert.Equal(t, "value", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	rec = httptest.NewRecorder()
	require.NoError(t, setter.ClearCookie(rec, "switch_user_token"))
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}
