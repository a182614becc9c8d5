package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-idm-switchuser/pkg/errors"
	"github.com/tendant/simple-idm-switchuser/pkg/token"
	"github.com/tendant/simple-idm-switchuser/pkg/tokensigner"
	"github.com/tendant/simple-idm-switchuser/pkg/tokenstore"
)

const (
	DefaultTokenCookieName   = "switch_user_token"
	DefaultSessionCookieName = "switch_user_session"
	sessionCookieLifetime    = 24 * time.Hour
)

// Transport carries the current token between requests
type Transport interface {
	// Read returns the token attached to r, or an UNAUTHORIZED error when there is none
	Read(r *http.Request) (token.Token, error)
	Write(w http.ResponseWriter, r *http.Request, t token.Token) error
	Clear(w http.ResponseWriter, r *http.Request) error
}

// SignedCookieTransport keeps the whole token in a signed JWT cookie
type SignedCookieTransport struct {
	signer     *tokensigner.Signer
	cookies    tokensigner.CookieSetter
	cookieName string
}

func NewSignedCookieTransport(signer *tokensigner.Signer, cookies tokensigner.CookieSetter, cookieName string) *SignedCookieTransport {
	if cookieName == "" {
		cookieName = DefaultTokenCookieName
	}
	return &SignedCookieTransport{signer: signer, cookies: cookies, cookieName: cookieName}
}

func (c *SignedCookieTransport) Read(r *http.Request) (token.Token, error) {
	cookie, err := r.Cookie(c.cookieName)
	if err != nil || cookie.Value == "" {
		return nil, errors.Unauthorized("no token cookie")
	}
	return c.signer.Open(cookie.Value)
}

func (c *SignedCookieTransport) Write(w http.ResponseWriter, r *http.Request, t token.Token) error {
	sealed, expiresAt, err := c.signer.Seal(t)
	if err != nil {
		return err
	}
	return c.cookies.SetCookie(w, c.cookieName, sealed, expiresAt)
}

func (c *SignedCookieTransport) Clear(w http.ResponseWriter, r *http.Request) error {
	return c.cookies.ClearCookie(w, c.cookieName)
}

// SessionTransport keeps tokens in a server-side store and only a session ID in the cookie
type SessionTransport struct {
	store      tokenstore.Store
	cookies    tokensigner.CookieSetter
	cookieName string
	now        func() time.Time
}

func NewSessionTransport(store tokenstore.Store, cookies tokensigner.CookieSetter, cookieName string) *SessionTransport {
	if cookieName == "" {
		cookieName = DefaultSessionCookieName
	}
	return &SessionTransport{store: store, cookies: cookies, cookieName: cookieName, now: time.Now}
}

func (s *SessionTransport) Read(r *http.Request) (token.Token, error) {
	id, ok := s.sessionID(r)
	if !ok {
		return nil, errors.Unauthorized("no session cookie")
	}
	t, err := s.store.Load(r.Context(), id)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeNotFound) {
			return nil, errors.Wrap(err, errors.ErrCodeUnauthorized, "session expired")
		}
		return nil, err
	}
	return t, nil
}

// Write stores t under a fresh session ID and drops the request's previous
// session. Session IDs never outlive a login or a switch.
func (s *SessionTransport) Write(w http.ResponseWriter, r *http.Request, t token.Token) error {
	id := tokenstore.NewSessionID()
	if err := s.store.Save(r.Context(), id, t); err != nil {
		return err
	}
	if previous, ok := s.sessionID(r); ok {
		if err := s.store.Delete(context.WithoutCancel(r.Context()), previous); err != nil {
			slog.Warn("Failed to delete previous session", "err", err)
		}
	}
	return s.cookies.SetCookie(w, s.cookieName, id, s.now().Add(sessionCookieLifetime))
}

func (s *SessionTransport) Clear(w http.ResponseWriter, r *http.Request) error {
	if id, ok := s.sessionID(r); ok {
		if err := s.store.Delete(context.WithoutCancel(r.Context()), id); err != nil {
			return err
		}
	}
	return s.cookies.ClearCookie(w, s.cookieName)
}

func (s *SessionTransport) sessionID(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil {
		return "", false
	}
	// Unknown formats are treated as no session
	if _, err := uuid.Parse(cookie.Value); err != nil {
		return "", false
	}
	return cookie.Value, true
}
