package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/simple-idm-switchuser/pkg/errors"
	"github.com/tendant/simple-idm-switchuser/pkg/token"
)

type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "switchuser context value " + k.name
}

var (
	TokenKey = &contextKey{"Token"}
)

// TokenFromContext returns the token put in ctx by Authenticate
func TokenFromContext(ctx context.Context) (token.Token, bool) {
	t, ok := ctx.Value(TokenKey).(token.Token)
	return t, ok && t != nil
}

// Refresher reloads the acting user of a token
type Refresher interface {
	Refresh(ctx context.Context, current token.Token) error
}

// Authenticate reads the token from transport and puts it in the request
// context. Requests without a token pass through anonymously. An invalid or
// corrupt token is cleared and the request is rejected with 401.
//
// When refresher is not nil the acting user is reloaded on every request.
// Refreshing never changes whether the token is authenticated.
func Authenticate(transport Transport, refresher Refresher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t, err := transport.Read(r)
			if err != nil {
				if errors.IsCode(err, errors.ErrCodeUnauthorized) {
					next.ServeHTTP(w, r)
					return
				}
				slog.Warn("Rejecting request with unreadable token", "err", err, "code", errors.GetCode(err))
				if clearErr := transport.Clear(w, r); clearErr != nil {
					slog.Error("Failed to clear token", "err", clearErr)
				}
				renderError(w, r, err)
				return
			}

			if refresher != nil {
				if err := refresher.Refresh(r.Context(), t); err != nil {
					slog.Warn("Failed to refresh user, logging out", "username", t.UserIdentifier(), "err", err)
					if clearErr := transport.Clear(w, r); clearErr != nil {
						slog.Error("Failed to clear token", "err", clearErr)
					}
					renderError(w, r, errors.Wrap(err, errors.ErrCodeUnauthorized, "user no longer available"))
					return
				}
			}

			ctx := context.WithValue(r.Context(), TokenKey, t)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests without an authenticated token.
// Must be used after Authenticate.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t, ok := TokenFromContext(r.Context())
		if !ok || !t.IsAuthenticated() {
			slog.Debug("Unauthenticated request to protected resource", "path", r.URL.Path)
			renderError(w, r, errors.Unauthorized("authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	status := errors.MapErrorCodeToHTTPStatus(code)
	message := errors.GetMessage(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "path", r.URL.Path, "err", err)
		message = "internal error"
	}
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: message, Code: string(code)})
}
