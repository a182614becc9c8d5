package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-idm-switchuser/pkg/errors"
	"github.com/tendant/simple-idm-switchuser/pkg/impersonate"
	"github.com/tendant/simple-idm-switchuser/pkg/token"
)

// Authenticator checks credentials and builds the token a session starts with
type Authenticator interface {
	Authenticate(ctx context.Context, firewallName, username, password string) (*token.AuthenticationToken, error)
}

// Handle serves login and switch user endpoints for one firewall
type Handle struct {
	service       *impersonate.Service
	authenticator Authenticator
	transport     Transport
	firewallName  string
	middlewares   []func(http.Handler) http.Handler
}

type HandleOption func(*Handle)

// WithMiddlewares adds middlewares that run after the token is loaded, so
// they can see it through TokenFromContext
func WithMiddlewares(middlewares ...func(http.Handler) http.Handler) HandleOption {
	return func(h *Handle) {
		h.middlewares = append(h.middlewares, middlewares...)
	}
}

// NewHandle creates a new switch user API handler
func NewHandle(service *impersonate.Service, authenticator Authenticator, transport Transport, firewallName string, opts ...HandleOption) *Handle {
	h := &Handle{
		service:       service,
		authenticator: authenticator,
		transport:     transport,
		firewallName:  firewallName,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ActingUser returns the identifier of the user a request acts as, "" when anonymous
func ActingUser(r *http.Request) string {
	if t, ok := TokenFromContext(r.Context()); ok {
		return t.UserIdentifier()
	}
	return ""
}

// Routes mounts the API on r. Every route sees the current token through
// Authenticate; all but /login require it.
func Routes(r chi.Router, h *Handle) {
	r.Group(func(r chi.Router) {
		r.Use(Authenticate(h.transport, h.service))
		r.Use(h.middlewares...)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth)
			r.Get("/whoami", h.WhoAmI)
			r.Post("/impersonate", h.Impersonate)
			r.Post("/impersonate/exit", h.ExitImpersonate)
		})
	})
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ImpersonateRequest struct {
	Username          string `json:"username"`
	OriginatedFromURI string `json:"originated_from_uri,omitempty"`
}

// TokenResponse describes the token a request acts with
type TokenResponse struct {
	Username          string   `json:"username"`
	DisplayName       string   `json:"display_name,omitempty"`
	FirewallName      string   `json:"firewall"`
	Roles             []string `json:"roles"`
	Authenticated     bool     `json:"authenticated"`
	Impersonator      string   `json:"impersonator,omitempty"`
	OriginatedFromURI *string  `json:"originated_from_uri,omitempty"`
	Description       string   `json:"description"`
}

func newTokenResponse(t token.Token) TokenResponse {
	resp := TokenResponse{
		Username:      t.UserIdentifier(),
		FirewallName:  t.FirewallName(),
		Roles:         t.RoleNames(),
		Authenticated: t.IsAuthenticated(),
		Description:   t.String(),
	}
	if user, ok := t.User().(*token.User); ok {
		resp.DisplayName = user.DisplayName
	}
	if sw, ok := t.(*token.SwitchUserToken); ok {
		resp.Impersonator = sw.Impersonator()
		resp.OriginatedFromURI = sw.OriginatedFromURI()
	}
	return resp
}

// Login handles POST /login
func (h *Handle) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		slog.Error("Failed to decode request body", "err", err)
		renderError(w, r, errors.InvalidInput("body", "unable to parse body"))
		return
	}
	if req.Username == "" || req.Password == "" {
		renderError(w, r, errors.InvalidInput("credentials", "username and password are required"))
		return
	}

	t, err := h.authenticator.Authenticate(r.Context(), h.firewallName, req.Username, req.Password)
	if err != nil {
		renderError(w, r, err)
		return
	}
	if err := h.transport.Write(w, r, t); err != nil {
		renderError(w, r, err)
		return
	}

	slog.Info("User logged in", "username", t.UserIdentifier(), "firewall", h.firewallName)
	render.Status(r, http.StatusOK)
	render.JSON(w, r, newTokenResponse(t))
}

// Logout handles POST /logout
func (h *Handle) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.transport.Clear(w, r); err != nil {
		renderError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WhoAmI handles GET /whoami
func (h *Handle) WhoAmI(w http.ResponseWriter, r *http.Request) {
	t, _ := TokenFromContext(r.Context())
	render.JSON(w, r, newTokenResponse(t))
}

// Impersonate handles POST /impersonate. Without an explicit
// originated_from_uri the request's Referer is recorded.
func (h *Handle) Impersonate(w http.ResponseWriter, r *http.Request) {
	current, _ := TokenFromContext(r.Context())

	var req ImpersonateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		slog.Error("Failed to decode request body", "err", err)
		renderError(w, r, errors.InvalidInput("body", "unable to parse body"))
		return
	}
	originURI := req.OriginatedFromURI
	if originURI == "" {
		originURI = r.Referer()
	}

	switched, err := h.service.Switch(r.Context(), current, req.Username, originURI)
	if err != nil {
		renderError(w, r, err)
		return
	}
	if err := h.transport.Write(w, r, switched); err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, newTokenResponse(switched))
}

// ExitImpersonate handles POST /impersonate/exit
func (h *Handle) ExitImpersonate(w http.ResponseWriter, r *http.Request) {
	current, _ := TokenFromContext(r.Context())

	original, err := h.service.Exit(r.Context(), current)
	if err != nil {
		renderError(w, r, err)
		return
	}
	if err := h.transport.Write(w, r, original); err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, newTokenResponse(original))
}
