package impersonate

import (
	"context"
	"log/slog"

	"github.com/tendant/simple-idm-switchuser/pkg/errors"
	"github.com/tendant/simple-idm-switchuser/pkg/token"
)

const (
	// RoleAllowedToSwitch lets a token switch to any user
	RoleAllowedToSwitch = "ROLE_ALLOWED_TO_SWITCH"
	// RolePreviousAdmin is granted to every switch token so authorization
	// code can tell an impersonated session apart
	RolePreviousAdmin = "ROLE_PREVIOUS_ADMIN"
)

// Service switches authenticated tokens to other users and back
type Service struct {
	userLoader UserLoader
	authorizer Authorizer
}

// NewService creates a new impersonation service
func NewService(userLoader UserLoader, authorizer Authorizer) *Service {
	return &Service{
		userLoader: userLoader,
		authorizer: authorizer,
	}
}

// Switch returns a token acting as username on behalf of current. The new
// token owns a copy of current as its original token. originURI may be empty.
//
// A token that already impersonates username is returned unchanged; switching
// again to someone else requires exiting first.
func (s *Service) Switch(ctx context.Context, current token.Token, username, originURI string) (*token.SwitchUserToken, error) {
	if current == nil || !current.IsAuthenticated() {
		return nil, errors.Unauthorized("authentication required to switch user")
	}
	if username == "" {
		return nil, errors.InvalidInput("username", "must not be empty")
	}

	if sw, ok := current.(*token.SwitchUserToken); ok {
		if sw.UserIdentifier() == username {
			return sw, nil
		}
		return nil, errors.Newf(errors.ErrCodeConflict, "already impersonating %s, exit first", sw.UserIdentifier())
	}
	if current.UserIdentifier() == username {
		return nil, errors.InvalidInput("username", "cannot switch to yourself")
	}

	target, err := s.userLoader.LoadUser(ctx, username)
	if err != nil {
		slog.Error("Failed to load switch target", "username", username, "err", err)
		return nil, err
	}

	allowed, err := s.authorizer.CanSwitch(ctx, current, target)
	if err != nil {
		slog.Error("Failed to authorize switch", "impersonator", current.UserIdentifier(), "target", username, "err", err)
		return nil, errors.InternalWrap(err, "failed to authorize switch")
	}
	if !allowed {
		slog.Warn("Switch user denied", "impersonator", current.UserIdentifier(), "target", username)
		return nil, errors.Forbidden("not allowed to switch to " + username)
	}

	roles := append(append([]string{}, target.Roles...), RolePreviousAdmin)
	var opts []token.SwitchOption
	if originURI != "" {
		opts = append(opts, token.WithOriginatedFromURI(originURI))
	}

	switched, err := token.NewSwitchUserToken(target, current.Credentials(), current.FirewallName(), roles, current.Clone(), opts...)
	if err != nil {
		return nil, err
	}

	slog.Info("Switched user", "impersonator", current.UserIdentifier(), "target", username, "firewall", current.FirewallName())
	return switched, nil
}

// Exit ends an impersonation and returns the token held before the switch.
// When the original principal is a rich user it is reloaded so the returned
// token reflects current user details.
func (s *Service) Exit(ctx context.Context, current token.Token) (token.Token, error) {
	sw, ok := current.(*token.SwitchUserToken)
	if !ok {
		return nil, errors.InvalidInput("token", "not impersonating anyone")
	}

	original := sw.OriginalToken().Clone()
	if _, rich := original.User().(*token.User); rich {
		fresh, err := s.userLoader.LoadUser(ctx, original.UserIdentifier())
		if err != nil {
			slog.Error("Failed to reload original user", "username", original.UserIdentifier(), "err", err)
			return nil, err
		}
		original.SetUser(fresh)
	}

	slog.Info("Exited switch user", "impersonator", original.UserIdentifier(), "target", sw.UserIdentifier())
	return original, nil
}

// Refresh reloads the acting user's details into current. The token's
// roles, authentication state and original token are left as they are.
func (s *Service) Refresh(ctx context.Context, current token.Token) error {
	if _, rich := current.User().(*token.User); !rich {
		return nil
	}
	fresh, err := s.userLoader.LoadUser(ctx, current.UserIdentifier())
	if err != nil {
		return err
	}
	current.SetUser(fresh)
	return nil
}

// Impersonator returns who started the impersonation behind t, or "" when t
// is not a switch token.
func Impersonator(t token.Token) string {
	if sw, ok := t.(*token.SwitchUserToken); ok {
		return sw.Impersonator()
	}
	return ""
}
