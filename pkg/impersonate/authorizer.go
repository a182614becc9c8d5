package impersonate

import (
	"context"
	"fmt"

	"github.com/tendant/simple-idm-switchuser/pkg/token"
)

// Authorizer decides whether the holder of current may switch to target
type Authorizer interface {
	CanSwitch(ctx context.Context, current token.Token, target *token.User) (bool, error)
}

// RoleAuthorizer allows tokens holding Role to switch to anyone
type RoleAuthorizer struct {
	Role string
}

func (a RoleAuthorizer) CanSwitch(ctx context.Context, current token.Token, target *token.User) (bool, error) {
	role := a.Role
	if role == "" {
		role = RoleAllowedToSwitch
	}
	return current.HasRole(role), nil
}

// DelegationAuthorizer allows a switch when the target delegated to the current user
type DelegationAuthorizer struct {
	Repository DelegationRepository
}

func (a DelegationAuthorizer) CanSwitch(ctx context.Context, current token.Token, target *token.User) (bool, error) {
	ok, err := a.Repository.IsDelegated(ctx, target.Identifier(), current.UserIdentifier())
	if err != nil {
		return false, fmt.Errorf("error checking delegation: %w", err)
	}
	return ok, nil
}

// AnyAuthorizer allows a switch when any of its authorizers does
type AnyAuthorizer []Authorizer

func (a AnyAuthorizer) CanSwitch(ctx context.Context, current token.Token, target *token.User) (bool, error) {
	for _, authorizer := range a {
		ok, err := authorizer.CanSwitch(ctx, current, target)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
