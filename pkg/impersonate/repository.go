package impersonate

import (
	"context"

	"github.com/tendant/simple-idm-switchuser/pkg/token"
)

// UserLoader loads the principal a token is switched to or back from
type UserLoader interface {
	LoadUser(ctx context.Context, username string) (*token.User, error)
}

// DelegationRepository answers whether delegator has allowed delegatee to act as them
type DelegationRepository interface {
	IsDelegated(ctx context.Context, delegator, delegatee string) (bool, error)
}
