package config

import (
	"fmt"
	"strings"

	"github.com/tendant/simple-idm-switchuser/pkg/errors"
)

// SeedConfig lists the users and delegations a demo server starts with.
//
// SEED_USERS is a comma separated list of username:password:ROLE_A|ROLE_B.
// SEED_DELEGATIONS is a comma separated list of delegator:delegatee.
type SeedConfig struct {
	Users       string `env:"SEED_USERS" env-default:"admin:admin:ROLE_ADMIN|ROLE_ALLOWED_TO_SWITCH,john:john:ROLE_USER,jane:jane:ROLE_USER|ROLE_EDITOR"`
	Delegations string `env:"SEED_DELEGATIONS" env-default:""`
}

type SeedUser struct {
	Username string
	Password string
	Roles    []string
}

type SeedDelegation struct {
	Delegator string
	Delegatee string
}

// ParseUsers parses SEED_USERS
func (c SeedConfig) ParseUsers() ([]SeedUser, error) {
	var users []SeedUser
	for _, entry := range splitAndTrim(c.Users, ",") {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 || parts[0] == "" {
			return nil, errors.InvalidConfiguration(fmt.Sprintf("invalid SEED_USERS entry: %q", entry))
		}
		user := SeedUser{Username: parts[0], Password: parts[1]}
		if len(parts) == 3 {
			user.Roles = splitAndTrim(parts[2], "|")
		}
		users = append(users, user)
	}
	return users, nil
}

// ParseDelegations parses SEED_DELEGATIONS
func (c SeedConfig) ParseDelegations() ([]SeedDelegation, error) {
	var delegations []SeedDelegation
	for _, entry := range splitAndTrim(c.Delegations, ",") {
		parts := splitAndTrim(entry, ":")
		if len(parts) != 2 {
			return nil, errors.InvalidConfiguration(fmt.Sprintf("invalid SEED_DELEGATIONS entry: %q", entry))
		}
		delegations = append(delegations, SeedDelegation{Delegator: parts[0], Delegatee: parts[1]})
	}
	return delegations, nil
}
