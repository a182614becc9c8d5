// Package config loads the switch-user service configuration from the
// environment.
//
// Values are read with cleanenv using `env` and `env-default` struct tags:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    // err carries INVALID_CONFIGURATION
//	}
//
// # Token transport
//
// TOKEN_TRANSPORT selects how tokens travel between requests:
//   - jwt: the serialized token is sealed into a signed cookie (JWT_SECRET, JWT_EXPIRY)
//   - session: the token is kept in a store (TOKEN_STORE_TYPE memory or file)
//     and only a session ID is sent as a cookie
//
// # Seed data
//
// SEED_USERS and SEED_DELEGATIONS populate the in-memory user provider and
// delegation repository of the demo server. See SeedConfig for the format.
//
// # Environments
//
// APP_ENV selects the deployment environment. In production the default
// JWT_SECRET is rejected.
package config
