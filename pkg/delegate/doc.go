// Package delegate stores delegation records: which users may impersonate
// which other users.
//
// A record names a delegator (the user who may be impersonated) and a
// delegatee (the user allowed to switch into the delegator). The switch-user
// flow consults the repository through impersonate.DelegationAuthorizer.
//
// # Basic Usage
//
//	repo, err := delegate.NewDelegationRepository("file", delegate.RepositoryConfig{
//		DataDir:    "./data",
//		UserLoader: provider,
//	})
//
//	// Let support@example.com act as john
//	err = repo.AddDelegation(ctx, "john", "support@example.com")
//
//	ok, err := repo.IsDelegated(ctx, "john", "support@example.com")
//
// Records are persisted to delegations.json in DataDir and rewritten
// atomically on every change.
package delegate
