package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-idm-switchuser/pkg/config"
	"github.com/tendant/simple-idm-switchuser/pkg/delegate"
	"github.com/tendant/simple-idm-switchuser/pkg/errors"
	"github.com/tendant/simple-idm-switchuser/pkg/impersonate"
	"github.com/tendant/simple-idm-switchuser/pkg/impersonate/api"
	"github.com/tendant/simple-idm-switchuser/pkg/ratelimit"
	"github.com/tendant/simple-idm-switchuser/pkg/tokensigner"
	"github.com/tendant/simple-idm-switchuser/pkg/tokenstore"
	"github.com/tendant/simple-idm-switchuser/pkg/userprovider"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	provider := userprovider.NewInMemoryProvider()
	delegations, err := delegate.NewDelegationRepository("file", delegate.RepositoryConfig{
		DataDir:    cfg.Delegation.DataDir,
		UserLoader: provider,
	})
	if err != nil {
		slog.Error("Failed creating delegation repository", "dir", cfg.Delegation.DataDir, "err", err)
		os.Exit(1)
	}
	if err := seed(context.Background(), cfg.Seed, provider, delegations); err != nil {
		slog.Error("Failed seeding users", "err", err)
		os.Exit(1)
	}

	service := impersonate.NewService(provider, impersonate.AnyAuthorizer{
		impersonate.RoleAuthorizer{Role: cfg.Firewall.SwitchRole},
		impersonate.DelegationAuthorizer{Repository: delegations},
	})

	transport, err := newTransport(cfg)
	if err != nil {
		slog.Error("Failed creating token transport", "transport", cfg.Store.Transport, "err", err)
		os.Exit(1)
	}

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	var opts []api.HandleOption
	if cfg.RateLimit.Enabled {
		limiter, err := newRateLimiter(cfg.RateLimit)
		if err != nil {
			slog.Error("Failed creating rate limiter", "err", err)
			os.Exit(1)
		}
		opts = append(opts, api.WithMiddlewares(limiter.Handler))
	}

	api.Routes(server.R, api.NewHandle(service, provider, transport, cfg.Firewall.Name, opts...))

	slog.Info("Starting switch user server", "firewall", cfg.Firewall.Name, "transport", cfg.Store.Transport)
	server.Run()
}

func newTransport(cfg config.Config) (api.Transport, error) {
	cookies := tokensigner.NewCookieSetter(cfg.Signer.CookieSecure)
	if cfg.Store.Transport == "session" {
		store, err := tokenstore.NewStore(cfg.Store.Type, tokenstore.RepositoryConfig{DataDir: cfg.Store.DataDir, Size: cfg.Store.Size})
		if err != nil {
			return nil, err
		}
		return api.NewSessionTransport(store, cookies, ""), nil
	}

	signer := tokensigner.NewSigner(cfg.Signer.Secret, cfg.Signer.Issuer, tokensigner.WithExpiry(cfg.Signer.Expiry))
	return api.NewSignedCookieTransport(signer, cookies, cfg.Signer.CookieName), nil
}

func newRateLimiter(cfg config.RateLimitConfig) (*ratelimit.Middleware, error) {
	perSecond := func(perMinute int) float64 { return float64(perMinute) / 60.0 }
	return ratelimit.NewMiddleware(&ratelimit.Config{
		PerIPEnabled:      true,
		PerIPCapacity:     cfg.PerIPPerMinute,
		PerIPRefillRate:   perSecond(cfg.PerIPPerMinute),
		PerUserEnabled:    true,
		PerUserCapacity:   cfg.PerUserPerMinute,
		PerUserRefillRate: perSecond(cfg.PerUserPerMinute),
		UserKey:           api.ActingUser,
		EndpointLimits: map[string]ratelimit.EndpointLimit{
			"POST /login":       {Capacity: cfg.LoginPerMinute, RefillRate: perSecond(cfg.LoginPerMinute)},
			"POST /impersonate": {Capacity: cfg.ImpersonatePerMinute, RefillRate: perSecond(cfg.ImpersonatePerMinute)},
		},
		IncludeHeaders: true,
	})
}

func seed(ctx context.Context, cfg config.SeedConfig, provider *userprovider.InMemoryProvider, delegations delegate.DelegationRepository) error {
	users, err := cfg.ParseUsers()
	if err != nil {
		return err
	}
	for _, u := range users {
		if err := provider.AddUser(u.Username, u.Password, u.Roles...); err != nil {
			return err
		}
		slog.Info("Seeded user", "username", u.Username, "roles", u.Roles)
	}

	pairs, err := cfg.ParseDelegations()
	if err != nil {
		return err
	}
	for _, d := range pairs {
		err := delegations.AddDelegation(ctx, d.Delegator, d.Delegatee)
		if err != nil && !errors.IsCode(err, errors.ErrCodeAlreadyExists) {
			return err
		}
	}
	return nil
}
