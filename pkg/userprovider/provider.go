// Package userprovider authenticates users held in memory and loads them as
// token principals.
package userprovider

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tendant/simple-idm-switchuser/pkg/errors"
	"github.com/tendant/simple-idm-switchuser/pkg/token"
	"golang.org/x/crypto/bcrypt"
)

// InMemoryProvider keeps users and their bcrypt password hashes in memory
type InMemoryProvider struct {
	mu               sync.RWMutex
	users            map[string]*token.User
	hashCost         int
	eraseCredentials bool
}

// Option configures an InMemoryProvider
type Option func(*InMemoryProvider)

// WithEraseCredentials erases the submitted password from tokens built by Authenticate
func WithEraseCredentials(erase bool) Option {
	return func(p *InMemoryProvider) {
		p.eraseCredentials = erase
	}
}

// WithHashCost sets the bcrypt cost used by AddUser
func WithHashCost(cost int) Option {
	return func(p *InMemoryProvider) {
		p.hashCost = cost
	}
}

// NewInMemoryProvider creates an empty provider
func NewInMemoryProvider(opts ...Option) *InMemoryProvider {
	p := &InMemoryProvider{
		users:            make(map[string]*token.User),
		hashCost:         bcrypt.DefaultCost,
		eraseCredentials: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddUser hashes password and stores the user, replacing any user with the same name
func (p *InMemoryProvider) AddUser(username, password string, roles ...string) error {
	if username == "" {
		return errors.InvalidInput("username", "must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.hashCost)
	if err != nil {
		return errors.InternalWrap(err, "failed to hash password")
	}
	hashStr := string(hash)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[username] = &token.User{
		Username: username,
		Password: &hashStr,
		Roles:    append([]string{}, roles...),
	}
	return nil
}

// LoadUser returns a copy of the user without its password hash.
// Hashes never leave the provider, so they are never serialized into tokens.
func (p *InMemoryProvider) LoadUser(ctx context.Context, username string) (*token.User, error) {
	p.mu.RLock()
	user, ok := p.users[username]
	p.mu.RUnlock()
	if !ok {
		return nil, errors.Newf(errors.ErrCodeUserNotFound, "user not found: %s", username)
	}

	clone := user.Clone()
	clone.Password = nil
	clone.Salt = nil
	return clone, nil
}

// Authenticate verifies the password and returns a token for the user on
// firewallName, granting the user's roles. A user without roles yields an
// unauthenticated token.
func (p *InMemoryProvider) Authenticate(ctx context.Context, firewallName, username, password string) (*token.AuthenticationToken, error) {
	p.mu.RLock()
	user, ok := p.users[username]
	var hash []byte
	if ok && user.Password != nil {
		hash = []byte(*user.Password)
	}
	p.mu.RUnlock()

	if !ok {
		slog.Info("Login attempt for unknown user", "username", username)
		return nil, errors.New(errors.ErrCodeInvalidCredentials, "invalid username or password")
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		slog.Info("Login attempt with wrong password", "username", username)
		return nil, errors.New(errors.ErrCodeInvalidCredentials, "invalid username or password")
	}

	principal, err := p.LoadUser(ctx, username)
	if err != nil {
		return nil, err
	}
	t, err := token.NewAuthenticationToken(principal, password, firewallName, principal.Roles)
	if err != nil {
		return nil, err
	}
	if p.eraseCredentials {
		t.EraseCredentials()
	}
	return t, nil
}
