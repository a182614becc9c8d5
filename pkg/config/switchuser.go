package config

import (
	"fmt"
	"log/slog"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/simple-idm-switchuser/pkg/errors"
)

const defaultSecret = "very-secure-jwt-secret"

// FirewallConfig names the authentication context tokens are issued for.
type FirewallConfig struct {
	Name       string `env:"FIREWALL_NAME" env-default:"main"`
	SwitchRole string `env:"FIREWALL_SWITCH_ROLE" env-default:"ROLE_ALLOWED_TO_SWITCH"`
}

// SignerConfig controls the signed cookie transport.
type SignerConfig struct {
	Secret       string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer       string `env:"JWT_ISSUER" env-default:"simple-idm-switchuser"`
	Expiry       string `env:"JWT_EXPIRY" env-default:"30m"`
	CookieName   string `env:"TOKEN_COOKIE_NAME" env-default:"switch_user_token"`
	CookieSecure bool   `env:"TOKEN_COOKIE_SECURE" env-default:"false"`
}

// StoreConfig controls where tokens are kept when the session transport is used.
type StoreConfig struct {
	Transport string `env:"TOKEN_TRANSPORT" env-default:"jwt"` // jwt or session
	Type      string `env:"TOKEN_STORE_TYPE" env-default:"memory"`
	DataDir   string `env:"TOKEN_STORE_DATA_DIR" env-default:"./data/sessions"`
	Size      int    `env:"TOKEN_STORE_SIZE" env-default:"1024"`
}

// DelegationConfig points to the delegation records file.
type DelegationConfig struct {
	DataDir string `env:"DELEGATION_DATA_DIR" env-default:"./data"`
}

// RateLimitConfig throttles requests per client IP and per acting user.
// Login and switch attempts get a tighter per-IP limit.
type RateLimitConfig struct {
	Enabled              bool `env:"RATE_LIMIT_ENABLED" env-default:"true"`
	PerIPPerMinute       int  `env:"RATE_LIMIT_IP_PER_MINUTE" env-default:"100"`
	PerUserPerMinute     int  `env:"RATE_LIMIT_USER_PER_MINUTE" env-default:"200"`
	LoginPerMinute       int  `env:"RATE_LIMIT_LOGIN_PER_MINUTE" env-default:"10"`
	ImpersonatePerMinute int  `env:"RATE_LIMIT_IMPERSONATE_PER_MINUTE" env-default:"20"`
}

// Config is the switch-user service configuration.
type Config struct {
	Firewall   FirewallConfig
	Signer     SignerConfig
	Store      StoreConfig
	Delegation DelegationConfig
	Seed       SeedConfig
	RateLimit  RateLimitConfig
	LogLevel   string `env:"LOG_LEVEL" env-default:"info"`
}

// Load reads Config from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to read config from env", "err", err)
		return Config{}, errors.Wrap(err, errors.ErrCodeInvalidConfiguration, "failed to read configuration")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values the token packages cannot default.
func (c Config) Validate() error {
	if c.Firewall.Name == "" {
		return errors.InvalidConfiguration("FIREWALL_NAME must not be empty")
	}
	if c.Signer.Secret == "" {
		return errors.InvalidConfiguration("JWT_SECRET must not be empty")
	}
	if IsProduction() && c.Signer.Secret == defaultSecret {
		return errors.InvalidConfiguration("JWT_SECRET must be changed in production")
	}
	if _, err := ParseDurationValue(c.Signer.Expiry); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidConfiguration, "invalid JWT_EXPIRY")
	}
	switch c.Store.Transport {
	case "jwt", "session":
	default:
		return errors.InvalidConfiguration(fmt.Sprintf("unsupported TOKEN_TRANSPORT: %s (supported: jwt, session)", c.Store.Transport))
	}
	switch c.Store.Type {
	case "memory", "file":
	default:
		return errors.InvalidConfiguration(fmt.Sprintf("unsupported TOKEN_STORE_TYPE: %s (supported: memory, file)", c.Store.Type))
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
