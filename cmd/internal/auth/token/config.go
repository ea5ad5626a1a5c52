package token

import (
	"os"
	"time"
)

// Config defines runtime configuration for credential signing.
//
// Access and refresh tokens are signed with independent secrets so that a
// leaked access secret cannot be used to forge long-lived refresh tokens.
type Config struct {
	// Issuer is the value set in the "iss" claim of both token types.
	Issuer string

	// AccessTTL defines the lifetime of access tokens.
	AccessTTL time.Duration

	// RefreshTTL defines the lifetime of refresh tokens.
	RefreshTTL time.Duration

	// ClockSkew defines the allowed time skew during token validation.
	ClockSkew time.Duration

	// AccessSecret and RefreshSecret are the HMAC-SHA256 signing keys.
	// They must be set, non-trivial, and distinct from each other.
	AccessSecret  string
	RefreshSecret string
}

// DefaultConfig returns the default lifetimes. Secrets have no default and
// must come from the environment.
func DefaultConfig() Config {
	return Config{
		Issuer:     "plume",
		AccessTTL:  2 * time.Hour,
		RefreshTTL: 7 * 24 * time.Hour,
		ClockSkew:  30 * time.Second,
	}
}

// LoadConfigFromEnv loads token configuration from environment variables.
//
// Required:
//   - PLUME_AUTH_ACCESS_SECRET
//   - PLUME_AUTH_REFRESH_SECRET
//
// Optional (durations must be valid Go duration strings):
//   - PLUME_AUTH_ISSUER
//   - PLUME_AUTH_ACCESS_TTL
//   - PLUME_AUTH_REFRESH_TTL
//   - PLUME_AUTH_CLOCK_SKEW
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("PLUME_AUTH_ISSUER"); v != "" {
		cfg.Issuer = v
	}

	if v := os.Getenv("PLUME_AUTH_ACCESS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.AccessTTL = d
	}

	if v := os.Getenv("PLUME_AUTH_REFRESH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTTL = d
	}

	if v := os.Getenv("PLUME_AUTH_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ClockSkew = d
	}

	cfg.AccessSecret = os.Getenv("PLUME_AUTH_ACCESS_SECRET")
	cfg.RefreshSecret = os.Getenv("PLUME_AUTH_REFRESH_SECRET")

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

const minSecretLen = 32

func (c Config) validate() error {
	if len(c.AccessSecret) < minSecretLen || len(c.RefreshSecret) < minSecretLen {
		return ErrConfig
	}
	if c.AccessSecret == c.RefreshSecret {
		return ErrConfig
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 || c.ClockSkew < 0 {
		return ErrConfig
	}
	// An access token outliving the refresh token makes silent refresh
	// unreachable.
	if c.AccessTTL > c.RefreshTTL {
		return ErrConfig
	}
	return nil
}
