package account

import (
	"errors"
	"os"
	"time"
)

// ErrConfig indicates invalid account configuration.
var ErrConfig = errors.New("account: invalid config")

// Config holds the lifecycle knobs of the account service.
type Config struct {
	// VerificationTTL is the lifetime of an email verification code.
	VerificationTTL time.Duration

	// ResetTTL is the lifetime of a password reset code and token. The
	// expiry announcement timer is armed with this same duration.
	ResetTTL time.Duration

	// VerificationDigits is the length of the emailed verification code.
	VerificationDigits int

	// ResetTokenBytes sizes the private reset token.
	ResetTokenBytes int
}

// DefaultConfig returns the standard lifecycle configuration.
func DefaultConfig() Config {
	return Config{
		VerificationTTL:    5 * time.Minute,
		ResetTTL:           5 * time.Minute,
		VerificationDigits: 6,
		ResetTokenBytes:    32,
	}
}

// LoadConfigFromEnv loads account configuration from environment variables.
//
// Optional:
//   - PLUME_ACCOUNT_VERIFICATION_TTL
//   - PLUME_ACCOUNT_RESET_TTL
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("PLUME_ACCOUNT_VERIFICATION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.VerificationTTL = d
	}

	if v := os.Getenv("PLUME_ACCOUNT_RESET_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.ResetTTL = d
	}

	return cfg, nil
}
