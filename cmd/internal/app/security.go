package app

import (
	"errors"
	"os"
	"strings"
)

// ValidateSecurityConfig enforces the production security policy at startup.
//
// Fail-fast is intentional: a production process that silently runs on
// ephemeral signing secrets or with origin checks disabled would accept
// credentials it should not.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.IsProduction() {
		return nil
	}

	if strings.TrimSpace(os.Getenv("PLUME_AUTH_ACCESS_SECRET")) == "" {
		return errors.New("security policy: PLUME_ENV=production but PLUME_AUTH_ACCESS_SECRET is not set")
	}
	if strings.TrimSpace(os.Getenv("PLUME_AUTH_REFRESH_SECRET")) == "" {
		return errors.New("security policy: PLUME_ENV=production but PLUME_AUTH_REFRESH_SECRET is not set")
	}

	if EnvBool("PLUME_WS_DEV_INSECURE", false) {
		return errors.New("security policy: PLUME_WS_DEV_INSECURE must not be enabled in production")
	}

	return nil
}
