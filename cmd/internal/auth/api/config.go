package authapi

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	// Sliding-window throttles applied before any store work.
	LoginIPMax    int
	LoginIPWindow time.Duration
	ResetIPMax    int
	ResetIPWindow time.Duration
}

// LoadConfigFromEnv loads auth API config from environment variables with
// safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		TrustProxy:    envBool("PLUME_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:  envInt64("PLUME_AUTH_MAX_BODY_BYTES", 1<<20), // 1 MiB
		LoginIPMax:    envInt("PLUME_AUTH_LOGIN_IP_MAX", 20),
		LoginIPWindow: envDuration("PLUME_AUTH_LOGIN_IP_WINDOW", 5*time.Minute),
		ResetIPMax:    envInt("PLUME_AUTH_RESET_IP_MAX", 5),
		ResetIPWindow: envDuration("PLUME_AUTH_RESET_IP_WINDOW", 15*time.Minute),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.LoginIPMax <= 0 {
		cfg.LoginIPMax = 20
	}
	if cfg.ResetIPMax <= 0 {
		cfg.ResetIPMax = 5
	}

	return cfg
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
