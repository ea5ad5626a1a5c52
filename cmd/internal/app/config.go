package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	// Env names the deployment environment ("development", "production", ...).
	// Production tightens the security policy; see ValidateSecurityConfig.
	Env string

	HTTPAddr  string
	LogLevel  string
	LogFormat string // "json" or "pretty"

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// If true, /readyz returns 503 unless the DB is configured and reachable.
	ReadinessRequireDB bool

	// Browser origins allowed to call the HTTP API with credentials.
	// Empty means cross-origin requests get no CORS headers at all.
	CORSAllowedOrigins []string
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		Env: EnvString("PLUME_ENV", "development"),

		HTTPAddr:  EnvString("PLUME_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("PLUME_LOG_LEVEL", "info"),
		LogFormat: EnvString("PLUME_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("PLUME_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("PLUME_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("PLUME_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("PLUME_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("PLUME_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("PLUME_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("PLUME_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("PLUME_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("PLUME_READINESS_REQUIRE_DB", false),

		CORSAllowedOrigins: EnvStrings("PLUME_CORS_ALLOWED_ORIGINS", nil),
	}
}

// IsProduction reports whether the deployment environment is production.
func (c Config) IsProduction() bool { return c.Env == "production" }
