// Package app wires the Plume identity server runtime: config, logging,
// metrics, the HTTP API, and the realtime gateway.
//
// Every dependency is constructed here and handed down explicitly; no
// package below this one reads shared globals.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"plume/cmd/identity"
	"plume/cmd/internal/account"
	authapi "plume/cmd/internal/auth/api"
	"plume/cmd/internal/auth/gate"
	authtoken "plume/cmd/internal/auth/token"
	"plume/cmd/internal/realtime"
	sectoken "plume/cmd/security/token"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App is the Plume server runtime. It owns the HTTP server wiring, the
// database pool lifecycle, and the realtime gateway.
type App struct {
	cfg Config
	log Logger

	dbPool    *pgxpool.Pool
	dbEnabled bool

	ws      *realtime.WSGateway
	auth    *authapi.Handler
	g       *gate.Gate
	metrics *Metrics
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	store, dbPool, dbEnabled, err := newIdentityStore(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}
	closePool := func() {
		if dbPool != nil {
			dbPool.Close()
		}
	}

	tokens, err := newTokenManager(cfg, log)
	if err != nil {
		closePool()
		return nil, err
	}

	registry := realtime.NewRegistry(log)
	ws := realtime.NewWSGateway(log, registry, tokens)

	acctCfg, err := account.LoadConfigFromEnv()
	if err != nil {
		closePool()
		return nil, err
	}

	svc, err := account.NewService(store, tokens, registry, newMailer(cfg, log), acctCfg, log)
	if err != nil {
		closePool()
		return nil, err
	}

	cookies := gate.DefaultCookieConfig()
	g := gate.New(tokens, store, cookies, log)

	auth, err := authapi.NewHandler(log, svc, authapi.LoadConfigFromEnv(), cookies)
	if err != nil {
		closePool()
		return nil, err
	}

	return &App{
		cfg:       cfg,
		log:       log,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		ws:        ws,
		auth:      auth,
		g:         g,
		metrics:   NewMetrics(registry.TotalConns),
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or a
// fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.ws, a.auth, a.g, a.metrics)

	var handler http.Handler = mux
	handler = WithCORS(handler, a.cfg.CORSAllowedOrigins)
	handler = WithSecurityHeaders(handler)
	handler = WithRequestLogging(handler, a.log, a.metrics)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	base := runtimeBaseURL(a.cfg.HTTPAddr)
	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"env", a.cfg.Env,
		"db_enabled", a.dbEnabled,
		"base_url", base,
		"ws_url", wsBaseURL(base)+"/ws",
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if a.dbPool != nil {
		a.dbPool.Close()
	}

	a.log.Info("server.stopped")
	return nil
}

// runtimeBaseURL turns a bind address into a URL a local operator can open.
// Wildcard binds are rewritten to loopback.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// wsBaseURL derives the WebSocket URL from an HTTP base URL.
func wsBaseURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return "ws://" + base
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newIdentityStore decides between Postgres-backed persistence and the
// in-memory development store. The app owns the pool lifecycle; the store
// only borrows it.
func newIdentityStore(ctx context.Context, cfg Config, log Logger) (identity.Store, *pgxpool.Pool, bool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return identity.NewMemoryStore(), nil, false, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, false, err
	}

	store, err := identity.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, nil, false, err
	}

	log.Info("db.enabled.postgres_store")
	return store, pool, true, nil
}

// newTokenManager loads signing config from the environment. Outside
// production a missing secret falls back to ephemeral random keys, which
// keeps local setup at zero config at the cost of invalidating every
// credential on restart.
func newTokenManager(cfg Config, log Logger) (*authtoken.Manager, error) {
	tokCfg, err := authtoken.LoadConfigFromEnv()
	if err != nil {
		if cfg.IsProduction() {
			return nil, err
		}

		access, rerr := sectoken.NewOpaque(32)
		if rerr != nil {
			return nil, rerr
		}
		refresh, rerr := sectoken.NewOpaque(32)
		if rerr != nil {
			return nil, rerr
		}

		tokCfg = authtoken.DefaultConfig()
		tokCfg.AccessSecret = access
		tokCfg.RefreshSecret = refresh
		log.Warn("auth.secrets.ephemeral", "reason", fmt.Sprintf("%v", err))
	}

	return authtoken.NewManager(tokCfg)
}

// newMailer picks the code delivery channel. Development logs codes to the
// console; production has no SMTP integration yet, so codes are dropped and
// the operator is warned at startup.
func newMailer(cfg Config, log Logger) account.Mailer {
	if cfg.IsProduction() {
		log.Warn("mail.delivery.disabled")
		return account.NoopMailer{}
	}
	return account.LogMailer{Log: log}
}
