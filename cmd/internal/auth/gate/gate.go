package gate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"plume/cmd/internal/auth/token"
)

// RoleResolver reads the current role grants for a user. The identity store
// satisfies this; the gate re-resolves grants on every admitted request so a
// revocation lands without tracking issued tokens.
type RoleResolver interface {
	RolesFor(ctx context.Context, userID string) ([]string, error)
}

// Gate authenticates requests before they reach protected handlers.
type Gate struct {
	tokens  *token.Manager
	roles   RoleResolver
	cookies CookieConfig
	log     *slog.Logger
	now     func() time.Time
}

// New constructs a Gate. logger may be nil.
func New(tokens *token.Manager, roles RoleResolver, cookies CookieConfig, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		tokens:  tokens,
		roles:   roles,
		cookies: cookies,
		log:     logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Middleware wraps next with the authentication gate.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := AccessTokenFromRequest(r)
		if !ok {
			g.log.Info("gate.reject.missing", "path", r.URL.Path)
			writeError(w, http.StatusUnauthorized, "token required")
			return
		}

		claims, err := g.tokens.VerifyAccess(raw)
		switch {
		case err == nil:
			g.resolveAndAdmit(w, r, next, claims.UserID, claims.Email)
		case errors.Is(err, token.ErrTokenExpired):
			g.refreshAndAdmit(w, r, next)
		default:
			g.log.Info("gate.reject.invalid", "path", r.URL.Path)
			writeError(w, http.StatusForbidden, "invalid or expired token")
		}
	})
}

// admit enforces the zero-role rule and hands the request to next.
func (g *Gate) admit(w http.ResponseWriter, r *http.Request, next http.Handler, p Principal) {
	if len(p.Roles) == 0 {
		g.log.Warn("gate.reject.no_roles", "user_id", p.UserID)
		writeError(w, http.StatusForbidden, "no role assigned")
		return
	}
	next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
}

// resolveAndAdmit reads the current grants and admits with those, not with
// whatever role set the token was minted with. A revocation therefore takes
// effect on the next request, not at token expiry.
func (g *Gate) resolveAndAdmit(w http.ResponseWriter, r *http.Request, next http.Handler, userID, email string) {
	roles, err := g.roles.RolesFor(r.Context(), userID)
	if err != nil {
		g.log.Error("gate.roles_error", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	g.admit(w, r, next, Principal{UserID: userID, Email: email, Roles: roles})
}

// refreshAndAdmit is the single silent refresh attempt for a request that
// arrived with an authentic but expired access token. Exactly one attempt
// per request; a failed refresh is terminal.
func (g *Gate) refreshAndAdmit(w http.ResponseWriter, r *http.Request, next http.Handler) {
	refresh, ok := RefreshTokenFromRequest(r)
	if !ok {
		g.log.Info("gate.refresh.absent", "path", r.URL.Path)
		writeError(w, http.StatusForbidden, "invalid or expired token")
		return
	}

	claims, err := g.tokens.VerifyRefresh(refresh)
	if err != nil {
		g.log.Info("gate.refresh.fail", "path", r.URL.Path)
		g.cookies.ClearSessionCookies(w)
		writeError(w, http.StatusForbidden, "invalid or expired token")
		return
	}

	roles, err := g.roles.RolesFor(r.Context(), claims.UserID)
	if err != nil {
		g.log.Error("gate.refresh.roles_error", "user_id", claims.UserID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if len(roles) == 0 {
		g.log.Warn("gate.reject.no_roles", "user_id", claims.UserID)
		writeError(w, http.StatusForbidden, "no role assigned")
		return
	}

	now := g.now()
	access, err := g.tokens.IssueAccess(claims.UserID, claims.Email, roles, now)
	if err != nil {
		g.log.Error("gate.refresh.issue_error", "user_id", claims.UserID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	g.cookies.SetAccessCookie(w, access, false, now)
	g.log.Info("gate.refresh.ok", "user_id", claims.UserID)

	g.admit(w, r, next, Principal{
		UserID: claims.UserID,
		Email:  claims.Email,
		Roles:  roles,
	})
}

// RequireRole wraps next with a role check on top of the gate's principal.
// Must run inside Middleware.
func RequireRole(role string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok || !p.HasRole(role) {
			writeError(w, http.StatusForbidden, "no role assigned")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
