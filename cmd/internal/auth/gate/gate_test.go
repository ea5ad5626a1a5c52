package gate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"plume/cmd/internal/auth/token"
)

type stubRoles struct {
	roles map[string][]string
	err   error
}

func (s *stubRoles) RolesFor(_ context.Context, userID string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.roles[userID], nil
}

func newTestManager(t *testing.T) *token.Manager {
	t.Helper()
	cfg := token.DefaultConfig()
	cfg.AccessSecret = strings.Repeat("a", 32)
	cfg.RefreshSecret = strings.Repeat("r", 32)
	cfg.ClockSkew = 0
	m, err := token.NewManager(cfg)
	require.NoError(t, err)
	return m
}

func newTestGate(t *testing.T, roles *stubRoles) (*Gate, *token.Manager) {
	t.Helper()
	m := newTestManager(t)
	g := New(m, roles, CookieConfig{
		AccessTTL:           24 * time.Hour,
		AccessTTLRemembered: 30 * 24 * time.Hour,
		RefreshTTL:          7 * 24 * time.Hour,
	}, nil)
	return g, m
}

// echoPrincipal records the principal the gate admitted.
func echoPrincipal(got *Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok {
			http.Error(w, "no principal", http.StatusInternalServerError)
			return
		}
		*got = p
		w.WriteHeader(http.StatusOK)
	})
}

func TestGateMissingCredential(t *testing.T) {
	g, _ := newTestGate(t, &stubRoles{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	g.Middleware(http.NotFoundHandler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "token required")
}

func TestGateValidCookie(t *testing.T) {
	g, m := newTestGate(t, &stubRoles{roles: map[string][]string{"u-1": {"user"}}})

	access, err := m.IssueAccess("u-1", "ada@example.com", []string{"user"}, time.Now().UTC())
	require.NoError(t, err)

	var got Principal
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: access})
	g.Middleware(echoPrincipal(&got)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "u-1", got.UserID)
	require.Equal(t, []string{"user"}, got.Roles)
}

func TestGateBearerFallback(t *testing.T) {
	g, m := newTestGate(t, &stubRoles{roles: map[string][]string{"u-1": {"user"}}})

	access, err := m.IssueAccess("u-1", "ada@example.com", []string{"user"}, time.Now().UTC())
	require.NoError(t, err)

	var got Principal
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	g.Middleware(echoPrincipal(&got)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "u-1", got.UserID)
}

func TestGateTamperedToken(t *testing.T) {
	g, m := newTestGate(t, &stubRoles{})

	access, err := m.IssueAccess("u-1", "ada@example.com", []string{"user"}, time.Now().UTC())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: access[:len(access)-2] + "xx"})
	g.Middleware(http.NotFoundHandler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid or expired token")
}

func TestGateZeroRolesRejected(t *testing.T) {
	g, m := newTestGate(t, &stubRoles{})

	access, err := m.IssueAccess("u-1", "ada@example.com", nil, time.Now().UTC())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: access})
	g.Middleware(http.NotFoundHandler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "no role assigned")
}

func TestGateRevokedRolesOnValidToken(t *testing.T) {
	// The token still carries the role it was minted with, but every grant
	// has since been revoked. Admission reads the store, not the claim.
	g, m := newTestGate(t, &stubRoles{roles: map[string][]string{}})

	access, err := m.IssueAccess("u-1", "ada@example.com", []string{"user"}, time.Now().UTC())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: access})
	g.Middleware(http.NotFoundHandler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "no role assigned")
}

func TestGateValidTokenSeesFreshGrants(t *testing.T) {
	g, m := newTestGate(t, &stubRoles{roles: map[string][]string{"u-1": {"admin", "user"}}})

	access, err := m.IssueAccess("u-1", "ada@example.com", []string{"user"}, time.Now().UTC())
	require.NoError(t, err)

	var got Principal
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: access})
	g.Middleware(echoPrincipal(&got)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"admin", "user"}, got.Roles)
}

func TestGateSilentRefresh(t *testing.T) {
	roles := &stubRoles{roles: map[string][]string{"u-1": {"admin", "user"}}}
	g, m := newTestGate(t, roles)

	now := time.Now().UTC()
	expired, err := m.IssueAccess("u-1", "ada@example.com", []string{"user"}, now.Add(-3*time.Hour))
	require.NoError(t, err)
	refresh, err := m.IssueRefresh("u-1", "ada@example.com", now)
	require.NoError(t, err)

	var got Principal
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: expired})
	req.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: refresh})
	g.Middleware(echoPrincipal(&got)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	// The refresh re-reads grants; the new principal sees both roles even
	// though the expired token only carried one.
	require.Equal(t, []string{"admin", "user"}, got.Roles)

	// Exactly one replacement access cookie is placed on the response.
	var accessCookies []*http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == AccessCookieName {
			accessCookies = append(accessCookies, c)
		}
	}
	require.Len(t, accessCookies, 1)
	require.Equal(t, "/", accessCookies[0].Path)

	claims, err := m.VerifyAccess(accessCookies[0].Value)
	require.NoError(t, err)
	require.Equal(t, "u-1", claims.UserID)
	require.Equal(t, []string{"admin", "user"}, claims.Roles)
}

func TestGateExpiredWithoutRefreshCookie(t *testing.T) {
	g, m := newTestGate(t, &stubRoles{})

	expired, err := m.IssueAccess("u-1", "ada@example.com", []string{"user"}, time.Now().UTC().Add(-3*time.Hour))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: expired})
	g.Middleware(http.NotFoundHandler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGateExpiredWithBadRefreshCookie(t *testing.T) {
	g, m := newTestGate(t, &stubRoles{})

	expired, err := m.IssueAccess("u-1", "ada@example.com", []string{"user"}, time.Now().UTC().Add(-3*time.Hour))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: expired})
	req.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: "garbage"})
	g.Middleware(http.NotFoundHandler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)

	// Both credentials are expired in the browser on a failed refresh.
	names := map[string]bool{}
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			names[c.Name] = true
		}
	}
	require.True(t, names[AccessCookieName])
	require.True(t, names[RefreshCookieName])
}

func TestGateRefreshWithRevokedRoles(t *testing.T) {
	roles := &stubRoles{roles: map[string][]string{}} // all grants revoked
	g, m := newTestGate(t, roles)

	now := time.Now().UTC()
	expired, err := m.IssueAccess("u-1", "ada@example.com", []string{"user"}, now.Add(-3*time.Hour))
	require.NoError(t, err)
	refresh, err := m.IssueRefresh("u-1", "ada@example.com", now)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: expired})
	req.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: refresh})
	g.Middleware(http.NotFoundHandler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "no role assigned")
}

func TestRequireRole(t *testing.T) {
	ok := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req = req.WithContext(WithPrincipal(req.Context(), Principal{UserID: "u-1", Roles: []string{"admin"}}))
	RequireRole("admin", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(ok, req)
	require.Equal(t, http.StatusNoContent, ok.Code)

	denied := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req2 = req2.WithContext(WithPrincipal(req2.Context(), Principal{UserID: "u-2", Roles: []string{"user"}}))
	RequireRole("admin", http.NotFoundHandler()).ServeHTTP(denied, req2)
	require.Equal(t, http.StatusForbidden, denied.Code)
}
