package gate

import (
	"net/http"
	"os"
	"strings"
	"time"
)

// Cookie names and paths are part of the browser contract and must stay
// stable across releases.
const (
	AccessCookieName  = "access_token"
	RefreshCookieName = "refresh_token"

	// RefreshCookiePath scopes the refresh credential so browsers only
	// attach it to the refresh endpoint, never to ordinary API calls.
	RefreshCookiePath = "/auth/refresh"
)

// CookieConfig defines browser cookie placement policy.
type CookieConfig struct {
	// AccessTTL is the default access-cookie lifetime.
	AccessTTL time.Duration

	// AccessTTLRemembered is the access-cookie lifetime when the user asked
	// to stay signed in.
	AccessTTLRemembered time.Duration

	// RefreshTTL is the refresh-cookie lifetime.
	RefreshTTL time.Duration

	// Domain is the optional cookie domain attribute.
	Domain string

	// Secure marks cookies HTTPS-only. Enabled in production.
	Secure bool
}

// DefaultCookieConfig returns the standard placement policy. Secure is
// derived from PLUME_ENV: any value other than "production" keeps cookies
// usable over plain HTTP for local development.
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		AccessTTL:           24 * time.Hour,
		AccessTTLRemembered: 30 * 24 * time.Hour,
		RefreshTTL:          7 * 24 * time.Hour,
		Domain:              os.Getenv("PLUME_COOKIE_DOMAIN"),
		Secure:              strings.EqualFold(os.Getenv("PLUME_ENV"), "production"),
	}
}

// SetAccessCookie places the access token at the site root.
func (c CookieConfig) SetAccessCookie(w http.ResponseWriter, value string, remembered bool, now time.Time) {
	if w == nil || value == "" {
		return
	}
	ttl := c.AccessTTL
	if remembered {
		ttl = c.AccessTTLRemembered
	}
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookieName,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		Expires:  now.Add(ttl),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// SetRefreshCookie places the refresh token, scoped to the refresh endpoint.
func (c CookieConfig) SetRefreshCookie(w http.ResponseWriter, value string, now time.Time) {
	if w == nil || value == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    value,
		Path:     RefreshCookiePath,
		Domain:   c.Domain,
		Expires:  now.Add(c.RefreshTTL),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearSessionCookies expires both credentials in the browser.
func (c CookieConfig) ClearSessionCookies(w http.ResponseWriter) {
	if w == nil {
		return
	}
	c.expire(w, AccessCookieName, "/")
	c.expire(w, RefreshCookieName, RefreshCookiePath)
}

func (c CookieConfig) expire(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Domain:   c.Domain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// AccessTokenFromRequest extracts the access credential, preferring the
// cookie and falling back to an Authorization bearer header.
func AccessTokenFromRequest(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	if c, err := r.Cookie(AccessCookieName); err == nil {
		if v := strings.TrimSpace(c.Value); v != "" {
			return v, true
		}
	}
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		if v := strings.TrimSpace(h[len(prefix):]); v != "" {
			return v, true
		}
	}
	return "", false
}

// RefreshTokenFromRequest extracts the refresh credential cookie.
func RefreshTokenFromRequest(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	c, err := r.Cookie(RefreshCookieName)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	return v, v != ""
}
