package authapi

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"plume/cmd/identity"
	"plume/cmd/internal/account"
)

func toUserResponse(u identity.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Verified:  u.Verified,
		CreatedAt: u.CreatedAt,
	}
}

func toRoleResponses(roles []identity.Role) []roleResponse {
	out := make([]roleResponse, 0, len(roles))
	for _, r := range roles {
		out = append(out, roleResponse{Name: r.Name, Description: r.Description})
	}
	return out
}

func toProfileResponse(p identity.Profile) profileResponse {
	return profileResponse{
		DisplayName: p.DisplayName,
		Bio:         p.Bio,
		AvatarURL:   p.AvatarURL,
	}
}

// clientIP extracts the peer address, honoring X-Forwarded-For only when
// the deployment says the proxy is trusted.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
			first := strings.TrimSpace(strings.Split(fwd, ",")[0])
			if ip := net.ParseIP(first); ip != nil {
				return ip.String()
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

// mapAccountError translates service sentinels to HTTP responses. Anything
// unmapped is a 500 and gets logged by the caller.
func mapAccountError(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, account.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
	case errors.Is(err, account.ErrNotVerified):
		writeError(w, http.StatusForbidden, "email_not_verified", "email verification required")
	case errors.Is(err, account.ErrEmailTaken):
		writeError(w, http.StatusBadRequest, "email_taken", "email already registered")
	case errors.Is(err, account.ErrCodeInvalid):
		writeError(w, http.StatusBadRequest, "code_invalid", "invalid or unknown code")
	case errors.Is(err, account.ErrCodeExpired):
		writeError(w, http.StatusBadRequest, "code_expired", "code expired, request a new one")
	case errors.Is(err, account.ErrSamePassword):
		writeError(w, http.StatusBadRequest, "same_password", "new password must differ from the current one")
	case errors.Is(err, account.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, "weak_password", "password does not meet policy")
	case errors.Is(err, account.ErrAlreadyVerified):
		writeError(w, http.StatusBadRequest, "already_verified", "email already verified")
	default:
		return false
	}
	return true
}
