package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"plume/cmd/internal/account"
	"plume/cmd/internal/auth/gate"
	"plume/cmd/internal/auth/token"
)

// Handler wires HTTP auth endpoints to the account service.
type Handler struct {
	log     *slog.Logger
	cfg     Config
	svc     *account.Service
	cookies gate.CookieConfig

	loginThrottle *ipThrottle
	resetThrottle *ipThrottle
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, svc *account.Service, cfg Config, cookies gate.CookieConfig) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("authapi: nil account service")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		log:           log,
		cfg:           cfg,
		svc:           svc,
		cookies:       cookies,
		loginThrottle: newIPThrottle(cfg.LoginIPMax, cfg.LoginIPWindow),
		resetThrottle: newIPThrottle(cfg.ResetIPMax, cfg.ResetIPWindow),
	}, nil
}

// Register wires auth routes onto the provided mux. g guards the routes
// that require an authenticated principal.
func (h *Handler) Register(mux *http.ServeMux, g *gate.Gate) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/auth/register", h.handleRegister)
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/verify-email", h.handleVerifyEmail)
	mux.HandleFunc("/auth/resend-verification", h.handleResendVerification)
	mux.HandleFunc("/auth/password-reset/request", h.handleResetRequest)
	mux.HandleFunc("/auth/password-reset/confirm", h.handleResetConfirm)
	mux.HandleFunc("/auth/refresh", h.handleRefresh)
	mux.HandleFunc("/auth/logout", h.handleLogout)

	if g != nil {
		mux.Handle("/me", g.Middleware(http.HandlerFunc(h.handleMe)))
		mux.Handle("/auth/logout-all", g.Middleware(http.HandlerFunc(h.handleLogoutAll)))
		mux.Handle("/admin/force-logout", g.Middleware(
			gate.RequireRole("admin", http.HandlerFunc(h.handleForceLogout))))
	}
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	res, err := h.svc.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, account.ErrInvalidCredentials) {
			writeError(w, http.StatusBadRequest, "invalid_email", "malformed email address")
			return
		}
		if !mapAccountError(w, err) {
			h.log.Error("auth.register.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.cookies.SetAccessCookie(w, res.AccessToken, false, time.Now().UTC())
	writeJSON(w, http.StatusCreated, registerResponse{
		User:        toUserResponse(res.User),
		Roles:       res.Roles,
		AccessToken: res.AccessToken,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	if !h.loginThrottle.allow(ip, now) {
		writeRateLimited(w, h.cfg.LoginIPWindow)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	res, err := h.svc.Login(r.Context(), req.Email, req.Password, req.RememberMe)
	if err != nil {
		if !mapAccountError(w, err) {
			h.log.Error("auth.login.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.cookies.SetAccessCookie(w, res.AccessToken, res.RememberMe, now)
	h.cookies.SetRefreshCookie(w, res.RefreshToken, now)

	writeJSON(w, http.StatusOK, loginResponse{
		User:         toUserResponse(res.User),
		Profile:      toProfileResponse(res.Profile),
		Roles:        toRoleResponses(res.Roles),
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	})
}

func (h *Handler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req verifyEmailRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and code are required")
		return
	}

	user, err := h.svc.VerifyEmail(r.Context(), req.Email, req.Code)
	if err != nil {
		if !mapAccountError(w, err) {
			h.log.Error("auth.verify.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(user)})
}

func (h *Handler) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req resendVerificationRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email is required")
		return
	}

	if err := h.svc.ResendVerification(r.Context(), req.Email); err != nil {
		if !mapAccountError(w, err) {
			h.log.Error("auth.resend.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "sent"})
}

func (h *Handler) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	now := time.Now().UTC()
	if !h.resetThrottle.allow(clientIP(r, h.cfg.TrustProxy), now) {
		writeRateLimited(w, h.cfg.ResetIPWindow)
		return
	}

	var req resetRequestRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email is required")
		return
	}

	if err := h.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.log.Error("auth.reset_request.fail", "err", err)
		// The response stays generic regardless of the failure so the
		// endpoint cannot confirm account existence.
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "sent"})
}

func (h *Handler) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req resetConfirmRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Code) == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "code and new_password are required")
		return
	}

	if err := h.svc.ResetPassword(r.Context(), req.Code, req.NewPassword); err != nil {
		if !mapAccountError(w, err) {
			h.log.Error("auth.reset_confirm.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	// The old credentials died with the old password.
	h.cookies.ClearSessionCookies(w)
	writeJSON(w, http.StatusOK, statusResponse{Status: "password_changed"})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req refreshRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
	}

	refresh := strings.TrimSpace(req.RefreshToken)
	if cookieToken, ok := gate.RefreshTokenFromRequest(r); ok && refresh == "" {
		refresh = cookieToken
	}
	if refresh == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	res, err := h.svc.Refresh(r.Context(), refresh)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrTokenExpired), errors.Is(err, token.ErrTokenInvalid):
			h.cookies.ClearSessionCookies(w)
			writeError(w, http.StatusForbidden, "invalid_refresh", "invalid or expired refresh token")
		default:
			h.log.Error("auth.refresh.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.cookies.SetAccessCookie(w, res.AccessToken, false, time.Now().UTC())
	writeJSON(w, http.StatusOK, refreshResponse{
		AccessToken: res.AccessToken,
		Roles:       res.Roles,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// Logout succeeds even with dead credentials; the browser state is
	// cleared either way. The realtime nudge only happens when the caller
	// could still be identified.
	if raw, ok := gate.AccessTokenFromRequest(r); ok {
		if claims, err := h.svc.VerifyAccessClaims(raw); err == nil {
			h.svc.Logout(r.Context(), claims.UserID)
		}
	}

	h.cookies.ClearSessionCookies(w)
	writeJSON(w, http.StatusOK, statusResponse{Status: "logged_out"})
}

// handleLogoutAll ends every session of the calling user: local cookies are
// cleared and forceLogout is pushed to the user's other live connections.
func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	p, ok := gate.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "token required")
		return
	}

	h.svc.LogoutAllSessions(r.Context(), p.UserID)
	h.cookies.ClearSessionCookies(w)
	writeJSON(w, http.StatusOK, statusResponse{Status: "logged_out_all"})
}

// handleForceLogout is the platform-wide maintenance broadcast, admin only.
func (h *Handler) handleForceLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req logoutAllRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
	}

	p, _ := gate.PrincipalFrom(r.Context())
	h.log.Warn("auth.force_logout", "admin_id", p.UserID, "reason", req.Reason)
	h.svc.ForceLogoutAll(r.Context(), req.Reason)
	writeJSON(w, http.StatusOK, statusResponse{Status: "broadcast"})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	p, ok := gate.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "token_required", "token required")
		return
	}

	view, err := h.svc.CurrentUser(r.Context(), p.UserID)
	if err != nil {
		h.log.Error("auth.me.fail", "user_id", p.UserID, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		User:    toUserResponse(view.User),
		Profile: toProfileResponse(view.Profile),
		Roles:   toRoleResponses(view.Roles),
	})
}
