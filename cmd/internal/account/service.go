package account

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"plume/cmd/identity"
	authtoken "plume/cmd/internal/auth/token"
	"plume/cmd/internal/realtime"
	"plume/cmd/security/token"
	v1 "plume/shared/contracts/realtime/v1"
)

// Broadcaster pushes notifications to a user's live connections. The
// realtime registry satisfies this; tests substitute a recorder.
type Broadcaster interface {
	EmitToUser(userID string, env v1.Envelope) bool
	EmitGlobal(env v1.Envelope)
}

// Service implements the account lifecycle on top of the identity store,
// the credential manager, and the notification registry. All dependencies
// are injected; the service holds no global state.
type Service struct {
	store     identity.Store
	tokens    *authtoken.Manager
	broadcast Broadcaster
	mailer    Mailer
	cfg       Config
	log       *slog.Logger
	now       func() time.Time
}

// NewService constructs a Service. broadcast, mailer, and logger may be nil;
// nil broadcast drops notifications and nil mailer discards mail.
func NewService(store identity.Store, tokens *authtoken.Manager, broadcast Broadcaster, mailer Mailer, cfg Config, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: nil store", ErrConfig)
	}
	if tokens == nil {
		return nil, fmt.Errorf("%w: nil token manager", ErrConfig)
	}
	if mailer == nil {
		mailer = NoopMailer{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.VerificationTTL <= 0 || cfg.ResetTTL <= 0 {
		return nil, ErrConfig
	}
	if cfg.VerificationDigits <= 0 {
		cfg.VerificationDigits = 6
	}
	if cfg.ResetTokenBytes <= 0 {
		cfg.ResetTokenBytes = 32
	}
	return &Service{
		store:     store,
		tokens:    tokens,
		broadcast: broadcast,
		mailer:    mailer,
		cfg:       cfg,
		log:       logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// RegisterResult is returned on successful registration. The account starts
// unverified but already authenticated, so the client can show the
// verification prompt without a second login.
type RegisterResult struct {
	User        identity.User
	Roles       []string
	AccessToken string
}

// Register creates an account, grants initial roles, mails a verification
// code, and signs the user in.
func (s *Service) Register(ctx context.Context, email, password string) (RegisterResult, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return RegisterResult{}, fmt.Errorf("%w: malformed email", ErrInvalidCredentials)
	}

	hash, err := identity.HashPassword(password)
	if err != nil {
		if identity.IsInvalidInput(err) {
			return RegisterResult{}, ErrWeakPassword
		}
		return RegisterResult{}, fmt.Errorf("account: hash password: %w", err)
	}

	now := s.now()
	user, err := s.store.CreateUser(ctx, identity.CreateUserInput{
		Email:        email,
		PasswordHash: hash,
		Now:          now,
	})
	if err != nil {
		if identity.IsConflict(err) {
			return RegisterResult{}, ErrEmailTaken
		}
		return RegisterResult{}, fmt.Errorf("account: create user: %w", err)
	}

	if err := s.issueVerification(ctx, user, now); err != nil {
		// The account exists; the user can ask for a fresh code.
		s.log.Error("account.register.verification_fail", "user_id", user.ID, "err", err)
	}

	roles, err := s.store.RolesFor(ctx, user.ID)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("account: read roles: %w", err)
	}

	access, err := s.tokens.IssueAccess(user.ID, user.Email, roles, now)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("account: issue access: %w", err)
	}

	s.log.Info("account.register.ok", "user_id", user.ID, "roles", roles)
	return RegisterResult{User: user, Roles: roles, AccessToken: access}, nil
}

// LoginResult carries both credentials plus the role details the client
// shows on the account screen.
type LoginResult struct {
	User         identity.User
	Profile      identity.Profile
	Roles        []identity.Role
	AccessToken  string
	RefreshToken string
	RememberMe   bool
}

// Login checks credentials and issues a fresh access/refresh pair. An
// unverified account fails with ErrNotVerified, deliberately
// distinguishable from a bad password.
func (s *Service) Login(ctx context.Context, email, password string, rememberMe bool) (LoginResult, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if identity.IsNotFound(err) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("account: lookup user: %w", err)
	}

	ok, err := identity.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return LoginResult{}, fmt.Errorf("account: verify password: %w", err)
	}
	if !ok {
		s.log.Info("account.login.fail", "user_id", user.ID)
		return LoginResult{}, ErrInvalidCredentials
	}

	if !user.Verified {
		return LoginResult{}, ErrNotVerified
	}

	// Grants are read fresh at every issuance; cached roles never outlive
	// the access token that carries them.
	names, err := s.store.RolesFor(ctx, user.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("account: read roles: %w", err)
	}
	details, err := s.store.RoleDetailsFor(ctx, user.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("account: read role details: %w", err)
	}
	profile, err := s.store.GetProfile(ctx, user.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("account: read profile: %w", err)
	}

	now := s.now()
	access, err := s.tokens.IssueAccess(user.ID, user.Email, names, now)
	if err != nil {
		return LoginResult{}, fmt.Errorf("account: issue access: %w", err)
	}
	refresh, err := s.tokens.IssueRefresh(user.ID, user.Email, now)
	if err != nil {
		return LoginResult{}, fmt.Errorf("account: issue refresh: %w", err)
	}

	s.log.Info("account.login.ok", "user_id", user.ID, "remember_me", rememberMe)
	return LoginResult{
		User:         user,
		Profile:      profile,
		Roles:        details,
		AccessToken:  access,
		RefreshToken: refresh,
		RememberMe:   rememberMe,
	}, nil
}

// VerifyEmail consumes a verification code. Wrong, expired, and replayed
// codes are indistinguishable to the caller.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) (identity.User, error) {
	user, err := s.store.ConsumeVerificationCode(ctx, email, strings.TrimSpace(code), s.now())
	if err != nil {
		if identity.IsNotFound(err) {
			return identity.User{}, ErrCodeInvalid
		}
		return identity.User{}, fmt.Errorf("account: consume verification: %w", err)
	}
	s.log.Info("account.verify.ok", "user_id", user.ID)
	return user, nil
}

// ResendVerification issues a fresh code, overwriting the previous one.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if identity.IsNotFound(err) {
			// Same response as success so the endpoint cannot be used to
			// probe which emails are registered.
			return nil
		}
		return fmt.Errorf("account: lookup user: %w", err)
	}
	if user.Verified {
		return ErrAlreadyVerified
	}
	return s.issueVerification(ctx, user, s.now())
}

func (s *Service) issueVerification(ctx context.Context, user identity.User, now time.Time) error {
	code, err := token.NewDigits(s.cfg.VerificationDigits)
	if err != nil {
		return fmt.Errorf("account: new code: %w", err)
	}
	if err := s.store.SetVerificationCode(ctx, user.ID, code, now.Add(s.cfg.VerificationTTL)); err != nil {
		return fmt.Errorf("account: store code: %w", err)
	}
	if err := s.mailer.SendVerificationCode(ctx, user.Email, code); err != nil {
		s.log.Error("account.mail.verification_fail", "user_id", user.ID, "err", err)
	}
	return nil
}

// RequestPasswordReset opens a reset window for the account, if it exists.
// The response is identical either way. The expiry announcement timer is
// armed unconditionally and is never cancelled: it fires one reset lifetime
// later even when the reset was completed or re-requested in the meantime.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if identity.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("account: lookup user: %w", err)
	}

	code, err := token.NewOpaque(16)
	if err != nil {
		return fmt.Errorf("account: new reset code: %w", err)
	}
	resetToken, err := token.NewOpaque(s.cfg.ResetTokenBytes)
	if err != nil {
		return fmt.Errorf("account: new reset token: %w", err)
	}

	now := s.now()
	if err := s.store.SetPasswordReset(ctx, user.ID, code, token.HashSHA256Hex(resetToken), now.Add(s.cfg.ResetTTL)); err != nil {
		return fmt.Errorf("account: store reset: %w", err)
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, code); err != nil {
		s.log.Error("account.mail.reset_fail", "user_id", user.ID, "err", err)
	}

	userID := user.ID
	time.AfterFunc(s.cfg.ResetTTL, func() {
		s.announceResetExpired(userID)
	})

	s.log.Info("account.reset.requested", "user_id", user.ID)
	return nil
}

func (s *Service) announceResetExpired(userID string) {
	if s.broadcast == nil {
		return
	}
	delivered := s.broadcast.EmitToUser(userID, realtime.NewPasswordResetExpired(userID, s.now()))
	s.log.Info("account.reset.expired_announce", "user_id", userID, "delivered", delivered)
}

// ResetPassword completes a reset. The mailed code is the only credential
// the caller presents; the private token stays server-side.
func (s *Service) ResetPassword(ctx context.Context, code, newPassword string) error {
	user, rec, err := s.store.GetUserByResetCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if identity.IsNotFound(err) {
			return ErrCodeInvalid
		}
		return fmt.Errorf("account: lookup reset: %w", err)
	}

	if !rec.ExpiresAt.After(s.now()) {
		// The row identifies its owner, so the expiry signal goes out right
		// away instead of waiting for the deferred timer.
		s.announceResetExpired(user.ID)
		return ErrCodeExpired
	}

	same, err := identity.VerifyPassword(newPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("account: compare password: %w", err)
	}
	if same {
		return ErrSamePassword
	}

	hash, err := identity.HashPassword(newPassword)
	if err != nil {
		if identity.IsInvalidInput(err) {
			return ErrWeakPassword
		}
		return fmt.Errorf("account: hash password: %w", err)
	}

	if err := s.store.CompletePasswordReset(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("account: complete reset: %w", err)
	}

	// Outstanding sessions on other devices hold credentials minted for
	// the old password; tell them to re-authenticate.
	s.emitForceLogout(user.ID, "password changed")

	s.log.Info("account.reset.ok", "user_id", user.ID)
	return nil
}

// RefreshResult is the outcome of an explicit token refresh.
type RefreshResult struct {
	UserID      string
	Email       string
	Roles       []string
	AccessToken string
}

// Refresh exchanges a valid refresh token for a fresh access token, with
// role grants re-read from the store.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (RefreshResult, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return RefreshResult{}, err
	}

	roles, err := s.store.RolesFor(ctx, claims.UserID)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("account: read roles: %w", err)
	}

	access, err := s.tokens.IssueAccess(claims.UserID, claims.Email, roles, s.now())
	if err != nil {
		return RefreshResult{}, fmt.Errorf("account: issue access: %w", err)
	}

	return RefreshResult{
		UserID:      claims.UserID,
		Email:       claims.Email,
		Roles:       roles,
		AccessToken: access,
	}, nil
}

// VerifyAccessClaims checks an access token without touching the store.
// Used by handlers that want the caller's identity on a best-effort basis.
func (s *Service) VerifyAccessClaims(raw string) (authtoken.AccessClaims, error) {
	return s.tokens.VerifyAccess(raw)
}

// Logout tells the user's live connections to drop their credentials.
// Cookie clearing is the HTTP layer's job; the service only notifies.
func (s *Service) Logout(ctx context.Context, userID string) {
	s.emitForceLogout(userID, "logged out")
	s.log.Info("account.logout", "user_id", userID)
}

// LogoutAllSessions pushes forceLogout to every live connection the user
// owns, on any device. Best-effort like Logout; an offline user simply has
// no sessions to end.
func (s *Service) LogoutAllSessions(ctx context.Context, userID string) {
	s.emitForceLogout(userID, "all sessions logged out")
	s.log.Info("account.logout_all", "user_id", userID)
}

// ForceLogoutAll broadcasts a logout to every connected user. Admin only;
// the HTTP layer enforces the role.
func (s *Service) ForceLogoutAll(ctx context.Context, reason string) {
	if s.broadcast == nil {
		return
	}
	if strings.TrimSpace(reason) == "" {
		reason = "session terminated"
	}
	s.broadcast.EmitGlobal(realtime.NewForceLogout(reason, s.now()))
	s.log.Warn("account.force_logout_all", "reason", reason)
}

func (s *Service) emitForceLogout(userID, reason string) {
	if s.broadcast == nil || userID == "" {
		return
	}
	delivered := s.broadcast.EmitToUser(userID, realtime.NewForceLogout(reason, s.now()))
	if !delivered {
		s.log.Debug("account.force_logout.offline", "user_id", userID)
	}
}

// AccountView is the authenticated user's own account snapshot.
type AccountView struct {
	User    identity.User
	Profile identity.Profile
	Roles   []identity.Role
}

// CurrentUser assembles the /me view.
func (s *Service) CurrentUser(ctx context.Context, userID string) (AccountView, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return AccountView{}, err
	}
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil && !identity.IsNotFound(err) {
		return AccountView{}, err
	}
	roles, err := s.store.RoleDetailsFor(ctx, userID)
	if err != nil {
		return AccountView{}, err
	}
	return AccountView{User: user, Profile: profile, Roles: roles}, nil
}
