package account

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"plume/cmd/identity"
	authtoken "plume/cmd/internal/auth/token"
	v1 "plume/shared/contracts/realtime/v1"
)

type captureMailer struct {
	mu         sync.Mutex
	verifyCode string
	resetCode  string
}

func (m *captureMailer) SendVerificationCode(_ context.Context, _ string, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifyCode = code
	return nil
}

func (m *captureMailer) SendPasswordReset(_ context.Context, _ string, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetCode = code
	return nil
}

func (m *captureMailer) last() (string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verifyCode, m.resetCode
}

type recorderBroadcast struct {
	mu      sync.Mutex
	user    []v1.Envelope
	global  []v1.Envelope
	offline bool
	signal  chan v1.Envelope
}

func newRecorder() *recorderBroadcast {
	return &recorderBroadcast{signal: make(chan v1.Envelope, 16)}
}

func (r *recorderBroadcast) EmitToUser(_ string, env v1.Envelope) bool {
	r.mu.Lock()
	r.user = append(r.user, env)
	r.mu.Unlock()
	r.signal <- env
	return !r.offline
}

func (r *recorderBroadcast) EmitGlobal(env v1.Envelope) {
	r.mu.Lock()
	r.global = append(r.global, env)
	r.mu.Unlock()
	r.signal <- env
}

func (r *recorderBroadcast) userEvents() []v1.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]v1.Envelope(nil), r.user...)
}

func fastArgon(t *testing.T) {
	t.Helper()
	t.Setenv("PLUME_ARGON2_MEMORY_KIB", "8192")
	t.Setenv("PLUME_ARGON2_ITERATIONS", "1")
}

func newTestService(t *testing.T, cfg Config) (*Service, *identity.MemoryStore, *captureMailer, *recorderBroadcast) {
	t.Helper()
	fastArgon(t)

	tcfg := authtoken.DefaultConfig()
	tcfg.AccessSecret = strings.Repeat("a", 32)
	tcfg.RefreshSecret = strings.Repeat("r", 32)
	tcfg.ClockSkew = 0
	mgr, err := authtoken.NewManager(tcfg)
	require.NoError(t, err)

	store := identity.NewMemoryStore()
	mailer := &captureMailer{}
	rec := newRecorder()

	svc, err := NewService(store, mgr, rec, mailer, cfg, nil)
	require.NoError(t, err)
	return svc, store, mailer, rec
}

func registerVerified(t *testing.T, svc *Service, mailer *captureMailer, email, password string) identity.User {
	t.Helper()
	ctx := context.Background()

	_, err := svc.Register(ctx, email, password)
	require.NoError(t, err)

	code, _ := mailer.last()
	require.NotEmpty(t, code)
	user, err := svc.VerifyEmail(ctx, email, code)
	require.NoError(t, err)
	require.True(t, user.Verified)
	return user
}

func TestRegisterFirstUserIsAdmin(t *testing.T) {
	svc, _, _, _ := newTestService(t, DefaultConfig())
	ctx := context.Background()

	first, err := svc.Register(ctx, "first@example.com", "correct horse battery")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{identity.RoleAdmin, identity.RoleUser}, first.Roles)
	require.NotEmpty(t, first.AccessToken)

	second, err := svc.Register(ctx, "second@example.com", "correct horse battery")
	require.NoError(t, err)
	require.Equal(t, []string{identity.RoleUser}, second.Roles)
}

func TestRegisterRejections(t *testing.T) {
	svc, _, _, _ := newTestService(t, DefaultConfig())
	ctx := context.Background()

	_, err := svc.Register(ctx, "not-an-email", "correct horse battery")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Register(ctx, "ada@example.com", "short")
	require.ErrorIs(t, err, ErrWeakPassword)

	_, err = svc.Register(ctx, "ada@example.com", "correct horse battery")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "ADA@example.com", "correct horse battery")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginLifecycle(t *testing.T) {
	svc, _, mailer, _ := newTestService(t, DefaultConfig())
	ctx := context.Background()

	_, err := svc.Register(ctx, "ada@example.com", "correct horse battery")
	require.NoError(t, err)

	// Unverified accounts are told so, not given a generic failure.
	_, err = svc.Login(ctx, "ada@example.com", "correct horse battery", false)
	require.ErrorIs(t, err, ErrNotVerified)

	code, _ := mailer.last()
	_, err = svc.VerifyEmail(ctx, "ada@example.com", code)
	require.NoError(t, err)

	_, err = svc.Login(ctx, "ada@example.com", "wrong password", false)
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody@example.com", "whatever password", false)
	require.ErrorIs(t, err, ErrInvalidCredentials)

	res, err := svc.Login(ctx, "ada@example.com", "correct horse battery", true)
	require.NoError(t, err)
	require.True(t, res.RememberMe)
	require.Len(t, res.Roles, 2) // first account: admin + user

	// Both credentials verify and the access token carries fresh roles.
	claims, err := svc.tokens.VerifyAccess(res.AccessToken)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"admin", "user"}, claims.Roles)
	_, err = svc.tokens.VerifyRefresh(res.RefreshToken)
	require.NoError(t, err)
}

func TestVerifyEmailCodes(t *testing.T) {
	svc, _, mailer, _ := newTestService(t, DefaultConfig())
	ctx := context.Background()

	_, err := svc.Register(ctx, "ada@example.com", "correct horse battery")
	require.NoError(t, err)
	firstCode, _ := mailer.last()
	require.Len(t, firstCode, 6)

	_, err = svc.VerifyEmail(ctx, "ada@example.com", "000000")
	require.ErrorIs(t, err, ErrCodeInvalid)

	// A resend overwrites the first code.
	require.NoError(t, svc.ResendVerification(ctx, "ada@example.com"))
	secondCode, _ := mailer.last()

	if firstCode != secondCode {
		_, err = svc.VerifyEmail(ctx, "ada@example.com", firstCode)
		require.ErrorIs(t, err, ErrCodeInvalid)
	}

	user, err := svc.VerifyEmail(ctx, "ada@example.com", secondCode)
	require.NoError(t, err)
	require.True(t, user.Verified)

	require.ErrorIs(t, svc.ResendVerification(ctx, "ada@example.com"), ErrAlreadyVerified)

	// Unknown emails get the same silence as success.
	require.NoError(t, svc.ResendVerification(ctx, "ghost@example.com"))
}

func TestPasswordResetFlow(t *testing.T) {
	svc, _, mailer, rec := newTestService(t, DefaultConfig())
	ctx := context.Background()

	registerVerified(t, svc, mailer, "ada@example.com", "correct horse battery")

	// Unknown email: silent success, nothing mailed.
	require.NoError(t, svc.RequestPasswordReset(ctx, "ghost@example.com"))
	_, resetCode := mailer.last()
	require.Empty(t, resetCode)

	require.NoError(t, svc.RequestPasswordReset(ctx, "ada@example.com"))
	_, code := mailer.last()
	require.NotEmpty(t, code)

	// An unknown code is rejected outright.
	require.ErrorIs(t, svc.ResetPassword(ctx, "bogus-code", "a whole new password"), ErrCodeInvalid)

	// Resetting to the current password is rejected.
	require.ErrorIs(t, svc.ResetPassword(ctx, code, "correct horse battery"), ErrSamePassword)

	require.NoError(t, svc.ResetPassword(ctx, code, "a whole new password"))

	// Completion cleared the ledger entry; the code cannot be replayed.
	require.ErrorIs(t, svc.ResetPassword(ctx, code, "yet another password"), ErrCodeInvalid)

	// Other sessions were told to re-authenticate.
	var sawForceLogout bool
	for _, env := range rec.userEvents() {
		if env.Event == v1.EventForceLogout {
			sawForceLogout = true
		}
	}
	require.True(t, sawForceLogout)

	_, err := svc.Login(ctx, "ada@example.com", "correct horse battery", false)
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "ada@example.com", "a whole new password", false)
	require.NoError(t, err)
}

func TestPasswordResetOverwrite(t *testing.T) {
	svc, _, mailer, _ := newTestService(t, DefaultConfig())
	ctx := context.Background()

	registerVerified(t, svc, mailer, "ada@example.com", "correct horse battery")

	require.NoError(t, svc.RequestPasswordReset(ctx, "ada@example.com"))
	_, firstCode := mailer.last()

	require.NoError(t, svc.RequestPasswordReset(ctx, "ada@example.com"))
	_, secondCode := mailer.last()
	require.NotEqual(t, firstCode, secondCode)

	// Only the latest request is live.
	require.ErrorIs(t, svc.ResetPassword(ctx, firstCode, "a whole new password"), ErrCodeInvalid)
	require.NoError(t, svc.ResetPassword(ctx, secondCode, "a whole new password"))
}

func TestPasswordResetExpiryAnnouncement(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ResetTTL = 30 * time.Millisecond
	svc, _, mailer, rec := newTestService(t, cfg)
	ctx := context.Background()

	user := registerVerified(t, svc, mailer, "ada@example.com", "correct horse battery")

	require.NoError(t, svc.RequestPasswordReset(ctx, "ada@example.com"))

	// The timer fires one reset lifetime later and announces the expiry
	// over the user's connections, even though nothing consumed the reset.
	select {
	case env := <-rec.signal:
		require.Equal(t, v1.TypeEvent, env.Type)
		require.Equal(t, v1.EventPasswordResetExpired, env.Event)
		require.Contains(t, string(env.Payload), user.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("expiry announcement never arrived")
	}
}

func TestPasswordResetExpiredCode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ResetTTL = time.Nanosecond
	svc, _, mailer, rec := newTestService(t, cfg)
	ctx := context.Background()

	user := registerVerified(t, svc, mailer, "ada@example.com", "correct horse battery")
	require.NoError(t, svc.RequestPasswordReset(ctx, "ada@example.com"))
	_, code := mailer.last()

	time.Sleep(time.Millisecond)
	require.ErrorIs(t, svc.ResetPassword(ctx, code, "a whole new password"), ErrCodeExpired)

	// The failed consume itself announces the expiry; the user hears about
	// it even if the deferred timer already spoke.
	deadline := time.After(2 * time.Second)
	expiries := 0
	for expiries < 2 {
		select {
		case env := <-rec.signal:
			if env.Event == v1.EventPasswordResetExpired {
				require.Contains(t, string(env.Payload), user.ID)
				expiries++
			}
		case <-deadline:
			t.Fatalf("saw %d expiry announcements, want 2", expiries)
		}
	}
}

func TestRefreshReReadsRoles(t *testing.T) {
	svc, store, mailer, _ := newTestService(t, DefaultConfig())
	ctx := context.Background()

	user := registerVerified(t, svc, mailer, "ada@example.com", "correct horse battery")
	res, err := svc.Login(ctx, "ada@example.com", "correct horse battery", false)
	require.NoError(t, err)

	out, err := svc.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"admin", "user"}, out.Roles)

	// Revocations land on the next refresh without touching issued tokens.
	require.NoError(t, store.RevokeAllRoles(user.ID))
	out, err = svc.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	require.Empty(t, out.Roles)

	_, err = svc.Refresh(ctx, "garbage")
	require.Error(t, err)
}

func TestLogoutNotifies(t *testing.T) {
	svc, _, mailer, rec := newTestService(t, DefaultConfig())
	ctx := context.Background()

	user := registerVerified(t, svc, mailer, "ada@example.com", "correct horse battery")
	svc.Logout(ctx, user.ID)

	events := rec.userEvents()
	require.NotEmpty(t, events)
	require.Equal(t, v1.EventForceLogout, events[len(events)-1].Event)

	// Logging out every session stays scoped to the one user; nothing goes
	// over the global channel.
	svc.LogoutAllSessions(ctx, user.ID)
	events = rec.userEvents()
	require.Equal(t, v1.EventForceLogout, events[len(events)-1].Event)
	rec.mu.Lock()
	global := len(rec.global)
	rec.mu.Unlock()
	require.Equal(t, 0, global)

	svc.ForceLogoutAll(ctx, "maintenance")
	rec.mu.Lock()
	global = len(rec.global)
	rec.mu.Unlock()
	require.Equal(t, 1, global)
}

func TestCurrentUser(t *testing.T) {
	svc, _, mailer, _ := newTestService(t, DefaultConfig())
	ctx := context.Background()

	user := registerVerified(t, svc, mailer, "ada@example.com", "correct horse battery")

	view, err := svc.CurrentUser(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, user.ID, view.User.ID)
	require.Equal(t, user.ID, view.Profile.UserID)
	require.Len(t, view.Roles, 2)

	_, err = svc.CurrentUser(ctx, "missing")
	require.Error(t, err)
}
