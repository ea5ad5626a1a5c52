package account

import (
	"context"
	"log/slog"
)

// Mailer delivers one-time codes to users. Implementations must not block
// beyond the context deadline; delivery failures are logged, not surfaced
// to the requester.
type Mailer interface {
	SendVerificationCode(ctx context.Context, email, code string) error
	SendPasswordReset(ctx context.Context, email, code string) error
}

// NoopMailer discards all mail. Used in tests.
type NoopMailer struct{}

func (NoopMailer) SendVerificationCode(context.Context, string, string) error { return nil }
func (NoopMailer) SendPasswordReset(context.Context, string, string) error    { return nil }

// LogMailer writes codes to the log instead of sending mail. Development
// only; it puts secrets in the log stream and must never run in production.
type LogMailer struct {
	Log *slog.Logger
}

func (m LogMailer) SendVerificationCode(_ context.Context, email, code string) error {
	m.logger().Info("mail.verification_code", "email", email, "code", code)
	return nil
}

func (m LogMailer) SendPasswordReset(_ context.Context, email, code string) error {
	m.logger().Info("mail.password_reset", "email", email, "code", code)
	return nil
}

func (m LogMailer) logger() *slog.Logger {
	if m.Log != nil {
		return m.Log
	}
	return slog.Default()
}
