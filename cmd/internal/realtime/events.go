package realtime

import (
	"time"

	v1 "plume/shared/contracts/realtime/v1"
)

// NewForceLogout builds the envelope telling a user's connections to drop
// their credentials. reason is a short human-readable cause such as
// "password changed" or "logged out everywhere".
func NewForceLogout(reason string, now time.Time) v1.Envelope {
	env, err := v1.NewEventEnvelope(v1.EventForceLogout, NewEnvelopeID(now), now, v1.ForceLogoutPayload{
		Reason:    reason,
		Timestamp: now,
	})
	if err != nil {
		// Payload is a fixed struct; marshal cannot fail.
		panic(err)
	}
	return env
}

// NewPasswordResetExpired builds the envelope announcing that userID's
// password reset window has closed.
func NewPasswordResetExpired(userID string, now time.Time) v1.Envelope {
	env, err := v1.NewEventEnvelope(v1.EventPasswordResetExpired, NewEnvelopeID(now), now, v1.PasswordResetExpiredPayload{
		UserID: userID,
	})
	if err != nil {
		panic(err)
	}
	return env
}
