package account

import "errors"

// Sentinel errors mapped to API responses by the HTTP layer.
var (
	// ErrInvalidCredentials covers unknown email and wrong password alike,
	// so responses do not leak which accounts exist.
	ErrInvalidCredentials = errors.New("account: invalid credentials")

	// ErrNotVerified is distinct from ErrInvalidCredentials: the password
	// was right but the email was never confirmed.
	ErrNotVerified = errors.New("account: email not verified")

	// ErrEmailTaken reports a registration against an existing email.
	ErrEmailTaken = errors.New("account: email already registered")

	// ErrCodeInvalid reports a one-time code that matches no live entry.
	ErrCodeInvalid = errors.New("account: invalid code")

	// ErrCodeExpired reports a one-time code whose window has closed.
	ErrCodeExpired = errors.New("account: code expired")

	// ErrSamePassword rejects a reset to the password already in use.
	ErrSamePassword = errors.New("account: new password matches current password")

	// ErrWeakPassword reports a password outside the accepted policy.
	ErrWeakPassword = errors.New("account: password does not meet policy")

	// ErrAlreadyVerified reports a verification attempt on a confirmed
	// account.
	ErrAlreadyVerified = errors.New("account: email already verified")
)
