package token

import "errors"

var (
	// ErrConfig indicates invalid or missing token configuration.
	ErrConfig = errors.New("token: invalid config")

	// ErrTokenInvalid covers malformed tokens, wrong signatures, wrong
	// signing algorithms, and claim mismatches.
	ErrTokenInvalid = errors.New("token: invalid")

	// ErrTokenExpired is returned for structurally valid, correctly signed
	// tokens whose lifetime has passed. Kept distinct from ErrTokenInvalid
	// so the authentication gate can attempt a silent refresh.
	ErrTokenExpired = errors.New("token: expired")
)
