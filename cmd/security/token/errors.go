package token

import "errors"

// ErrEntropyUnavailable is returned when the system randomness source fails.
var ErrEntropyUnavailable = errors.New("randomness source unavailable")
