package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
)

// NewOpaque returns a URL-safe random token of nBytes entropy
// (base64url, no padding). If nBytes <= 0 it defaults to 32.
func NewOpaque(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = 32
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", ErrEntropyUnavailable
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewDigits returns a zero-padded numeric code of n digits (e.g. "042517"),
// drawn uniformly from [0, 10^n). n is clamped to [4..10].
func NewDigits(n int) (string, error) {
	if n < 4 {
		n = 4
	}
	if n > 10 {
		n = 10
	}

	limit := big.NewInt(1)
	for i := 0; i < n; i++ {
		limit.Mul(limit, big.NewInt(10))
	}

	v, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", ErrEntropyUnavailable
	}
	return fmt.Sprintf("%0*d", n, v), nil
}

// HashSHA256Hex returns a SHA-256 hex digest of s.
// Used to store private reset tokens server-side without the plaintext.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Equal compares two token strings in constant time.
func Equal(a, b string) bool {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
