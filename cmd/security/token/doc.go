// Package token provides the random-value primitives behind Plume's one-time
// codes: opaque URL-safe tokens (password-reset links), short numeric codes
// (email verification), and the digests used to store secrets server-side.
//
// Security notes:
//   - All randomness comes from crypto/rand.
//   - Private tokens are never persisted in plaintext; callers store
//     HashSHA256Hex(token) and compare digests.
package token
