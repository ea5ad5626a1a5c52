// Package identity owns Plume's security principals: user accounts, their
// role grants, profiles, and the per-user one-time code ledger (email
// verification codes and password-reset code/token pairs).
//
// It exposes a storage-agnostic Store interface with two implementations:
// PostgresStore for production and MemoryStore for development and tests.
// Credential issuance and request authorization live elsewhere
// (cmd/internal/auth); this package is purely the persistence boundary.
package identity
