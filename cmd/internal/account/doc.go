// Package account implements the user lifecycle: registration, email
// verification, login, password reset, and logout.
//
// The service owns the one-time code ledger semantics. Verification codes
// are six digits; password resets pair a public code (mailed to the user)
// with a private token whose SHA-256 digest is all the server stores.
// Each kind has at most one live entry per user, a reissue overwrites the
// previous entry, and consumption clears it.
//
// Every password reset request arms an uncancelled timer for the reset
// lifetime. When it fires it announces passwordResetTokenExpired over the
// user's realtime connections whether or not the reset was completed; the
// client treats it as a hint to refresh its reset UI, so a stale firing is
// harmless.
package account
