// Package gate is the authentication middleware guarding protected routes.
//
// Credential extraction prefers the access cookie and falls back to an
// Authorization bearer header. Outcomes are deliberately distinct:
//
//   - no credential at all: 401, the client should log in.
//   - malformed or forged credential: 403, no recovery attempted.
//   - authentic but expired credential: one silent refresh attempt using
//     the refresh cookie; success replaces the access cookie on the
//     response and lets the request through, failure is 403.
//   - authentic credential with zero roles: 403, authentication is not
//     authorization.
//
// The silent refresh re-reads role grants from the identity store, so a
// revoked role takes effect at the next refresh even though outstanding
// access tokens are not tracked server side.
package gate
