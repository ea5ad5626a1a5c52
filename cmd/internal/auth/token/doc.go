// Package token issues and verifies Plume's signed credentials.
//
// Two self-contained JWT credential types exist, signed with HMAC-SHA256
// under two independent secrets:
//
//   - access tokens carry {uid, email, roles} and a short lifetime; they are
//     the proof of identity attached to every protected request.
//   - refresh tokens carry {uid, email} only and a long lifetime; they exist
//     solely to mint a replacement access token and are never accepted as
//     proof of identity.
//
// No server-side session state backs either credential. Verification is
// signature + expiry only; role grants are re-read from the identity store
// at every issuance so revocation takes effect on the next refresh.
package token
