// Package password provides Argon2id password hashing for Plume.
//
// Hashes use a PHC-style encoded string so parameters travel with the hash:
//
//	$argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
//
// Security notes:
//   - Encoded hashes are treated as untrusted input during Verify.
//   - Verification refuses hashes whose parameters exceed sane bounds,
//     so attacker-supplied hash strings cannot trigger pathological cost.
package password
