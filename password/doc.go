// Package password implements password hashing and verification with Argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// The key is derived from the length-prefixed username followed by the
// password, which binds every hash to one account.
//
// [Argon2.NeedsUpgrade] reports hashes produced with weaker parameters so
// the Engine can re-hash on the next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Enforce password policy. Minimum length is an Engine concern.
//   - Import any other goGate package.
package password
