// Package password hashes and verifies the admin password with Argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// The keygate binary's hash-password subcommand prints such a string for
// the KEYGATE_ADMIN_PASSWORD_HASH setting. [Argon2.NeedsUpgrade] reports
// hashes produced with weaker parameters than the configured ones.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other keygate package.
//   - Log plaintext passwords.
package password
