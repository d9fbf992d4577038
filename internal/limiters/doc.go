// Package limiters holds the sign-in lockout policy.
//
// # Lockout
//
// [Lockout] evaluates the counters persisted on a credential record: a
// credential whose lockout deadline is in the future is rejected before any
// signature verification, and a post-increment failure count at or above the
// threshold sets a new deadline. Counters reset only on a successful sign-in.
//
// # What this package must NOT do
//
//   - Import keygate or any sibling internal package.
//   - Persist anything: the credential store owns the counters.
package limiters
