// Package stores provides the Redis-backed persistence behind keygate:
// invite tokens, principal credentials, pending WebAuthn ceremonies and the
// audit log.
//
// # Design
//
// Invites and credentials are Redis hashes. Every mutation that must be
// atomic runs as a Lua script: registration commit re-validates the invite,
// enforces the unique credential index, writes the credential and marks the
// invite consumed in one step; failure and success bookkeeping on a
// credential are single scripts so concurrent sign-ins never lose updates.
// Pending ceremonies are versioned binary records read-and-deleted by a
// script, so each challenge is redeemable once.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control only. It does NOT
// generate tokens, verify signatures, or decide lockout policy; callers pass
// the clock and thresholds in.
//
// # What this package must NOT do
//
//   - Import keygate or any sibling internal package.
//   - Log or expose ceremony state.
package stores
