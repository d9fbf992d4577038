// Package internal contains helper utilities private to keygate,
// including secure random generation for session ids and invite tokens.
//
// # Sub-packages
//
//   - flows: pure-function orchestrators for registration and sign-in
//   - limiters: lockout policy evaluation for repeated sign-in failures
//   - logging: context-aware structured logger over log/slog
//   - rate: in-process per-IP fixed-window request limiter
//   - stores: Redis-backed invite, credential, ceremony and audit log stores
//
// # What this package must NOT do
//
//   - Export types that appear in the public keygate API.
//   - Be imported by any package outside the keygate module.
package internal
