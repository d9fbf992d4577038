// Package session provides Redis-backed session persistence and compact binary session
// encoding for keygate's cookie sessions.
//
// # Binary encoding
//
// Sessions are stored as a versioned binary record {kind, principal, createdAt,
// expiresAt} under a key derived from the random session id. The Redis TTL and
// the absolute expiry inside the record are both enforced: a record read after
// its expiry is deleted and reported as [ErrExpired].
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session] model. It
// does NOT issue cookies, parse admin tokens, or decide who may hold a
// session; those responsibilities belong to the Engine and the HTTP layer.
//
// # What this package must NOT do
//
//   - Import keygate, jwt, or httpapi (no upward imports).
//   - Bind sessions to client IP or device.
//   - Store secrets in [Session] fields.
package session
