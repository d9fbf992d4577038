// Package middleware exposes HTTP guards that admit a request only when it
// carries a valid keygate session cookie.
//
// # Guards
//
//   - [RequireAdmin]: admin token cookie, checked with Engine.ValidateAdmin.
//   - [RequireSession]: user session cookie, checked with Engine.SessionPrincipal.
//
// Each guard reads its cookie, delegates the decision to the Engine, and
// injects the validated session into the request context.
//
// # What this package must NOT do
//
//   - Parse or sign admin tokens directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Trust any client-supplied flag in place of a server-side session.
package middleware
