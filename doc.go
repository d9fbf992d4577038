// Package keygate gates an application behind single-use invite tokens and
// passkey (WebAuthn) sign-in, with Redis-backed sessions, a lockout policy
// and a durable audit log.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Flows
//
// The administrator signs in with [Engine.AdminLogin] and issues invites
// with [Engine.IssueInvite]. An invitee redeems the token in two phases,
// [Engine.BeginRegistration] then [Engine.CompleteRegistration], which
// binds exactly one passkey to a new principal. Returning principals sign in
// with [Engine.BeginAuthentication] and [Engine.CompleteAuthentication].
// Each successful ceremony issues a bearer session validated by
// [Engine.ValidateSession].
//
// # Architecture boundaries
//
// keygate is the public surface. Stores, ceremony orchestration and the
// lockout policy live under internal/. WebAuthn cryptography is behind
// [CredentialVerifier]; package passkey provides the go-webauthn
// implementation. Package httpapi serves the JSON API over net/http.
//
// # Errors
//
// Every error returned by an Engine method matches one of the sentinels in
// errors.go. [Category] maps them to stable machine-readable names.
package keygate
