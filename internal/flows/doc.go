// Package flows holds the registration and sign-in orchestration behind the
// keygate Engine.
//
// Each Run function takes a typed dependency struct of plain functions and
// returns a flow-local result. The Engine builds the dependency structs once
// and maps store errors onto its sentinel errors before they reach a flow.
//
// # Ordering rules
//
//   - An invite is only consumed by the Commit dependency, after the
//     verifier has accepted the attestation.
//   - A locked credential is rejected before the verifier is called.
//   - A failed assertion is always persisted through RecordFailure before
//     the flow returns.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import keygate (to avoid import cycles).
//   - Talk to Redis or the verifier directly; all I/O goes through deps.
package flows
