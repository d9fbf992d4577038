package keygate

import (
	"context"
	"encoding/json"
)

// RegistrationSubject identifies the principal a new credential is bound to.
type RegistrationSubject struct {
	PrincipalID string
	DisplayName string
}

// Ceremony is a started WebAuthn ceremony. State is opaque verifier data
// stored server-side until the matching response arrives.
type Ceremony struct {
	Challenge string
	Options   json.RawMessage
	State     []byte
}

// VerifiedCredential is extracted from a verified attestation. Attributes
// is opaque verifier data needed to verify later assertions.
type VerifiedCredential struct {
	CredentialID string
	PublicKey    []byte
	SignCount    uint32
	Attributes   []byte
}

// StoredCredential is a registered credential handed back to the verifier.
type StoredCredential struct {
	PrincipalID  string
	DisplayName  string
	CredentialID string
	PublicKey    []byte
	SignCount    uint32
	Attributes   []byte
}

// AssertionInfo names the credential and challenge an assertion claims,
// before any signature check.
type AssertionInfo struct {
	CredentialID string
	Challenge    string
}

// AssertionResult is returned for a verified assertion.
type AssertionResult struct {
	SignCount  uint32
	Attributes []byte
}

// CredentialVerifier performs the WebAuthn cryptography. Any error or panic
// from a verifier is reported to callers as ErrVerificationFailed.
// Credential ids are base64url without padding.
type CredentialVerifier interface {
	RelyingPartyID() string
	BeginRegistration(ctx context.Context, subject RegistrationSubject) (*Ceremony, error)
	FinishRegistration(ctx context.Context, subject RegistrationSubject, state []byte, response []byte) (*VerifiedCredential, error)
	BeginAuthentication(ctx context.Context) (*Ceremony, error)
	ParseAssertion(response []byte) (*AssertionInfo, error)
	FinishAuthentication(ctx context.Context, state []byte, cred StoredCredential, response []byte) (*AssertionResult, error)
}
