package passkey

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/keygate"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

var (
	// ErrCloneDetected is returned when an assertion carries a signature
	// counter that did not advance past the stored one.
	ErrCloneDetected = errors.New("passkey: authenticator clone warning")
	// ErrUserHandleMismatch is returned when the assertion names a different
	// principal than the credential it was signed with.
	ErrUserHandleMismatch = errors.New("passkey: user handle mismatch")
)

type passkeyProvider interface {
	BeginRegistration(user webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error)
	CreateCredential(user webauthn.User, session webauthn.SessionData, parsedResponse *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error)
	BeginDiscoverableLogin(opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	ValidatePasskeyLogin(handler webauthn.DiscoverableUserHandler, session webauthn.SessionData, parsedResponse *protocol.ParsedCredentialAssertionData) (webauthn.User, *webauthn.Credential, error)
}

type passkeyParser interface {
	ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error)
	ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error)
}

type defaultPasskeyParser struct{}

func (defaultPasskeyParser) ParseCredentialCreationResponseBytes(data []byte) (*protocol.ParsedCredentialCreationData, error) {
	return protocol.ParseCredentialCreationResponseBytes(data)
}

func (defaultPasskeyParser) ParseCredentialRequestResponseBytes(data []byte) (*protocol.ParsedCredentialAssertionData, error) {
	return protocol.ParseCredentialRequestResponseBytes(data)
}

// Verifier runs WebAuthn ceremonies for a single relying party.
type Verifier struct {
	rpID     string
	provider passkeyProvider
	parser   passkeyParser
}

var _ keygate.CredentialVerifier = (*Verifier)(nil)

// New builds a Verifier for the relying party described by cfg.
func New(cfg keygate.PasskeyConfig) (*Verifier, error) {
	rpID := strings.TrimSpace(cfg.RPID)
	if rpID == "" {
		return nil, errors.New("passkey: relying party id is required")
	}
	if len(cfg.RPOrigins) == 0 {
		return nil, errors.New("passkey: at least one origin is required")
	}
	displayName := strings.TrimSpace(cfg.RPDisplayName)
	if displayName == "" {
		displayName = rpID
	}

	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: displayName,
		RPID:          rpID,
		RPOrigins:     append([]string(nil), cfg.RPOrigins...),
	})
	if err != nil {
		return nil, fmt.Errorf("passkey: init webauthn: %w", err)
	}
	return &Verifier{rpID: rpID, provider: wa, parser: defaultPasskeyParser{}}, nil
}

// RelyingPartyID returns the configured RP id.
func (v *Verifier) RelyingPartyID() string {
	return v.rpID
}

// BeginRegistration starts a resident-key registration ceremony for subject.
func (v *Verifier) BeginRegistration(_ context.Context, subject keygate.RegistrationSubject) (*keygate.Ceremony, error) {
	if subject.PrincipalID == "" {
		return nil, errors.New("passkey: principal id is required")
	}
	u := &user{id: subject.PrincipalID, name: subject.DisplayName}
	creation, session, err := v.provider.BeginRegistration(u,
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
	)
	if err != nil {
		return nil, fmt.Errorf("passkey: begin registration: %w", err)
	}
	return ceremony(creation, session)
}

// FinishRegistration verifies an attestation response against state.
func (v *Verifier) FinishRegistration(_ context.Context, subject keygate.RegistrationSubject, state []byte, response []byte) (*keygate.VerifiedCredential, error) {
	session, err := decodeSession(state)
	if err != nil {
		return nil, err
	}
	parsed, err := v.parser.ParseCredentialCreationResponseBytes(response)
	if err != nil {
		return nil, fmt.Errorf("passkey: parse attestation: %w", err)
	}

	u := &user{id: subject.PrincipalID, name: subject.DisplayName}
	credential, err := v.provider.CreateCredential(u, *session, parsed)
	if err != nil {
		return nil, fmt.Errorf("passkey: create credential: %w", err)
	}
	if len(credential.ID) == 0 {
		return nil, errors.New("passkey: credential id is empty")
	}

	attributes, err := json.Marshal(credential)
	if err != nil {
		return nil, fmt.Errorf("passkey: encode credential: %w", err)
	}
	return &keygate.VerifiedCredential{
		CredentialID: base64.RawURLEncoding.EncodeToString(credential.ID),
		PublicKey:    credential.PublicKey,
		SignCount:    credential.Authenticator.SignCount,
		Attributes:   attributes,
	}, nil
}

// BeginAuthentication starts a discoverable login ceremony.
func (v *Verifier) BeginAuthentication(context.Context) (*keygate.Ceremony, error) {
	assertion, session, err := v.provider.BeginDiscoverableLogin()
	if err != nil {
		return nil, fmt.Errorf("passkey: begin login: %w", err)
	}
	return ceremony(assertion, session)
}

// ParseAssertion reads the credential id and challenge from an assertion
// response without verifying it.
func (v *Verifier) ParseAssertion(response []byte) (*keygate.AssertionInfo, error) {
	parsed, err := v.parser.ParseCredentialRequestResponseBytes(response)
	if err != nil {
		return nil, fmt.Errorf("passkey: parse assertion: %w", err)
	}
	if len(parsed.RawID) == 0 {
		return nil, errors.New("passkey: assertion has no credential id")
	}
	return &keygate.AssertionInfo{
		CredentialID: base64.RawURLEncoding.EncodeToString(parsed.RawID),
		Challenge:    parsed.Response.CollectedClientData.Challenge,
	}, nil
}

// FinishAuthentication verifies an assertion response against state and
// the stored credential.
func (v *Verifier) FinishAuthentication(_ context.Context, state []byte, cred keygate.StoredCredential, response []byte) (*keygate.AssertionResult, error) {
	session, err := decodeSession(state)
	if err != nil {
		return nil, err
	}
	var stored webauthn.Credential
	if err := json.Unmarshal(cred.Attributes, &stored); err != nil {
		return nil, fmt.Errorf("passkey: decode stored credential: %w", err)
	}
	// The store owns the counter; attributes may lag behind it.
	stored.Authenticator.SignCount = cred.SignCount

	parsed, err := v.parser.ParseCredentialRequestResponseBytes(response)
	if err != nil {
		return nil, fmt.Errorf("passkey: parse assertion: %w", err)
	}

	owner := &user{
		id:          cred.PrincipalID,
		name:        cred.DisplayName,
		credentials: []webauthn.Credential{stored},
	}
	handler := func(rawID, userHandle []byte) (webauthn.User, error) {
		if string(userHandle) != cred.PrincipalID || !bytes.Equal(rawID, stored.ID) {
			return nil, ErrUserHandleMismatch
		}
		return owner, nil
	}

	_, credential, err := v.provider.ValidatePasskeyLogin(handler, *session, parsed)
	if err != nil {
		return nil, fmt.Errorf("passkey: validate login: %w", err)
	}
	if credential.Authenticator.CloneWarning {
		return nil, ErrCloneDetected
	}

	attributes, err := json.Marshal(credential)
	if err != nil {
		return nil, fmt.Errorf("passkey: encode credential: %w", err)
	}
	return &keygate.AssertionResult{
		SignCount:  credential.Authenticator.SignCount,
		Attributes: attributes,
	}, nil
}

func ceremony(options any, session *webauthn.SessionData) (*keygate.Ceremony, error) {
	if session == nil || session.Challenge == "" {
		return nil, errors.New("passkey: webauthn returned no challenge")
	}
	optionsJSON, err := json.Marshal(options)
	if err != nil {
		return nil, fmt.Errorf("passkey: encode options: %w", err)
	}
	state, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("passkey: encode session: %w", err)
	}
	return &keygate.Ceremony{
		Challenge: session.Challenge,
		Options:   optionsJSON,
		State:     state,
	}, nil
}

func decodeSession(state []byte) (*webauthn.SessionData, error) {
	if len(state) == 0 {
		return nil, errors.New("passkey: missing ceremony state")
	}
	var session webauthn.SessionData
	if err := json.Unmarshal(state, &session); err != nil {
		return nil, fmt.Errorf("passkey: decode session: %w", err)
	}
	return &session, nil
}
