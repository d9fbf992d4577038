package flows

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"
)

// RegistrationInvite is the flow-local view of a redeemable invite.
type RegistrationInvite struct {
	Token          string
	RecipientLabel string
	ExpiresAt      time.Time
}

// RegistrationCeremony is the pending registration state kept between the
// two phases, keyed by invite token.
type RegistrationCeremony struct {
	PrincipalID string
	DisplayName string
	Challenge   string
	State       []byte
}

// RegistrationCredential is what the verifier extracts from a valid
// attestation.
type RegistrationCredential struct {
	CredentialID string
	PublicKey    []byte
	SignCount    uint32
	Attributes   []byte
}

// RegistrationBeginResult is returned by RunBeginRegistration.
type RegistrationBeginResult struct {
	PrincipalID string
	DisplayName string
	Challenge   string
	Options     []byte
}

// RegistrationCompleteResult is returned by RunCompleteRegistration.
type RegistrationCompleteResult struct {
	PrincipalID      string
	DisplayName      string
	CredentialID     string
	SessionID        string
	SessionExpiresAt time.Time
}

// RegistrationMetrics carries metric IDs used by the registration flow.
type RegistrationMetrics struct {
	Started        int
	Completed      int
	Failed         int
	SessionCreated int
}

// RegistrationEvents carries audit action names used by the registration flow.
type RegistrationEvents struct {
	UserRegistered string
}

// RegistrationErrors carries host-level sentinel errors.
type RegistrationErrors struct {
	EngineNotReady     error
	InvalidRequest     error
	ChallengeInvalid   error
	VerificationFailed error
}

// RegistrationDeps captures registration dependencies. Store-backed
// functions are expected to return host errors already mapped.
type RegistrationDeps struct {
	ChallengeTTL time.Duration
	Now          func() time.Time

	LookupInvite   func(context.Context, string) (*RegistrationInvite, error)
	NewPrincipalID func() string
	BeginCeremony  func(ctx context.Context, principalID, displayName string) (challenge string, options []byte, state []byte, err error)
	FinishCeremony func(ctx context.Context, pending RegistrationCeremony, response []byte) (*RegistrationCredential, error)
	SaveCeremony    func(context.Context, string, RegistrationCeremony, time.Duration) error
	LoadCeremony    func(context.Context, string) (*RegistrationCeremony, error)
	DiscardCeremony func(context.Context, string) error
	// Commit must consume the invite and drop the pending ceremony atomically.
	Commit func(ctx context.Context, token string, pending RegistrationCeremony, cred *RegistrationCredential) error
	IssueSession   func(ctx context.Context, principalID string) (string, time.Time, error)

	MetricInc func(int)
	EmitAudit func(ctx context.Context, action, actor, details string)
	Warn      func(ctx context.Context, msg string, args ...any)

	Metrics RegistrationMetrics
	Events  RegistrationEvents
	Errors  RegistrationErrors
}

func (d *RegistrationDeps) defaults() {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.MetricInc == nil {
		d.MetricInc = func(int) {}
	}
	if d.EmitAudit == nil {
		d.EmitAudit = func(context.Context, string, string, string) {}
	}
	if d.Warn == nil {
		d.Warn = func(context.Context, string, ...any) {}
	}
}

func (d *RegistrationDeps) ready() bool {
	return d.LookupInvite != nil &&
		d.NewPrincipalID != nil &&
		d.BeginCeremony != nil &&
		d.FinishCeremony != nil &&
		d.SaveCeremony != nil &&
		d.LoadCeremony != nil &&
		d.DiscardCeremony != nil &&
		d.Commit != nil &&
		d.IssueSession != nil &&
		d.ChallengeTTL > 0
}

func (d *RegistrationDeps) discard(ctx context.Context, token string) {
	if err := d.DiscardCeremony(ctx, token); err != nil {
		d.Warn(ctx, "registration ceremony discard failed", "err", err)
	}
}

// RunBeginRegistration validates the invite without consuming it, mints a
// principal id and stores the verifier state under the invite token. A
// second call for the same token replaces the pending ceremony.
func RunBeginRegistration(ctx context.Context, token string, deps RegistrationDeps) (*RegistrationBeginResult, error) {
	deps.defaults()
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}
	if token == "" {
		return nil, deps.Errors.InvalidRequest
	}

	invite, err := deps.LookupInvite(ctx, token)
	if err != nil {
		return nil, err
	}

	principalID := deps.NewPrincipalID()
	displayName := DisplayName(invite.RecipientLabel)

	var (
		challenge string
		options   []byte
		state     []byte
	)
	err = guardVerifier(deps.Errors.VerificationFailed, func() error {
		var callErr error
		challenge, options, state, callErr = deps.BeginCeremony(ctx, principalID, displayName)
		return callErr
	})
	if err != nil {
		deps.Warn(ctx, "registration options failed", "err", err)
		return nil, err
	}

	pending := RegistrationCeremony{
		PrincipalID: principalID,
		DisplayName: displayName,
		Challenge:   challenge,
		State:       state,
	}
	if err := deps.SaveCeremony(ctx, invite.Token, pending, deps.ChallengeTTL); err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.Started)
	return &RegistrationBeginResult{
		PrincipalID: principalID,
		DisplayName: displayName,
		Challenge:   challenge,
		Options:     options,
	}, nil
}

// RunCompleteRegistration verifies the attestation against the pending
// ceremony and, on success, commits the credential and consumes the invite
// in one step before issuing a session. A verification failure burns the
// ceremony but leaves the invite redeemable. Callers that lose a race for
// the same invite get the invite lookup error.
func RunCompleteRegistration(ctx context.Context, token string, response []byte, echoedChallenge string, deps RegistrationDeps) (*RegistrationCompleteResult, error) {
	deps.defaults()
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}
	if token == "" || len(response) == 0 {
		return nil, deps.Errors.InvalidRequest
	}

	invite, err := deps.LookupInvite(ctx, token)
	if err != nil {
		deps.MetricInc(deps.Metrics.Failed)
		return nil, err
	}

	pending, err := deps.LoadCeremony(ctx, invite.Token)
	if err != nil {
		deps.MetricInc(deps.Metrics.Failed)
		if errors.Is(err, deps.Errors.ChallengeInvalid) {
			// The ceremony is gone once a concurrent redemption commits.
			if _, lookupErr := deps.LookupInvite(ctx, token); lookupErr != nil {
				return nil, lookupErr
			}
		}
		return nil, err
	}
	if echoedChallenge != "" && subtle.ConstantTimeCompare([]byte(echoedChallenge), []byte(pending.Challenge)) != 1 {
		deps.MetricInc(deps.Metrics.Failed)
		deps.discard(ctx, invite.Token)
		return nil, deps.Errors.ChallengeInvalid
	}

	var cred *RegistrationCredential
	err = guardVerifier(deps.Errors.VerificationFailed, func() error {
		var callErr error
		cred, callErr = deps.FinishCeremony(ctx, *pending, response)
		return callErr
	})
	if err == nil && (cred == nil || cred.CredentialID == "") {
		err = deps.Errors.VerificationFailed
	}
	if err != nil {
		deps.MetricInc(deps.Metrics.Failed)
		deps.discard(ctx, invite.Token)
		return nil, err
	}

	if err := deps.Commit(ctx, invite.Token, *pending, cred); err != nil {
		deps.MetricInc(deps.Metrics.Failed)
		return nil, err
	}
	deps.MetricInc(deps.Metrics.Completed)
	deps.EmitAudit(ctx, deps.Events.UserRegistered, pending.DisplayName, "Registered agent "+pending.DisplayName)

	result := &RegistrationCompleteResult{
		PrincipalID:  pending.PrincipalID,
		DisplayName:  pending.DisplayName,
		CredentialID: cred.CredentialID,
	}

	sid, expiresAt, err := deps.IssueSession(ctx, pending.PrincipalID)
	if err != nil {
		deps.Warn(ctx, "session issue after registration failed", "principal_id", pending.PrincipalID, "err", err)
		return result, err
	}
	deps.MetricInc(deps.Metrics.SessionCreated)
	result.SessionID = sid
	result.SessionExpiresAt = expiresAt
	return result, nil
}
