package flows

import (
	"context"
	"crypto/subtle"
	"errors"
	"strconv"
	"time"
)

// AuthCredential is the flow-local view of a stored credential.
type AuthCredential struct {
	PrincipalID    string
	DisplayName    string
	CredentialID   string
	PublicKey      []byte
	SignCount      uint32
	Attributes     []byte
	FailedAttempts int
	LockedUntil    time.Time
}

// AuthAssertion identifies the credential and challenge an assertion claims.
type AuthAssertion struct {
	CredentialID string
	Challenge    string
}

// AuthVerified is the verifier's result for a valid assertion.
type AuthVerified struct {
	SignCount  uint32
	Attributes []byte
}

// AuthFailure is the persisted outcome of a failed assertion.
type AuthFailure struct {
	FailedAttempts int
	Locked         bool
	LockedUntil    time.Time
}

// AuthBeginResult is returned by RunBeginAuthentication.
type AuthBeginResult struct {
	Challenge string
	Options   []byte
}

// AuthCompleteResult is returned by RunCompleteAuthentication.
type AuthCompleteResult struct {
	PrincipalID      string
	DisplayName      string
	CredentialID     string
	SessionID        string
	SessionExpiresAt time.Time
}

// AuthMetrics carries metric IDs used by the authentication flow.
type AuthMetrics struct {
	Success        int
	Failure        int
	LockedReject   int
	AccountLocked  int
	SessionCreated int
	Latency        int
}

// AuthEvents carries audit action names used by the authentication flow.
type AuthEvents struct {
	LoginSuccess  string
	LoginFailed   string
	AccountLocked string
}

// AuthErrors carries host-level sentinel errors.
type AuthErrors struct {
	EngineNotReady     error
	InvalidRequest     error
	ChallengeInvalid   error
	VerificationFailed error
}

// AuthenticationDeps captures sign-in dependencies.
type AuthenticationDeps struct {
	ChallengeTTL time.Duration
	Now          func() time.Time

	BeginCeremony  func(context.Context) (challenge string, options []byte, state []byte, err error)
	ParseAssertion func([]byte) (*AuthAssertion, error)
	FinishCeremony func(ctx context.Context, state []byte, cred AuthCredential, response []byte) (*AuthVerified, error)
	SaveCeremony   func(context.Context, string, []byte, time.Duration) error
	TakeCeremony   func(context.Context, string) ([]byte, error)

	GetCredential func(context.Context, string) (*AuthCredential, error)
	CheckLockout  func(lockedUntil, now time.Time) error
	RecordSuccess func(ctx context.Context, principalID string, signCount uint32, attributes []byte) error
	RecordFailure func(ctx context.Context, principalID string, now time.Time) (AuthFailure, error)
	IssueSession  func(ctx context.Context, principalID string) (string, time.Time, error)

	MetricInc func(int)
	Observe   func(int, time.Duration)
	EmitAudit func(ctx context.Context, action, actor, details string)
	Warn      func(ctx context.Context, msg string, args ...any)

	Metrics AuthMetrics
	Events  AuthEvents
	Errors  AuthErrors
}

func (d *AuthenticationDeps) defaults() {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.MetricInc == nil {
		d.MetricInc = func(int) {}
	}
	if d.Observe == nil {
		d.Observe = func(int, time.Duration) {}
	}
	if d.EmitAudit == nil {
		d.EmitAudit = func(context.Context, string, string, string) {}
	}
	if d.Warn == nil {
		d.Warn = func(context.Context, string, ...any) {}
	}
}

func (d *AuthenticationDeps) ready() bool {
	return d.BeginCeremony != nil &&
		d.ParseAssertion != nil &&
		d.FinishCeremony != nil &&
		d.SaveCeremony != nil &&
		d.TakeCeremony != nil &&
		d.GetCredential != nil &&
		d.CheckLockout != nil &&
		d.RecordSuccess != nil &&
		d.RecordFailure != nil &&
		d.IssueSession != nil &&
		d.ChallengeTTL > 0
}

// RunBeginAuthentication produces discoverable-credential assertion options
// and stores the verifier state under the challenge.
func RunBeginAuthentication(ctx context.Context, deps AuthenticationDeps) (*AuthBeginResult, error) {
	deps.defaults()
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}

	var (
		challenge string
		options   []byte
		state     []byte
	)
	err := guardVerifier(deps.Errors.VerificationFailed, func() error {
		var callErr error
		challenge, options, state, callErr = deps.BeginCeremony(ctx)
		return callErr
	})
	if err != nil {
		deps.Warn(ctx, "authentication options failed", "err", err)
		return nil, err
	}
	if challenge == "" {
		return nil, deps.Errors.VerificationFailed
	}

	if err := deps.SaveCeremony(ctx, challenge, state, deps.ChallengeTTL); err != nil {
		return nil, err
	}
	return &AuthBeginResult{Challenge: challenge, Options: options}, nil
}

// RunCompleteAuthentication verifies an assertion. A locked credential is
// rejected without calling the verifier or mutating state. Every verifier
// failure is persisted before returning; the failure counter resets only on
// success, so a failure after the lockout window has passed locks again.
func RunCompleteAuthentication(ctx context.Context, response []byte, echoedChallenge string, deps AuthenticationDeps) (*AuthCompleteResult, error) {
	deps.defaults()
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}
	if len(response) == 0 {
		return nil, deps.Errors.InvalidRequest
	}

	start := deps.Now()
	defer func() {
		deps.Observe(deps.Metrics.Latency, deps.Now().Sub(start))
	}()

	var assertion *AuthAssertion
	err := guardVerifier(deps.Errors.VerificationFailed, func() error {
		var callErr error
		assertion, callErr = deps.ParseAssertion(response)
		return callErr
	})
	if err == nil && (assertion == nil || assertion.CredentialID == "") {
		err = deps.Errors.VerificationFailed
	}
	if err != nil {
		deps.MetricInc(deps.Metrics.Failure)
		return nil, err
	}

	challenge := assertion.Challenge
	if echoedChallenge != "" {
		if subtle.ConstantTimeCompare([]byte(echoedChallenge), []byte(assertion.Challenge)) != 1 {
			deps.MetricInc(deps.Metrics.Failure)
			return nil, deps.Errors.ChallengeInvalid
		}
		challenge = echoedChallenge
	}
	if challenge == "" {
		deps.MetricInc(deps.Metrics.Failure)
		return nil, deps.Errors.ChallengeInvalid
	}

	state, err := deps.TakeCeremony(ctx, challenge)
	if err != nil {
		deps.MetricInc(deps.Metrics.Failure)
		return nil, err
	}

	cred, err := deps.GetCredential(ctx, assertion.CredentialID)
	if err != nil {
		deps.MetricInc(deps.Metrics.Failure)
		return nil, err
	}

	now := deps.Now()
	if err := deps.CheckLockout(cred.LockedUntil, now); err != nil {
		deps.MetricInc(deps.Metrics.LockedReject)
		return nil, err
	}

	var verified *AuthVerified
	err = guardVerifier(deps.Errors.VerificationFailed, func() error {
		var callErr error
		verified, callErr = deps.FinishCeremony(ctx, state, *cred, response)
		return callErr
	})
	if err == nil && verified == nil {
		err = deps.Errors.VerificationFailed
	}
	if err == nil {
		err = deps.RecordSuccess(ctx, cred.PrincipalID, verified.SignCount, verified.Attributes)
		if err != nil && !errors.Is(err, deps.Errors.VerificationFailed) {
			deps.Warn(ctx, "record sign-in success failed", "principal_id", cred.PrincipalID, "err", err)
			return nil, err
		}
	}
	if err != nil {
		return nil, recordAuthFailure(ctx, cred, now, err, deps)
	}

	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, cred.DisplayName, "Agent "+cred.DisplayName+" signed in")

	result := &AuthCompleteResult{
		PrincipalID:  cred.PrincipalID,
		DisplayName:  cred.DisplayName,
		CredentialID: cred.CredentialID,
	}
	sid, expiresAt, err := deps.IssueSession(ctx, cred.PrincipalID)
	if err != nil {
		deps.Warn(ctx, "session issue after sign-in failed", "principal_id", cred.PrincipalID, "err", err)
		return nil, err
	}
	deps.MetricInc(deps.Metrics.SessionCreated)
	result.SessionID = sid
	result.SessionExpiresAt = expiresAt
	return result, nil
}

func recordAuthFailure(ctx context.Context, cred *AuthCredential, now time.Time, cause error, deps AuthenticationDeps) error {
	deps.MetricInc(deps.Metrics.Failure)

	failure, err := deps.RecordFailure(ctx, cred.PrincipalID, now)
	if err != nil {
		deps.Warn(ctx, "persist failed sign-in attempt", "principal_id", cred.PrincipalID, "err", err)
		return err
	}

	deps.EmitAudit(ctx, deps.Events.LoginFailed, cred.DisplayName,
		"Failed sign-in for agent "+cred.DisplayName+" (attempt "+strconv.Itoa(failure.FailedAttempts)+")")
	if failure.Locked {
		deps.MetricInc(deps.Metrics.AccountLocked)
		deps.EmitAudit(ctx, deps.Events.AccountLocked, cred.DisplayName,
			"Agent "+cred.DisplayName+" locked until "+failure.LockedUntil.UTC().Format(time.RFC3339))
	}
	return cause
}
