package keygate

import (
	"context"
	"time"

	"github.com/MrEthical07/keygate/internal/flows"
	"github.com/MrEthical07/keygate/internal/stores"
	"github.com/MrEthical07/keygate/session"
)

// BeginAuthentication returns discoverable-credential assertion options.
// The ceremony is stored under its challenge until ChallengeTTL elapses.
func (e *Engine) BeginAuthentication(ctx context.Context) (*AuthenticationOptions, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	res, err := flows.RunBeginAuthentication(ctx, e.authentication)
	if err != nil {
		return nil, err
	}
	return &AuthenticationOptions{
		Challenge: res.Challenge,
		Options:   res.Options,
		RPID:      e.verifier.RelyingPartyID(),
	}, nil
}

// CompleteAuthentication verifies an assertion and issues a user session.
//
// A locked credential yields *LockedError without touching any state. A
// failed verification increments the failure counter and, at the
// threshold, locks the credential for Lockout.Duration.
func (e *Engine) CompleteAuthentication(ctx context.Context, response []byte, challenge string) (*AuthenticationResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	res, err := flows.RunCompleteAuthentication(ctx, response, challenge, e.authentication)
	if err != nil {
		return nil, err
	}
	return &AuthenticationResult{
		Principal: Principal{
			ID:           res.PrincipalID,
			DisplayName:  res.DisplayName,
			CredentialID: res.CredentialID,
		},
		Session: Session{
			ID:          res.SessionID,
			PrincipalID: res.PrincipalID,
			IssuedAt:    res.SessionExpiresAt.Add(-e.config.Session.UserTTL),
			ExpiresAt:   res.SessionExpiresAt,
		},
	}, nil
}

func (e *Engine) authenticationDeps() flows.AuthenticationDeps {
	return flows.AuthenticationDeps{
		ChallengeTTL: e.config.Passkey.ChallengeTTL,
		Now:          e.now,

		BeginCeremony: func(ctx context.Context) (string, []byte, []byte, error) {
			c, err := e.verifier.BeginAuthentication(ctx)
			if err != nil {
				return "", nil, nil, err
			}
			return c.Challenge, c.Options, c.State, nil
		},
		ParseAssertion: func(response []byte) (*flows.AuthAssertion, error) {
			info, err := e.verifier.ParseAssertion(response)
			if err != nil {
				return nil, err
			}
			return &flows.AuthAssertion{CredentialID: info.CredentialID, Challenge: info.Challenge}, nil
		},
		FinishCeremony: func(ctx context.Context, state []byte, cred flows.AuthCredential, response []byte) (*flows.AuthVerified, error) {
			res, err := e.verifier.FinishAuthentication(ctx, state, StoredCredential{
				PrincipalID:  cred.PrincipalID,
				DisplayName:  cred.DisplayName,
				CredentialID: cred.CredentialID,
				PublicKey:    cred.PublicKey,
				SignCount:    cred.SignCount,
				Attributes:   cred.Attributes,
			}, response)
			if err != nil {
				return nil, err
			}
			if res == nil {
				return nil, ErrVerificationFailed
			}
			return &flows.AuthVerified{SignCount: res.SignCount, Attributes: res.Attributes}, nil
		},
		SaveCeremony: func(ctx context.Context, challenge string, state []byte, ttl time.Duration) error {
			err := e.ceremonies.Save(ctx, stores.CeremonyAuthentication, challenge, &stores.Ceremony{
				Challenge: challenge,
				State:     state,
				ExpiresAt: e.now().Add(ttl).UnixMilli(),
			}, ttl)
			return storeError(err)
		},
		TakeCeremony: func(ctx context.Context, challenge string) ([]byte, error) {
			c, err := e.ceremonies.Take(ctx, stores.CeremonyAuthentication, challenge, e.now())
			if err != nil {
				return nil, storeError(err)
			}
			return c.State, nil
		},

		GetCredential: func(ctx context.Context, credentialID string) (*flows.AuthCredential, error) {
			c, err := e.credentials.GetByCredentialID(ctx, credentialID)
			if err != nil {
				return nil, storeError(err)
			}
			return &flows.AuthCredential{
				PrincipalID:    c.PrincipalID,
				DisplayName:    c.DisplayName,
				CredentialID:   c.CredentialID,
				PublicKey:      c.PublicKey,
				SignCount:      c.SignCount,
				Attributes:     c.Attributes,
				FailedAttempts: c.FailedAttempts,
				LockedUntil:    fromMillis(c.LockedUntil),
			}, nil
		},
		CheckLockout: e.lockout.Check,
		RecordSuccess: func(ctx context.Context, principalID string, signCount uint32, attributes []byte) error {
			return storeError(e.credentials.RecordSuccess(ctx, principalID, signCount, attributes))
		},
		RecordFailure: func(ctx context.Context, principalID string, now time.Time) (flows.AuthFailure, error) {
			deadline := e.lockout.Deadline(now)
			res, err := e.credentials.RecordFailure(ctx, principalID, e.lockout.Threshold(), deadline.UnixMilli())
			if err != nil {
				return flows.AuthFailure{}, storeError(err)
			}
			out := flows.AuthFailure{
				FailedAttempts: res.FailedAttempts,
				Locked:         e.lockout.ShouldLock(res.FailedAttempts),
			}
			if out.Locked {
				out.LockedUntil = deadline
			}
			return out, nil
		},
		IssueSession: func(ctx context.Context, principalID string) (string, time.Time, error) {
			return e.issueSession(ctx, session.KindUser, principalID, e.config.Session.UserTTL)
		},

		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		Observe: func(id int, d time.Duration) {
			e.metricObserve(MetricID(id), d)
		},
		EmitAudit: func(ctx context.Context, action, actor, details string) {
			e.emitAudit(ctx, AuditAction(action), actor, details, nil)
		},
		Warn: e.warn,

		Metrics: flows.AuthMetrics{
			Success:        int(MetricLoginSuccess),
			Failure:        int(MetricLoginFailure),
			LockedReject:   int(MetricLoginLockedRejected),
			AccountLocked:  int(MetricAccountLocked),
			SessionCreated: int(MetricSessionCreated),
			Latency:        int(MetricSignInLatency),
		},
		Events: flows.AuthEvents{
			LoginSuccess:  string(AuditLoginSuccess),
			LoginFailed:   string(AuditLoginFailed),
			AccountLocked: string(AuditAccountLocked),
		},
		Errors: flows.AuthErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidRequest:     ErrInvalidRequest,
			ChallengeInvalid:   ErrChallengeInvalid,
			VerificationFailed: ErrVerificationFailed,
		},
	}
}
