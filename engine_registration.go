package keygate

import (
	"context"
	"time"

	"github.com/MrEthical07/keygate/internal/flows"
	"github.com/MrEthical07/keygate/internal/stores"
	"github.com/MrEthical07/keygate/session"
)

// BeginRegistration validates token without consuming it and returns
// credential creation options. A repeated call for the same token replaces
// the pending ceremony.
func (e *Engine) BeginRegistration(ctx context.Context, token string) (*RegistrationOptions, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	res, err := flows.RunBeginRegistration(ctx, token, e.registration)
	if err != nil {
		return nil, err
	}
	return &RegistrationOptions{
		Challenge:   res.Challenge,
		Options:     res.Options,
		DisplayName: res.DisplayName,
		RPID:        e.verifier.RelyingPartyID(),
	}, nil
}

// CompleteRegistration verifies the attestation response, creates the
// principal, consumes the invite and issues a user session. On verifier
// failure the invite stays redeemable.
func (e *Engine) CompleteRegistration(ctx context.Context, token string, response []byte, challenge string) (*RegistrationResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	res, err := flows.RunCompleteRegistration(ctx, token, response, challenge, e.registration)
	if res == nil {
		return nil, err
	}
	out := &RegistrationResult{
		Principal: Principal{
			ID:           res.PrincipalID,
			DisplayName:  res.DisplayName,
			CredentialID: res.CredentialID,
			CreatedAt:    e.now().UTC(),
		},
	}
	if err != nil {
		return out, err
	}
	out.Session = Session{
		ID:          res.SessionID,
		PrincipalID: res.PrincipalID,
		IssuedAt:    res.SessionExpiresAt.Add(-e.config.Session.UserTTL),
		ExpiresAt:   res.SessionExpiresAt,
	}
	return out, nil
}

func (e *Engine) registrationDeps() flows.RegistrationDeps {
	return flows.RegistrationDeps{
		ChallengeTTL: e.config.Passkey.ChallengeTTL,
		Now:          e.now,

		LookupInvite: func(ctx context.Context, token string) (*flows.RegistrationInvite, error) {
			inv, err := e.redeemableInvite(ctx, token)
			if err != nil {
				return nil, err
			}
			return &flows.RegistrationInvite{
				Token:          inv.Token,
				RecipientLabel: inv.RecipientLabel,
				ExpiresAt:      fromMillis(inv.ExpiresAt),
			}, nil
		},
		NewPrincipalID: e.newID,
		BeginCeremony: func(ctx context.Context, principalID, displayName string) (string, []byte, []byte, error) {
			c, err := e.verifier.BeginRegistration(ctx, RegistrationSubject{
				PrincipalID: principalID,
				DisplayName: displayName,
			})
			if err != nil {
				return "", nil, nil, err
			}
			return c.Challenge, c.Options, c.State, nil
		},
		FinishCeremony: func(ctx context.Context, pending flows.RegistrationCeremony, response []byte) (*flows.RegistrationCredential, error) {
			v, err := e.verifier.FinishRegistration(ctx, RegistrationSubject{
				PrincipalID: pending.PrincipalID,
				DisplayName: pending.DisplayName,
			}, pending.State, response)
			if err != nil {
				return nil, err
			}
			if v == nil {
				return nil, ErrVerificationFailed
			}
			return &flows.RegistrationCredential{
				CredentialID: v.CredentialID,
				PublicKey:    v.PublicKey,
				SignCount:    v.SignCount,
				Attributes:   v.Attributes,
			}, nil
		},
		SaveCeremony: func(ctx context.Context, token string, pending flows.RegistrationCeremony, ttl time.Duration) error {
			err := e.ceremonies.Save(ctx, stores.CeremonyRegistration, token, &stores.Ceremony{
				PrincipalID: pending.PrincipalID,
				DisplayName: pending.DisplayName,
				Challenge:   pending.Challenge,
				State:       pending.State,
				ExpiresAt:   e.now().Add(ttl).UnixMilli(),
			}, ttl)
			return storeError(err)
		},
		LoadCeremony: func(ctx context.Context, token string) (*flows.RegistrationCeremony, error) {
			c, err := e.ceremonies.Get(ctx, stores.CeremonyRegistration, token, e.now())
			if err != nil {
				return nil, storeError(err)
			}
			return &flows.RegistrationCeremony{
				PrincipalID: c.PrincipalID,
				DisplayName: c.DisplayName,
				Challenge:   c.Challenge,
				State:       c.State,
			}, nil
		},
		DiscardCeremony: func(ctx context.Context, token string) error {
			return storeError(e.ceremonies.Delete(ctx, stores.CeremonyRegistration, token))
		},
		Commit: func(ctx context.Context, token string, pending flows.RegistrationCeremony, cred *flows.RegistrationCredential) error {
			err := e.credentials.CommitRegistration(ctx, token, &stores.Credential{
				PrincipalID:  pending.PrincipalID,
				DisplayName:  pending.DisplayName,
				CredentialID: cred.CredentialID,
				PublicKey:    cred.PublicKey,
				SignCount:    cred.SignCount,
				Attributes:   cred.Attributes,
			}, e.now().UnixMilli())
			return storeError(err)
		},
		IssueSession: func(ctx context.Context, principalID string) (string, time.Time, error) {
			return e.issueSession(ctx, session.KindUser, principalID, e.config.Session.UserTTL)
		},

		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit: func(ctx context.Context, action, actor, details string) {
			e.emitAudit(ctx, AuditAction(action), actor, details, nil)
		},
		Warn: e.warn,

		Metrics: flows.RegistrationMetrics{
			Started:        int(MetricRegistrationStarted),
			Completed:      int(MetricRegistrationCompleted),
			Failed:         int(MetricRegistrationFailed),
			SessionCreated: int(MetricSessionCreated),
		},
		Events: flows.RegistrationEvents{
			UserRegistered: string(AuditUserRegistered),
		},
		Errors: flows.RegistrationErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidRequest:     ErrInvalidRequest,
			ChallengeInvalid:   ErrChallengeInvalid,
			VerificationFailed: ErrVerificationFailed,
		},
	}
}
