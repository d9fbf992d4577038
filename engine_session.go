package keygate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/keygate/internal"
	"github.com/MrEthical07/keygate/session"
)

func (e *Engine) issueSession(ctx context.Context, kind session.Kind, principalID string, ttl time.Duration) (string, time.Time, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return "", time.Time{}, err
	}

	now := e.now()
	expiresAt := now.Add(ttl)
	sess := &session.Session{
		SessionID:   sid.String(),
		PrincipalID: principalID,
		Kind:        kind,
		CreatedAt:   now.Unix(),
		ExpiresAt:   expiresAt.Unix(),
	}
	if err := e.sessions.Save(ctx, sess, ttl); err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return sess.SessionID, time.Unix(sess.ExpiresAt, 0).UTC(), nil
}

// loadSession fetches sid and checks its kind. Malformed ids and sessions
// of the wrong kind are reported as not found.
func (e *Engine) loadSession(ctx context.Context, sid string, kind session.Kind) (*session.Session, error) {
	if _, err := internal.ParseSessionID(sid); err != nil {
		return nil, ErrSessionNotFound
	}

	sess, err := e.sessions.Get(ctx, sid, e.now())
	switch {
	case err == nil:
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrCorrupt):
		return nil, ErrSessionNotFound
	case errors.Is(err, session.ErrExpired):
		return nil, ErrSessionExpired
	default:
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if sess.Kind != kind {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// ValidateSession resolves a user session cookie value. There is no IP or
// device binding: whoever holds the id holds the session.
func (e *Engine) ValidateSession(ctx context.Context, sessionID string) (*Session, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}
	sess, err := e.loadSession(ctx, sessionID, session.KindUser)
	if err != nil {
		e.metricInc(MetricSessionRejected)
		return nil, err
	}
	out := toSession(sess)
	return &out, nil
}

// RevokeSession deletes a user session. Unknown ids are not an error.
func (e *Engine) RevokeSession(ctx context.Context, sessionID string) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}
	if _, err := internal.ParseSessionID(sessionID); err != nil {
		return nil
	}
	if err := e.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	e.metricInc(MetricSessionRevoked)
	return nil
}

// LookupPrincipal loads a registered principal by id.
func (e *Engine) LookupPrincipal(ctx context.Context, principalID string) (*Principal, error) {
	if e == nil || e.credentials == nil {
		return nil, ErrEngineNotReady
	}
	if principalID == "" {
		return nil, ErrUserNotFound
	}
	c, err := e.credentials.Get(ctx, principalID)
	if err != nil {
		return nil, storeError(err)
	}
	return &Principal{
		ID:           c.PrincipalID,
		DisplayName:  c.DisplayName,
		CredentialID: c.CredentialID,
		CreatedAt:    fromMillis(c.CreatedAt),
	}, nil
}

// SessionPrincipal validates a user session and loads its principal.
func (e *Engine) SessionPrincipal(ctx context.Context, sessionID string) (*Principal, *Session, error) {
	sess, err := e.ValidateSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	p, err := e.LookupPrincipal(ctx, sess.PrincipalID)
	if err != nil {
		return nil, nil, err
	}
	return p, sess, nil
}
