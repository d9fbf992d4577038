package keygate

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/MrEthical07/keygate/session"
)

// HealthStatus is an on-demand backend health result.
type HealthStatus struct {
	RedisAvailable bool
	RedisLatency   time.Duration
}

// Health pings Redis and reports reachability with the round-trip time.
// It never returns an error; an unavailable store is reported in the result.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.sessions == nil {
		return HealthStatus{}
	}

	latency, err := e.sessions.Ping(ctx)
	return HealthStatus{
		RedisAvailable: err == nil,
		RedisLatency:   latency,
	}
}

// ListActiveSessions returns the live user sessions of a principal, oldest
// first. Indexed ids whose records have expired are skipped.
func (e *Engine) ListActiveSessions(ctx context.Context, principalID string) ([]Session, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}
	if principalID == "" {
		return nil, ErrUserNotFound
	}

	ids, err := e.sessions.ActiveSessionIDs(ctx, session.KindUser, principalID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	out := make([]Session, 0, len(ids))
	for _, id := range ids {
		sess, err := e.loadSession(ctx, id, session.KindUser)
		if err != nil {
			if errors.Is(err, ErrStoreUnavailable) {
				return nil, err
			}
			continue
		}
		out = append(out, toSession(sess))
	}
	slices.SortStableFunc(out, func(a, b Session) int {
		return a.IssuedAt.Compare(b.IssuedAt)
	})
	return out, nil
}

// ActiveSessionCount is the number of live user sessions for a principal.
func (e *Engine) ActiveSessionCount(ctx context.Context, principalID string) (int, error) {
	sessions, err := e.ListActiveSessions(ctx, principalID)
	if err != nil {
		return 0, err
	}
	return len(sessions), nil
}

func toSession(sess *session.Session) Session {
	return Session{
		ID:          sess.SessionID,
		PrincipalID: sess.PrincipalID,
		IssuedAt:    time.Unix(sess.CreatedAt, 0).UTC(),
		ExpiresAt:   time.Unix(sess.ExpiresAt, 0).UTC(),
	}
}
