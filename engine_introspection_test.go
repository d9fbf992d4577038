package keygate

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHealthReportsRedisAvailability(t *testing.T) {
	e := newTestEngine(t)

	h := e.Health(context.Background())
	if !h.RedisAvailable {
		t.Fatal("expected redis available")
	}

	e.mr.Close()
	h = e.Health(context.Background())
	if h.RedisAvailable {
		t.Fatal("expected redis unavailable after shutdown")
	}
}

func TestHealthNilEngine(t *testing.T) {
	var e *Engine
	if h := e.Health(context.Background()); h.RedisAvailable {
		t.Fatal("nil engine must not report healthy")
	}
}

func TestListActiveSessions(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	reg := registerAgent(t, e, "Neo", "cred-neo")
	e.clock.Advance(time.Minute)
	auth, err := signIn(t, e, "cred-neo", true, 1)
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}

	sessions, err := e.ListActiveSessions(ctx, reg.Principal.ID)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != reg.Session.ID || sessions[1].ID != auth.Session.ID {
		t.Fatalf("expected oldest first, got %+v", sessions)
	}

	if err := e.RevokeSession(ctx, reg.Session.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	n, err := e.ActiveSessionCount(ctx, reg.Principal.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 session after revoke, got %d", n)
	}
}

func TestListActiveSessionsSkipsExpired(t *testing.T) {
	e := newTestEngine(t)
	reg := registerAgent(t, e, "Trinity", "cred-trinity")

	e.clock.Advance(e.Config().Session.UserTTL + time.Second)
	n, err := e.ActiveSessionCount(context.Background(), reg.Principal.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected expired session to be skipped, got %d", n)
	}
}

func TestListActiveSessionsErrors(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.ListActiveSessions(context.Background(), ""); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	e.mr.Close()
	if _, err := e.ListActiveSessions(context.Background(), "p-1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
