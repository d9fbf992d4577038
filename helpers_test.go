package keygate

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/keygate/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testAdminPassword = "correct-horse-battery"

var (
	testHashOnce sync.Once
	testHash     string
	testHashErr  error
)

func testPasswordHash(t testing.TB) string {
	t.Helper()
	testHashOnce.Do(func() {
		ph, err := password.NewArgon2(password.Config{
			Memory:      8 * 1024,
			Time:        1,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   32,
		})
		if err != nil {
			testHashErr = err
			return
		}
		testHash, testHashErr = ph.Hash(testAdminPassword)
	})
	if testHashErr != nil {
		t.Fatalf("hash admin password: %v", testHashErr)
	}
	return testHash
}

// testConfig returns a config that passes Validate.
func testConfig(t testing.TB) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Admin.PasswordHash = testPasswordHash(t)
	cfg.Admin.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Passkey.RPOrigins = []string{"https://keygate.test"}
	cfg.Passkey.RPID = "keygate.test"
	cfg.Session.RedisPrefix = "kgtest"
	return cfg
}

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, rdb
}

// testClock is a settable clock shared by the engine and the test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEngine struct {
	*Engine
	mr       *miniredis.Miniredis
	rdb      *redis.Client
	clock    *testClock
	verifier *fakeVerifier
}

func newTestEngine(t testing.TB, mutate ...func(*Config)) *testEngine {
	t.Helper()
	return newTestEngineWithSink(t, nil, mutate...)
}

func newTestEngineWithSink(t testing.TB, sink AuditSink, mutate ...func(*Config)) *testEngine {
	t.Helper()
	cfg := testConfig(t)
	for _, m := range mutate {
		m(&cfg)
	}

	mr, rdb := newTestRedis(t)
	clock := newTestClock()
	verifier := &fakeVerifier{rpID: cfg.Passkey.RPID}

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithVerifier(verifier).
		WithClock(clock.Now)
	if sink != nil {
		b = b.WithAuditSink(sink)
	}
	engine, err := b.Build()
	if err != nil {
		rdb.Close()
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() {
		engine.Close()
		rdb.Close()
		mr.Close()
	})
	return &testEngine{Engine: engine, mr: mr, rdb: rdb, clock: clock, verifier: verifier}
}

// fakeVerifier accepts JSON responses of the form produced by regResponse
// and authResponse. It never touches real WebAuthn data.
type fakeVerifier struct {
	rpID string
	seq  atomic.Int64

	finishAuthCalls atomic.Int64
}

type fakeResponse struct {
	ID        string `json:"id"`
	Challenge string `json:"challenge,omitempty"`
	OK        bool   `json:"ok"`
	Panic     bool   `json:"panic,omitempty"`
	Counter   uint32 `json:"counter,omitempty"`
}

func regResponse(id string, ok bool) []byte {
	data, _ := json.Marshal(fakeResponse{ID: id, OK: ok})
	return data
}

func authResponse(id, challenge string, ok bool, counter uint32) []byte {
	data, _ := json.Marshal(fakeResponse{ID: id, Challenge: challenge, OK: ok, Counter: counter})
	return data
}

func (v *fakeVerifier) RelyingPartyID() string { return v.rpID }

func (v *fakeVerifier) newCeremony(kind string) *Ceremony {
	challenge := kind + "-challenge-" + strconv.FormatInt(v.seq.Add(1), 10)
	options, _ := json.Marshal(map[string]string{"challenge": challenge, "rpId": v.rpID})
	return &Ceremony{Challenge: challenge, Options: options, State: []byte(challenge)}
}

func (v *fakeVerifier) BeginRegistration(_ context.Context, subject RegistrationSubject) (*Ceremony, error) {
	if subject.PrincipalID == "" {
		return nil, errors.New("missing principal")
	}
	return v.newCeremony("reg"), nil
}

func (v *fakeVerifier) FinishRegistration(_ context.Context, _ RegistrationSubject, state []byte, response []byte) (*VerifiedCredential, error) {
	var r fakeResponse
	if err := json.Unmarshal(response, &r); err != nil {
		return nil, err
	}
	if r.Panic {
		panic("attestation parser exploded")
	}
	if !r.OK || len(state) == 0 {
		return nil, errors.New("attestation rejected")
	}
	return &VerifiedCredential{
		CredentialID: r.ID,
		PublicKey:    []byte("pk-" + r.ID),
		Attributes:   []byte(`{"flags":1}`),
	}, nil
}

func (v *fakeVerifier) BeginAuthentication(context.Context) (*Ceremony, error) {
	return v.newCeremony("auth"), nil
}

func (v *fakeVerifier) ParseAssertion(response []byte) (*AssertionInfo, error) {
	var r fakeResponse
	if err := json.Unmarshal(response, &r); err != nil {
		return nil, err
	}
	return &AssertionInfo{CredentialID: r.ID, Challenge: r.Challenge}, nil
}

func (v *fakeVerifier) FinishAuthentication(_ context.Context, state []byte, cred StoredCredential, response []byte) (*AssertionResult, error) {
	v.finishAuthCalls.Add(1)
	var r fakeResponse
	if err := json.Unmarshal(response, &r); err != nil {
		return nil, err
	}
	if r.Panic {
		panic("assertion parser exploded")
	}
	if string(state) != r.Challenge || cred.CredentialID != r.ID {
		return nil, errors.New("assertion does not match ceremony")
	}
	if !r.OK {
		return nil, errors.New("bad signature")
	}
	return &AssertionResult{SignCount: r.Counter, Attributes: cred.Attributes}, nil
}

// registerAgent issues an invite and completes registration for credID.
func registerAgent(t testing.TB, e *testEngine, label, credID string) *RegistrationResult {
	t.Helper()
	ctx := context.Background()
	inv, err := e.IssueInvite(ctx, label, "admin")
	if err != nil {
		t.Fatalf("issue invite: %v", err)
	}
	opts, err := e.BeginRegistration(ctx, inv.Token)
	if err != nil {
		t.Fatalf("begin registration: %v", err)
	}
	res, err := e.CompleteRegistration(ctx, inv.Token, regResponse(credID, true), opts.Challenge)
	if err != nil {
		t.Fatalf("complete registration: %v", err)
	}
	return res
}

// signIn runs both authentication phases with the given outcome.
func signIn(t testing.TB, e *testEngine, credID string, ok bool, counter uint32) (*AuthenticationResult, error) {
	t.Helper()
	ctx := context.Background()
	opts, err := e.BeginAuthentication(ctx)
	if err != nil {
		t.Fatalf("begin authentication: %v", err)
	}
	return e.CompleteAuthentication(ctx, authResponse(credID, opts.Challenge, ok, counter), opts.Challenge)
}

func auditActions(t testing.TB, e *testEngine) []AuditAction {
	t.Helper()
	entries, err := e.AuditLog(context.Background(), 100)
	if err != nil {
		t.Fatalf("audit log: %v", err)
	}
	out := make([]AuditAction, 0, len(entries))
	for _, en := range entries {
		out = append(out, en.Action)
	}
	return out
}
