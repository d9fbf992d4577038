package flows

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

var (
	errNotReady     = errors.New("not ready")
	errInvalid      = errors.New("invalid request")
	errChallenge    = errors.New("challenge invalid")
	errVerification = errors.New("verification failed")
	errTokenGone    = errors.New("token consumed")
	errLocked       = errors.New("locked")
)

type regHarness struct {
	invites   map[string]*RegistrationInvite
	pending   map[string]RegistrationCeremony
	committed map[string]*RegistrationCredential
	audits    []string
	finishErr error
	panicOn   bool
}

func newRegHarness() *regHarness {
	return &regHarness{
		invites: map[string]*RegistrationInvite{
			"AAAABBBBCCCCDDDD": {Token: "AAAABBBBCCCCDDDD", RecipientLabel: "  Agent   Smith ", ExpiresAt: time.Now().Add(time.Hour)},
		},
		pending:   map[string]RegistrationCeremony{},
		committed: map[string]*RegistrationCredential{},
	}
}

func (h *regHarness) deps() RegistrationDeps {
	return RegistrationDeps{
		ChallengeTTL: time.Minute,
		LookupInvite: func(_ context.Context, token string) (*RegistrationInvite, error) {
			inv, ok := h.invites[token]
			if !ok {
				return nil, errTokenGone
			}
			return inv, nil
		},
		NewPrincipalID: func() string { return "principal-1" },
		BeginCeremony: func(_ context.Context, principalID, displayName string) (string, []byte, []byte, error) {
			return "challenge-" + principalID, []byte(`{"publicKey":{}}`), []byte("state:" + displayName), nil
		},
		FinishCeremony: func(_ context.Context, pending RegistrationCeremony, response []byte) (*RegistrationCredential, error) {
			if h.panicOn {
				panic("boom")
			}
			if h.finishErr != nil {
				return nil, h.finishErr
			}
			return &RegistrationCredential{CredentialID: "cred-" + string(response), PublicKey: []byte{1}, SignCount: 0}, nil
		},
		SaveCeremony: func(_ context.Context, token string, rec RegistrationCeremony, _ time.Duration) error {
			h.pending[token] = rec
			return nil
		},
		LoadCeremony: func(_ context.Context, token string) (*RegistrationCeremony, error) {
			rec, ok := h.pending[token]
			if !ok {
				return nil, errChallenge
			}
			return &rec, nil
		},
		DiscardCeremony: func(_ context.Context, token string) error {
			delete(h.pending, token)
			return nil
		},
		Commit: func(_ context.Context, token string, _ RegistrationCeremony, cred *RegistrationCredential) error {
			if _, ok := h.invites[token]; !ok {
				return errTokenGone
			}
			if _, ok := h.pending[token]; !ok {
				return errChallenge
			}
			delete(h.invites, token)
			delete(h.pending, token)
			h.committed[cred.CredentialID] = cred
			return nil
		},
		IssueSession: func(_ context.Context, principalID string) (string, time.Time, error) {
			return "sid-" + principalID, time.Now().Add(time.Hour), nil
		},
		EmitAudit: func(_ context.Context, action, actor, details string) {
			h.audits = append(h.audits, action+"|"+actor+"|"+details)
		},
		Events: RegistrationEvents{UserRegistered: "USER_REGISTERED"},
		Errors: RegistrationErrors{
			EngineNotReady:     errNotReady,
			InvalidRequest:     errInvalid,
			ChallengeInvalid:   errChallenge,
			VerificationFailed: errVerification,
		},
	}
}

func TestRegistrationRoundTrip(t *testing.T) {
	h := newRegHarness()
	ctx := context.Background()
	token := "AAAABBBBCCCCDDDD"

	begin, err := RunBeginRegistration(ctx, token, h.deps())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if begin.DisplayName != "Agent Smith" {
		t.Fatalf("unexpected display name %q", begin.DisplayName)
	}

	done, err := RunCompleteRegistration(ctx, token, []byte("abc"), begin.Challenge, h.deps())
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.SessionID != "sid-principal-1" || done.CredentialID != "cred-abc" {
		t.Fatalf("unexpected result %+v", done)
	}
	if len(h.audits) != 1 || !strings.HasPrefix(h.audits[0], "USER_REGISTERED|Agent Smith|") {
		t.Fatalf("unexpected audits %v", h.audits)
	}

	if _, err := RunBeginRegistration(ctx, token, h.deps()); !errors.Is(err, errTokenGone) {
		t.Fatalf("expected consumed token on second begin, got %v", err)
	}
}

func TestRegistrationVerifierFailureKeepsInvite(t *testing.T) {
	h := newRegHarness()
	ctx := context.Background()
	token := "AAAABBBBCCCCDDDD"

	begin, err := RunBeginRegistration(ctx, token, h.deps())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	h.finishErr = errors.New("bad attestation")
	if _, err := RunCompleteRegistration(ctx, token, []byte("abc"), begin.Challenge, h.deps()); !errors.Is(err, errVerification) {
		t.Fatalf("expected verification failure, got %v", err)
	}
	if _, ok := h.invites[token]; !ok {
		t.Fatal("invite must stay redeemable after a failed verification")
	}

	h.finishErr = nil
	h.panicOn = true
	begin, _ = RunBeginRegistration(ctx, token, h.deps())
	if _, err := RunCompleteRegistration(ctx, token, []byte("abc"), begin.Challenge, h.deps()); !errors.Is(err, errVerification) {
		t.Fatalf("expected panic to map to verification failure, got %v", err)
	}
	if len(h.committed) != 0 {
		t.Fatal("nothing should be committed")
	}
}

func TestRegistrationChallengeMismatch(t *testing.T) {
	h := newRegHarness()
	ctx := context.Background()
	token := "AAAABBBBCCCCDDDD"

	if _, err := RunBeginRegistration(ctx, token, h.deps()); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := RunCompleteRegistration(ctx, token, []byte("abc"), "forged", h.deps()); !errors.Is(err, errChallenge) {
		t.Fatalf("expected challenge mismatch, got %v", err)
	}
	if _, err := RunCompleteRegistration(ctx, token, []byte("abc"), "", h.deps()); !errors.Is(err, errChallenge) {
		t.Fatalf("pending ceremony should be single-use, got %v", err)
	}
}

func TestRegistrationLateRacerSeesConsumedInvite(t *testing.T) {
	h := newRegHarness()
	ctx := context.Background()
	token := "AAAABBBBCCCCDDDD"

	begin, err := RunBeginRegistration(ctx, token, h.deps())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := RunCompleteRegistration(ctx, token, []byte("abc"), begin.Challenge, h.deps()); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// Put the invite back as if the second caller had read it before the commit.
	h.invites[token] = &RegistrationInvite{Token: token, RecipientLabel: "Agent Smith", ExpiresAt: time.Now().Add(time.Hour)}
	deps := h.deps()
	lookups := 0
	lookup := deps.LookupInvite
	deps.LookupInvite = func(ctx context.Context, tok string) (*RegistrationInvite, error) {
		lookups++
		if lookups > 1 {
			return nil, errTokenGone
		}
		return lookup(ctx, tok)
	}
	if _, err := RunCompleteRegistration(ctx, token, []byte("abc"), begin.Challenge, deps); !errors.Is(err, errTokenGone) {
		t.Fatalf("expected consumed token, got %v", err)
	}
}

func TestRegistrationNotReady(t *testing.T) {
	if _, err := RunBeginRegistration(context.Background(), "x", RegistrationDeps{Errors: RegistrationErrors{EngineNotReady: errNotReady}}); !errors.Is(err, errNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
}

type authHarness struct {
	now       time.Time
	cred      AuthCredential
	pending   map[string][]byte
	verifyErr error
	finished  int
	audits    []string
	threshold int
}

func newAuthHarness() *authHarness {
	return &authHarness{
		now:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		cred:      AuthCredential{PrincipalID: "p1", DisplayName: "Agent Smith", CredentialID: "cred-1"},
		pending:   map[string][]byte{},
		threshold: 10,
	}
}

func (h *authHarness) deps() AuthenticationDeps {
	return AuthenticationDeps{
		ChallengeTTL: time.Minute,
		Now:          func() time.Time { return h.now },
		BeginCeremony: func(context.Context) (string, []byte, []byte, error) {
			return "chal-1", []byte(`{}`), []byte("state"), nil
		},
		ParseAssertion: func(b []byte) (*AuthAssertion, error) {
			parts := strings.SplitN(string(b), ":", 2)
			if len(parts) != 2 {
				return nil, errors.New("malformed")
			}
			return &AuthAssertion{CredentialID: parts[0], Challenge: parts[1]}, nil
		},
		FinishCeremony: func(context.Context, []byte, AuthCredential, []byte) (*AuthVerified, error) {
			h.finished++
			if h.verifyErr != nil {
				return nil, h.verifyErr
			}
			return &AuthVerified{SignCount: h.cred.SignCount + 1}, nil
		},
		SaveCeremony: func(_ context.Context, challenge string, state []byte, _ time.Duration) error {
			h.pending[challenge] = state
			return nil
		},
		TakeCeremony: func(_ context.Context, challenge string) ([]byte, error) {
			state, ok := h.pending[challenge]
			if !ok {
				return nil, errChallenge
			}
			delete(h.pending, challenge)
			return state, nil
		},
		GetCredential: func(_ context.Context, id string) (*AuthCredential, error) {
			if id != h.cred.CredentialID {
				return nil, errors.New("user not found")
			}
			c := h.cred
			return &c, nil
		},
		CheckLockout: func(until, now time.Time) error {
			if until.After(now) {
				return errLocked
			}
			return nil
		},
		RecordSuccess: func(_ context.Context, _ string, signCount uint32, _ []byte) error {
			h.cred.SignCount = signCount
			h.cred.FailedAttempts = 0
			h.cred.LockedUntil = time.Time{}
			return nil
		},
		RecordFailure: func(_ context.Context, _ string, now time.Time) (AuthFailure, error) {
			h.cred.FailedAttempts++
			out := AuthFailure{FailedAttempts: h.cred.FailedAttempts}
			if h.cred.FailedAttempts >= h.threshold {
				h.cred.LockedUntil = now.Add(5 * time.Minute)
				out.Locked = true
				out.LockedUntil = h.cred.LockedUntil
			}
			return out, nil
		},
		IssueSession: func(_ context.Context, principalID string) (string, time.Time, error) {
			return "sid-" + principalID, h.now.Add(time.Hour), nil
		},
		EmitAudit: func(_ context.Context, action, _, _ string) {
			h.audits = append(h.audits, action)
		},
		Events: AuthEvents{LoginSuccess: "LOGIN_SUCCESS", LoginFailed: "LOGIN_FAILED", AccountLocked: "ACCOUNT_LOCKED"},
		Errors: AuthErrors{
			EngineNotReady:     errNotReady,
			InvalidRequest:     errInvalid,
			ChallengeInvalid:   errChallenge,
			VerificationFailed: errVerification,
		},
	}
}

func (h *authHarness) attempt(t *testing.T) error {
	t.Helper()
	begin, err := RunBeginAuthentication(context.Background(), h.deps())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	_, err = RunCompleteAuthentication(context.Background(), []byte("cred-1:"+begin.Challenge), begin.Challenge, h.deps())
	return err
}

func TestAuthenticationLockoutAfterThreshold(t *testing.T) {
	h := newAuthHarness()
	h.verifyErr = errors.New("bad signature")

	for i := 0; i < 10; i++ {
		if err := h.attempt(t); !errors.Is(err, errVerification) {
			t.Fatalf("attempt %d: expected verification failure, got %v", i+1, err)
		}
	}
	if h.cred.FailedAttempts != 10 || !h.cred.LockedUntil.Equal(h.now.Add(5*time.Minute)) {
		t.Fatalf("expected lock after 10 failures, got %+v", h.cred)
	}
	if got := h.audits[len(h.audits)-1]; got != "ACCOUNT_LOCKED" {
		t.Fatalf("expected ACCOUNT_LOCKED audit, got %s", got)
	}

	finished := h.finished
	h.verifyErr = nil
	h.now = h.now.Add(time.Minute)
	if err := h.attempt(t); !errors.Is(err, errLocked) {
		t.Fatalf("expected locked rejection, got %v", err)
	}
	if h.finished != finished {
		t.Fatal("verifier must not be called while locked")
	}
	if h.cred.FailedAttempts != 10 {
		t.Fatal("locked rejection must not mutate the record")
	}

	h.now = h.now.Add(5 * time.Minute)
	if err := h.attempt(t); err != nil {
		t.Fatalf("expected success after lockout window, got %v", err)
	}
	if h.cred.FailedAttempts != 0 || !h.cred.LockedUntil.IsZero() {
		t.Fatalf("success must reset counters, got %+v", h.cred)
	}
}

func TestAuthenticationFailureAfterExpiryRelocks(t *testing.T) {
	h := newAuthHarness()
	h.cred.FailedAttempts = 10
	h.cred.LockedUntil = h.now.Add(-time.Second)
	h.verifyErr = errors.New("bad signature")

	if err := h.attempt(t); !errors.Is(err, errVerification) {
		t.Fatalf("expected verification failure, got %v", err)
	}
	if !h.cred.LockedUntil.After(h.now) {
		t.Fatal("a failure at or past the threshold should lock again")
	}
}

func TestAuthenticationChallengeRules(t *testing.T) {
	h := newAuthHarness()
	ctx := context.Background()

	if _, err := RunCompleteAuthentication(ctx, []byte("cred-1:never-issued"), "", h.deps()); !errors.Is(err, errChallenge) {
		t.Fatalf("expected unknown challenge rejection, got %v", err)
	}

	begin, _ := RunBeginAuthentication(ctx, h.deps())
	if _, err := RunCompleteAuthentication(ctx, []byte("cred-1:"+begin.Challenge), "other", h.deps()); !errors.Is(err, errChallenge) {
		t.Fatalf("expected echoed challenge mismatch, got %v", err)
	}
	if _, err := RunCompleteAuthentication(ctx, []byte("garbage"), "", h.deps()); !errors.Is(err, errVerification) {
		t.Fatalf("expected unparseable assertion to fail verification, got %v", err)
	}
	if _, err := RunCompleteAuthentication(ctx, []byte("cred-1:"+begin.Challenge), "", h.deps()); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if _, err := RunCompleteAuthentication(ctx, []byte("cred-1:"+begin.Challenge), "", h.deps()); !errors.Is(err, errChallenge) {
		t.Fatalf("expected replayed challenge rejection, got %v", err)
	}
}

func TestDisplayName(t *testing.T) {
	cases := map[string]string{
		"Agent Smith":           "Agent Smith",
		"  Agent \t\n Smith  ":  "Agent Smith",
		"":                      "Agent",
		"   ":                   "Agent",
		"Neo\x00\x07":           "Neo",
		strings.Repeat("x", 80): strings.Repeat("x", 64),
	}
	for in, want := range cases {
		if got := DisplayName(in); got != want {
			t.Fatalf("DisplayName(%q) = %q, want %q", in, got, want)
		}
	}
	if got := DisplayName(strings.Repeat("é", 70)); len([]rune(got)) != 64 {
		t.Fatalf("expected 64 runes, got %d", len([]rune(got)))
	}
}
