package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/MrEthical07/keygate"
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

func testPasswordHash(t *testing.T) string {
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

type testServer struct {
	*Server
	engine *keygate.Engine
	mr     *miniredis.Miniredis
	rdb    *redis.Client
}

func newTestServer(t *testing.T, mutate func(*keygate.Config), opts ...Option) *testServer {
	t.Helper()
	cfg := keygate.DefaultConfig()
	cfg.Admin.PasswordHash = testPasswordHash(t)
	cfg.Admin.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Passkey.RPID = "keygate.test"
	cfg.Passkey.RPOrigins = []string{"https://keygate.test"}
	cfg.Session.RedisPrefix = "kghttp"
	if mutate != nil {
		mutate(&cfg)
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	engine, err := keygate.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithVerifier(&fakeVerifier{}).
		Build()
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

	return &testServer{Server: New(engine, opts...), engine: engine, mr: mr, rdb: rdb}
}

func noRateLimit(cfg *keygate.Config) {
	cfg.RateLimit.Enabled = false
}

// do sends a request from ip with the given cookies.
func (s *testServer) do(t *testing.T, method, target, ip string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		rdr = bytes.NewReader(data)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rdr)
	req.RemoteAddr = ip + ":40000"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func responseCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %q not set; headers: %v", name, rec.Header())
	return nil
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

// fakeVerifier accepts {"id": ..., "challenge": ..., "ok": ...} responses.
type fakeVerifier struct {
	seq atomic.Int64
}

type fakeResponse struct {
	ID        string `json:"id"`
	Challenge string `json:"challenge,omitempty"`
	OK        bool   `json:"ok"`
}

func (v *fakeVerifier) RelyingPartyID() string { return "keygate.test" }

func (v *fakeVerifier) ceremony() *keygate.Ceremony {
	challenge := "challenge-" + strconv.FormatInt(v.seq.Add(1), 10)
	options, _ := json.Marshal(map[string]string{"challenge": challenge})
	return &keygate.Ceremony{Challenge: challenge, Options: options, State: []byte(challenge)}
}

func (v *fakeVerifier) BeginRegistration(context.Context, keygate.RegistrationSubject) (*keygate.Ceremony, error) {
	return v.ceremony(), nil
}

func (v *fakeVerifier) FinishRegistration(_ context.Context, _ keygate.RegistrationSubject, _ []byte, response []byte) (*keygate.VerifiedCredential, error) {
	var r fakeResponse
	if err := json.Unmarshal(response, &r); err != nil {
		return nil, err
	}
	if !r.OK {
		return nil, errors.New("attestation rejected")
	}
	return &keygate.VerifiedCredential{CredentialID: r.ID, PublicKey: []byte("pk"), Attributes: []byte("{}")}, nil
}

func (v *fakeVerifier) BeginAuthentication(context.Context) (*keygate.Ceremony, error) {
	return v.ceremony(), nil
}

func (v *fakeVerifier) ParseAssertion(response []byte) (*keygate.AssertionInfo, error) {
	var r fakeResponse
	if err := json.Unmarshal(response, &r); err != nil {
		return nil, err
	}
	return &keygate.AssertionInfo{CredentialID: r.ID, Challenge: r.Challenge}, nil
}

func (v *fakeVerifier) FinishAuthentication(_ context.Context, _ []byte, _ keygate.StoredCredential, response []byte) (*keygate.AssertionResult, error) {
	var r fakeResponse
	if err := json.Unmarshal(response, &r); err != nil {
		return nil, err
	}
	if !r.OK {
		return nil, errors.New("bad signature")
	}
	return &keygate.AssertionResult{Attributes: []byte("{}")}, nil
}
