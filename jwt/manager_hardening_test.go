package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func adminClaims(sid, issuer, audience string, exp, iat time.Time) AdminClaims {
	c := AdminClaims{SID: sid, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "admin",
		Issuer:    issuer,
		ExpiresAt: gjwt.NewNumericDate(exp),
		IssuedAt:  gjwt.NewNumericDate(iat),
	}}
	if audience != "" {
		c.Audience = gjwt.ClaimStrings{audience}
	}
	return c
}

func TestCreateAndParseAdminHS256(t *testing.T) {
	m, err := NewManager(Config{TTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: []byte("0123456789abcdef0123456789abcdef")})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	now := time.Now()
	token, exp, err := m.CreateAdmin("admin-sid", now)
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	if !exp.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", exp)
	}
	claims, err := m.ParseAdmin(token)
	if err != nil {
		t.Fatalf("parse admin: %v", err)
	}
	if claims.SID != "admin-sid" || claims.Subject != "admin" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if _, _, err := m.CreateAdmin("", now); err == nil {
		t.Fatal("expected empty sid to be rejected")
	}
}

func TestNewManagerRejectsShortHMACKey(t *testing.T) {
	if _, err := NewManager(Config{TTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: []byte("short")}); err == nil {
		t.Fatal("expected short hs256 key to be rejected")
	}
	if _, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: make([]byte, 32)}); err == nil {
		t.Fatal("expected zero ttl to be rejected")
	}
}

func TestParseAdminRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{TTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := adminClaims("s1", "", "", time.Now().Add(time.Minute), time.Now())
	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims)
	token, err := tok.SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.ParseAdmin(token); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestParseAdminRejectsWrongSubject(t *testing.T) {
	_, priv := newEdKeys(t)
	m, err := NewManager(Config{TTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: priv.Public().(ed25519.PublicKey)})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	claims := adminClaims("s1", "", "", time.Now().Add(time.Minute), time.Now())
	claims.Subject = "user"
	token, _ := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims).SignedString(priv)
	if _, err := m.ParseAdmin(token); err == nil {
		t.Fatal("expected non-admin subject to fail")
	}

	noSID := adminClaims("", "", "", time.Now().Add(time.Minute), time.Now())
	token, _ = gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, noSID).SignedString(priv)
	if _, err := m.ParseAdmin(token); err == nil {
		t.Fatal("expected missing sid to fail")
	}
}

func TestParseAdminIssuerAudienceAndLeeway(t *testing.T) {
	_, priv := newEdKeys(t)
	m, err := NewManager(Config{
		TTL:           time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     priv.Public().(ed25519.PublicKey),
		Issuer:        "keygate",
		Audience:      "admin-console",
		Leeway:        30 * time.Second,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, _, err := m.CreateAdmin("s1", time.Now())
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	if _, err := m.ParseAdmin(token); err != nil {
		t.Fatalf("expected valid token to parse: %v", err)
	}

	now := time.Now()
	cases := []struct {
		name   string
		claims AdminClaims
		ok     bool
	}{
		{"wrong issuer", adminClaims("s1", "other", "admin-console", now.Add(time.Minute), now), false},
		{"wrong audience", adminClaims("s1", "keygate", "other", now.Add(time.Minute), now), false},
		{"within leeway", adminClaims("s1", "keygate", "admin-console", now.Add(-15*time.Second), now.Add(-time.Minute)), true},
		{"expired", adminClaims("s1", "keygate", "admin-console", now.Add(-2*time.Minute), now.Add(-3*time.Minute)), false},
		{"future iat", adminClaims("s1", "keygate", "admin-console", now.Add(time.Hour), now.Add(30*time.Minute)), false},
	}
	for _, tc := range cases {
		signed, _ := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, tc.claims).SignedString(priv)
		_, err := m.ParseAdmin(signed)
		if tc.ok && err != nil {
			t.Fatalf("%s: expected success, got %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s: expected failure", tc.name)
		}
	}
}

func TestParseAdminUnknownKidFails(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, _ := newEdKeys(t)
	m, err := NewManager(Config{
		TTL:           time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv1,
		PublicKey:     pub1,
		KeyID:         "k1",
		VerifyKeys: map[string][]byte{
			"k1": pub1,
		},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := adminClaims("s1", "", "", time.Now().Add(time.Minute), time.Now())
	tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = "k2"
	token, err := tok.SignedString(priv1)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.ParseAdmin(token); err == nil {
		t.Fatal("expected unknown kid failure")
	}

	tok2 := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
	tok2.Header["kid"] = "k1"
	good, _ := tok2.SignedString(priv1)
	if _, err := m.ParseAdmin(good); err != nil {
		t.Fatalf("expected known kid token to pass: %v", err)
	}

	m2, _ := NewManager(Config{TTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub2, VerifyKeys: map[string][]byte{"k2": pub2}})
	if _, err := m2.ParseAdmin(good); err == nil {
		t.Fatal("expected parse failure with mismatched key set")
	}
}
