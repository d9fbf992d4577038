package internal

import "testing"

func TestInviteTokenFormat(t *testing.T) {
	seen := make(map[string]struct{}, 64)
	for i := 0; i < 64; i++ {
		token, err := NewInviteToken()
		if err != nil {
			t.Fatalf("NewInviteToken: %v", err)
		}
		if len(token) != 16 {
			t.Fatalf("expected 16 chars, got %q", token)
		}
		if !ValidInviteToken(token) {
			t.Fatalf("generated token %q is not a valid invite token", token)
		}
		if _, dup := seen[token]; dup {
			t.Fatalf("duplicate token %q", token)
		}
		seen[token] = struct{}{}
	}
}

func TestValidInviteTokenIsExact(t *testing.T) {
	cases := map[string]bool{
		"A1B2C3D4E5F60718":    true,
		"a1b2c3d4e5f60718":    false,
		" A1B2C3D4E5F60718":   false,
		"  A1B2C3D4E5F60718 ": false,
		"A1B2C3D4E5F6071":     false,
		"A1B2C3D4E5F6071Z":    false,
		"":                    false,
	}
	for in, want := range cases {
		if got := ValidInviteToken(in); got != want {
			t.Fatalf("ValidInviteToken(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSessionIDRoundTrip(t *testing.T) {
	sid, err := NewSessionID()
	if err != nil {
		t.Fatalf("NewSessionID: %v", err)
	}
	parsed, err := ParseSessionID(sid.String())
	if err != nil {
		t.Fatalf("ParseSessionID: %v", err)
	}
	if parsed != sid {
		t.Fatal("session id did not round trip")
	}
	if _, err := ParseSessionID("short"); err == nil {
		t.Fatal("expected error for short session id")
	}
}
