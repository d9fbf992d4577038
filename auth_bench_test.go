package keygate

import (
	"context"
	"strconv"
	"testing"
)

func BenchmarkValidateSession(b *testing.B) {
	e := newTestEngine(b)
	reg := registerAgent(b, e, "Neo", "cred-neo")
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.ValidateSession(ctx, reg.Session.ID); err != nil {
			b.Fatalf("validate failed: %v", err)
		}
	}
}

func BenchmarkValidateAdmin(b *testing.B) {
	e := newTestEngine(b)
	ctx := context.Background()
	admin, err := e.AdminLogin(ctx, testAdminPassword)
	if err != nil {
		b.Fatalf("admin login failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.ValidateAdmin(ctx, admin.Token); err != nil {
			b.Fatalf("validate admin failed: %v", err)
		}
	}
}

func BenchmarkIssueInvite(b *testing.B) {
	e := newTestEngine(b, func(c *Config) { c.Audit.Enabled = false })
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.IssueInvite(ctx, "agent", "admin"); err != nil {
			b.Fatalf("issue invite failed: %v", err)
		}
	}
}

func BenchmarkSignIn(b *testing.B) {
	e := newTestEngine(b, func(c *Config) { c.Audit.Enabled = false })
	registerAgent(b, e, "Neo", "cred-neo")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res, err := signIn(b, e, "cred-neo", true, uint32(i+1))
		if err != nil {
			b.Fatalf("sign in failed at %s: %v", strconv.Itoa(i), err)
		}
		_ = e.RevokeSession(context.Background(), res.Session.ID)
	}
}
