package keygate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/keygate/session"
)

// adminActor is the audit actor for administrator actions and the
// principal id stored on admin sessions.
const adminActor = "admin"

// AdminLogin checks password against the configured argon2id hash. On
// success it creates a server-side admin session and returns a signed
// token bound to it.
func (e *Engine) AdminLogin(ctx context.Context, password string) (*AdminSession, error) {
	if e == nil || e.passwords == nil || e.adminTokens == nil {
		return nil, ErrEngineNotReady
	}

	ok := false
	if password != "" {
		var err error
		ok, err = e.passwords.Verify(password, e.config.Admin.PasswordHash)
		if err != nil {
			e.warn(ctx, "admin password verify failed", "err", err)
			ok = false
		}
	}
	if !ok {
		e.metricInc(MetricAdminLoginFailure)
		e.emitAudit(ctx, AuditAdminLoginFailed, systemActor, "Failed admin login attempt from "+clientLabel(ctx), nil)
		return nil, ErrUnauthorized
	}

	sid, _, err := e.issueSession(ctx, session.KindAdmin, adminActor, e.config.Session.AdminTTL)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := e.adminTokens.CreateAdmin(sid, e.now())
	if err != nil {
		if delErr := e.sessions.Delete(ctx, sid); delErr != nil {
			e.warn(ctx, "admin session cleanup failed", "err", delErr)
		}
		return nil, fmt.Errorf("sign admin token: %w", err)
	}

	e.metricInc(MetricAdminLoginSuccess)
	e.emitAudit(ctx, AuditAdminLogin, adminActor, "Admin signed in from "+clientLabel(ctx), nil)
	return &AdminSession{
		Token:     token,
		SessionID: sid,
		ExpiresAt: expiresAt.UTC(),
	}, nil
}

// ValidateAdmin accepts token only if its signature and expiry are valid
// and the admin session it names still exists.
func (e *Engine) ValidateAdmin(ctx context.Context, token string) (*AdminSession, error) {
	if e == nil || e.adminTokens == nil {
		return nil, ErrEngineNotReady
	}
	if token == "" {
		return nil, ErrUnauthorized
	}
	claims, err := e.adminTokens.ParseAdmin(token)
	if err != nil {
		return nil, ErrUnauthorized
	}

	sess, err := e.loadSession(ctx, claims.SID, session.KindAdmin)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return nil, err
		}
		return nil, ErrUnauthorized
	}

	return &AdminSession{
		Token:     token,
		SessionID: sess.SessionID,
		ExpiresAt: time.Unix(sess.ExpiresAt, 0).UTC(),
	}, nil
}

// AdminLogout revokes the admin session behind token. Invalid or already
// revoked tokens are not an error.
func (e *Engine) AdminLogout(ctx context.Context, token string) error {
	if e == nil || e.adminTokens == nil {
		return ErrEngineNotReady
	}
	claims, err := e.adminTokens.ParseAdmin(token)
	if err != nil {
		return nil
	}
	if _, err := e.loadSession(ctx, claims.SID, session.KindAdmin); err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return err
		}
		return nil
	}
	if err := e.sessions.Delete(ctx, claims.SID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricAdminLogout)
	e.emitAudit(ctx, AuditAdminLogout, adminActor, "Admin signed out", nil)
	return nil
}

func clientLabel(ctx context.Context) string {
	if ip := ClientIPFromContext(ctx); ip != "" {
		return ip
	}
	return "unknown"
}
