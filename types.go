package keygate

import (
	"encoding/json"
	"time"
)

// InviteToken is a single-use registration invite issued by the admin.
type InviteToken struct {
	Token          string    `json:"token"`
	RecipientLabel string    `json:"recipientLabel"`
	CreatedAt      time.Time `json:"createdAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
	Consumed       bool      `json:"consumed"`
}

// Principal is a registered agent. Each principal owns exactly one passkey.
type Principal struct {
	ID           string
	DisplayName  string
	CredentialID string
	CreatedAt    time.Time
}

// Session is an issued bearer session. ID is the cookie value.
type Session struct {
	ID          string
	PrincipalID string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// RegistrationOptions is returned by BeginRegistration. Options is the
// PublicKeyCredentialCreationOptions document for the browser.
type RegistrationOptions struct {
	Challenge   string          `json:"challenge"`
	Options     json.RawMessage `json:"options"`
	DisplayName string          `json:"displayName"`
	RPID        string          `json:"rpId"`
}

// AuthenticationOptions is returned by BeginAuthentication.
type AuthenticationOptions struct {
	Challenge string          `json:"challenge"`
	Options   json.RawMessage `json:"options"`
	RPID      string          `json:"rpId"`
}

// RegistrationResult is returned by a successful CompleteRegistration.
type RegistrationResult struct {
	Principal Principal
	Session   Session
}

// AuthenticationResult is returned by a successful CompleteAuthentication.
type AuthenticationResult struct {
	Principal Principal
	Session   Session
}

// AdminSession is returned by AdminLogin. Token goes into the admin cookie.
type AdminSession struct {
	Token     string
	SessionID string
	ExpiresAt time.Time
}

// AuditAction is the closed set of audit log actions.
type AuditAction string

const (
	AuditTokenGenerated   AuditAction = "TOKEN_GENERATED"
	AuditUserRegistered   AuditAction = "USER_REGISTERED"
	AuditLoginSuccess     AuditAction = "LOGIN_SUCCESS"
	AuditLoginFailed      AuditAction = "LOGIN_FAILED"
	AuditAccountLocked    AuditAction = "ACCOUNT_LOCKED"
	AuditAdminLogin       AuditAction = "ADMIN_LOGIN"
	AuditAdminLoginFailed AuditAction = "ADMIN_LOGIN_FAILED"
	AuditAdminLogout      AuditAction = "ADMIN_LOGOUT"
	AuditRateLimited      AuditAction = "RATE_LIMITED"
	AuditSystemWipe       AuditAction = "SYSTEM_WIPE"
)

// AuditEntry is one row of the durable audit log.
type AuditEntry struct {
	ID        string      `json:"id"`
	Action    AuditAction `json:"action"`
	Details   string      `json:"details"`
	Actor     string      `json:"actor,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}
