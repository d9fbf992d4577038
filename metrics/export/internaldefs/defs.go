package internaldefs

import (
	"github.com/MrEthical07/keygate"
)

// CounterDef binds a keygate counter to its exported name.
type CounterDef struct {
	ID   keygate.MetricID
	Name string
	Help string
}

// HistogramDef binds a keygate histogram to its exported name.
type HistogramDef struct {
	ID   keygate.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: keygate.MetricInviteIssued, Name: "keygate_invite_issued_total", Help: "Issued invite tokens."},
	{ID: keygate.MetricInviteRejected, Name: "keygate_invite_rejected_total", Help: "Invite tokens rejected as missing, expired or consumed."},
	{ID: keygate.MetricRegistrationStarted, Name: "keygate_registration_started_total", Help: "Started registration ceremonies."},
	{ID: keygate.MetricRegistrationCompleted, Name: "keygate_registration_completed_total", Help: "Completed registrations."},
	{ID: keygate.MetricRegistrationFailed, Name: "keygate_registration_failed_total", Help: "Failed registration completions."},
	{ID: keygate.MetricLoginSuccess, Name: "keygate_login_success_total", Help: "Successful passkey sign-ins."},
	{ID: keygate.MetricLoginFailure, Name: "keygate_login_failure_total", Help: "Failed passkey sign-ins."},
	{ID: keygate.MetricLoginLockedRejected, Name: "keygate_login_locked_rejected_total", Help: "Sign-ins rejected while the credential was locked."},
	{ID: keygate.MetricAccountLocked, Name: "keygate_account_locked_total", Help: "Credentials that entered lockout."},
	{ID: keygate.MetricSessionCreated, Name: "keygate_session_created_total", Help: "Created sessions."},
	{ID: keygate.MetricSessionRevoked, Name: "keygate_session_revoked_total", Help: "Revoked user sessions."},
	{ID: keygate.MetricSessionRejected, Name: "keygate_session_rejected_total", Help: "Rejected user session validations."},
	{ID: keygate.MetricAdminLoginSuccess, Name: "keygate_admin_login_success_total", Help: "Successful admin logins."},
	{ID: keygate.MetricAdminLoginFailure, Name: "keygate_admin_login_failure_total", Help: "Failed admin logins."},
	{ID: keygate.MetricAdminLogout, Name: "keygate_admin_logout_total", Help: "Admin logouts."},
	{ID: keygate.MetricRateLimitHit, Name: "keygate_rate_limit_hit_total", Help: "Sources that crossed a rate-limit ceiling."},
	{ID: keygate.MetricAuditAppendFailed, Name: "keygate_audit_append_failed_total", Help: "Audit entries that could not be persisted."},
	{ID: keygate.MetricAuditCleared, Name: "keygate_audit_cleared_total", Help: "Audit log wipes."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: keygate.MetricSignInLatency, Name: "keygate_signin_latency_seconds", Help: "CompleteAuthentication latency histogram."},
}

// HistogramBounds are the upper bounds of the engine's eight latency buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds spelled for instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
