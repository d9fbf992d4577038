package keygate

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// LintSeverity ranks configuration warnings.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// LintWarning is one finding about a valid but questionable setting.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the list returned by Config.Lint.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError returns an error listing every warning at or above min, or nil.
func (r LintResult) AsError(min LintSeverity) error {
	hits := r.BySeverity(min)
	if len(hits) == 0 {
		return nil
	}
	parts := make([]string, 0, len(hits))
	for _, w := range hits {
		parts = append(parts, fmt.Sprintf("%s(%s): %s", w.Code, w.Severity, w.Message))
	}
	return fmt.Errorf("config lint: %s", strings.Join(parts, "; "))
}

// Lint reports settings that pass Validate but weaken the deployment.
// The binary logs these at startup.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if !c.Security.CookieSecure {
		add("cookie_insecure", LintHigh, "session cookies are sent without the Secure attribute")
	}
	if c.Security.TrustProxyHeaders {
		add("trust_proxy_headers", LintInfo, "client IP is taken from X-Forwarded-For; only safe behind a proxy that sets it")
	}
	if !c.RateLimit.Enabled {
		add("rate_limits_disabled", LintHigh, "no per-IP rate limiting is applied")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintWarn, "security events are not recorded")
	}
	if c.Admin.SigningMethod == "hs256" {
		add("signing_hs256", LintInfo, "admin tokens use a shared HMAC key")
	}
	if c.Session.UserTTL > 7*24*time.Hour {
		add("user_session_long", LintWarn, "user sessions outlive seven days")
	}
	if c.Session.AdminTTL > 24*time.Hour {
		add("admin_session_long", LintWarn, "admin sessions outlive one day")
	}
	if c.Lockout.Threshold > 10 {
		add("lockout_threshold_high", LintWarn, "more than ten failed sign-ins are allowed before lockout")
	}
	if c.Passkey.ChallengeTTL > 10*time.Minute {
		add("challenge_ttl_long", LintWarn, "pending passkey ceremonies live longer than ten minutes")
	}
	for _, origin := range c.Passkey.RPOrigins {
		u, err := url.Parse(origin)
		if err != nil {
			continue
		}
		if u.Scheme == "http" && u.Hostname() != "localhost" && u.Hostname() != "127.0.0.1" {
			add("origin_plain_http", LintHigh, "relying party origin "+origin+" is not HTTPS")
		}
	}

	return ws
}
