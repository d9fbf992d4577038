package keygate

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/keygate/password"
)

// Config holds every engine setting. A copy is taken at Build, so later
// mutation by the caller has no effect on a running Engine.
type Config struct {
	Invite    InviteConfig
	Passkey   PasskeyConfig
	Session   SessionConfig
	Admin     AdminConfig
	Lockout   LockoutConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Security  SecurityConfig
}

/*
====================================
INVITE CONFIG
====================================
*/

// InviteConfig controls invite token lifetime. Grace extends the Redis key
// beyond ExpiresAt so an expired token reports "expired" rather than
// "not found" for a while.
type InviteConfig struct {
	TTL   time.Duration
	Grace time.Duration
}

/*
====================================
PASSKEY CONFIG
====================================
*/

// PasskeyConfig identifies the WebAuthn relying party. ChallengeTTL bounds
// the time between the options and verification phases.
type PasskeyConfig struct {
	RPID          string
	RPDisplayName string
	RPOrigins     []string
	ChallengeTTL  time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig sets the Redis key prefix shared by every store and the
// lifetime of user and admin sessions.
type SessionConfig struct {
	RedisPrefix string
	UserTTL     time.Duration
	AdminTTL    time.Duration
}

/*
====================================
ADMIN CONFIG
====================================
*/

// AdminConfig configures the single administrator. PasswordHash is an
// argon2id PHC string; keys sign the admin token.
type AdminConfig struct {
	PasswordHash  string
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
}

/*
====================================
LOCKOUT / RATE LIMIT
====================================
*/

type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

type RateLimitConfig struct {
	Enabled      bool
	Window       time.Duration
	StrictLimit  int
	RelaxedLimit int
}

/*
====================================
AUDIT / METRICS
====================================
*/

// AuditConfig controls the durable audit log and the optional sink mirror.
// ListLimit caps AuditLog reads; MaxEntries caps the stored list.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	MaxEntries int
	ListLimit  int
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds transport settings consumed by the HTTP layer.
// CookieSecure should only be disabled for plain-HTTP local development.
type SecurityConfig struct {
	CookieSecure      bool
	TrustProxyHeaders bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. Admin credentials and
// signing keys are left empty and must be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Invite: InviteConfig{
			TTL:   24 * time.Hour,
			Grace: time.Hour,
		},
		Passkey: PasskeyConfig{
			RPID:          "localhost",
			RPDisplayName: "keygate",
			RPOrigins:     []string{"http://localhost:8080"},
			ChallengeTTL:  5 * time.Minute,
		},
		Session: SessionConfig{
			RedisPrefix: "kg",
			UserTTL:     7 * 24 * time.Hour,
			AdminTTL:    12 * time.Hour,
		},
		Admin: AdminConfig{
			SigningMethod: "hs256",
			Issuer:        "keygate",
		},
		Lockout: LockoutConfig{
			Threshold: 10,
			Duration:  5 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:      true,
			Window:       time.Minute,
			StrictLimit:  5,
			RelaxedLimit: 30,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
			MaxEntries: 10000,
			ListLimit:  100,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Security: SecurityConfig{
			CookieSecure: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Passkey.RPOrigins = append([]string(nil), cfg.Passkey.RPOrigins...)
	out.Admin.PrivateKey = cloneBytes(cfg.Admin.PrivateKey)
	out.Admin.PublicKey = cloneBytes(cfg.Admin.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Invite
	if c.Invite.TTL <= 0 {
		return errors.New("Invite TTL must be > 0")
	}
	if c.Invite.Grace < 0 {
		return errors.New("Invite Grace must be >= 0")
	}

	// Passkey
	if strings.TrimSpace(c.Passkey.RPID) == "" {
		return errors.New("Passkey RPID is required")
	}
	if len(c.Passkey.RPOrigins) == 0 {
		return errors.New("Passkey RPOrigins must not be empty")
	}
	for _, origin := range c.Passkey.RPOrigins {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("Passkey RPOrigins contains invalid origin %q", origin)
		}
	}
	if c.Passkey.ChallengeTTL <= 0 {
		return errors.New("Passkey ChallengeTTL must be > 0")
	}

	// Session
	if c.Session.RedisPrefix == "" || strings.ContainsAny(c.Session.RedisPrefix, " :") {
		return errors.New("Session RedisPrefix must be non-empty and contain no spaces or colons")
	}
	if c.Session.UserTTL <= 0 {
		return errors.New("Session UserTTL must be > 0")
	}
	if c.Session.AdminTTL <= 0 {
		return errors.New("Session AdminTTL must be > 0")
	}

	// Admin
	if c.Admin.PasswordHash == "" {
		return errors.New("Admin PasswordHash is required")
	}
	if ph, err := password.NewArgon2(password.DefaultConfig()); err != nil {
		return err
	} else if _, err := ph.NeedsUpgrade(c.Admin.PasswordHash); err != nil {
		return fmt.Errorf("Admin PasswordHash is not a valid argon2id PHC string: %v", err)
	}
	switch c.Admin.SigningMethod {
	case "hs256":
		if len(c.Admin.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case "ed25519":
		if len(c.Admin.PrivateKey) == 0 || len(c.Admin.PublicKey) == 0 {
			return errors.New("ed25519 requires PrivateKey and PublicKey")
		}
	default:
		return errors.New("unsupported Admin signing method")
	}

	// Lockout
	if c.Lockout.Threshold <= 0 {
		return errors.New("Lockout Threshold must be > 0")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.Window <= 0 {
			return errors.New("RateLimit Window must be > 0")
		}
		if c.RateLimit.StrictLimit <= 0 || c.RateLimit.RelaxedLimit <= 0 {
			return errors.New("RateLimit limits must be > 0")
		}
		if c.RateLimit.StrictLimit > c.RateLimit.RelaxedLimit {
			return errors.New("RateLimit StrictLimit must be <= RelaxedLimit")
		}
	}

	// Audit
	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0")
		}
		if c.Audit.ListLimit <= 0 || c.Audit.ListLimit > 100 {
			return errors.New("Audit ListLimit must be between 1 and 100")
		}
		if c.Audit.MaxEntries < c.Audit.ListLimit {
			return errors.New("Audit MaxEntries must be >= ListLimit")
		}
	}

	return nil
}
