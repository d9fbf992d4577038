package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/keygate"
	"github.com/caarlos0/env/v11"
)

// serverConfig is read from KEYGATE_* environment variables.
type serverConfig struct {
	Addr            string        `env:"KEYGATE_ADDR"             envDefault:":8080"`
	ReadTimeout     time.Duration `env:"KEYGATE_READ_TIMEOUT"     envDefault:"10s"`
	WriteTimeout    time.Duration `env:"KEYGATE_WRITE_TIMEOUT"    envDefault:"30s"`
	IdleTimeout     time.Duration `env:"KEYGATE_IDLE_TIMEOUT"     envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"KEYGATE_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"KEYGATE_LOG_LEVEL"        envDefault:"info"`

	RedisAddr     string `env:"KEYGATE_REDIS_ADDR"     envDefault:"localhost:6379"`
	RedisPassword string `env:"KEYGATE_REDIS_PASSWORD"`
	RedisDB       int    `env:"KEYGATE_REDIS_DB"`
	RedisPrefix   string `env:"KEYGATE_REDIS_PREFIX"   envDefault:"kg"`

	RPID          string   `env:"KEYGATE_RP_ID"           envDefault:"localhost"`
	RPDisplayName string   `env:"KEYGATE_RP_DISPLAY_NAME" envDefault:"keygate"`
	RPOrigins     []string `env:"KEYGATE_RP_ORIGINS"      envDefault:"http://localhost:8080" envSeparator:","`

	AdminPasswordHash string `env:"KEYGATE_ADMIN_PASSWORD_HASH"`
	// AdminSigningKey is base64. When empty a random key is generated and
	// admin sessions do not survive a restart.
	AdminSigningKey string `env:"KEYGATE_ADMIN_SIGNING_KEY"`

	InviteTTL       time.Duration `env:"KEYGATE_INVITE_TTL"        envDefault:"24h"`
	UserSessionTTL  time.Duration `env:"KEYGATE_USER_SESSION_TTL"  envDefault:"168h"`
	AdminSessionTTL time.Duration `env:"KEYGATE_ADMIN_SESSION_TTL" envDefault:"12h"`

	CookieSecure      bool `env:"KEYGATE_COOKIE_SECURE"       envDefault:"true"`
	TrustProxyHeaders bool `env:"KEYGATE_TRUST_PROXY_HEADERS"`
	RateLimitEnabled  bool `env:"KEYGATE_RATE_LIMIT_ENABLED"  envDefault:"true"`
	MetricsEnabled    bool `env:"KEYGATE_METRICS_ENABLED"     envDefault:"true"`
	AuditStderr       bool `env:"KEYGATE_AUDIT_STDERR"        envDefault:"true"`
}

func loadServerConfig() (serverConfig, error) {
	var cfg serverConfig
	if err := env.Parse(&cfg); err != nil {
		return serverConfig{}, fmt.Errorf("parse environment: %w", err)
	}
	cfg.RPOrigins = trimAll(cfg.RPOrigins)
	return cfg, nil
}

// engineConfig maps the environment onto keygate.Config. generated reports
// whether the admin signing key was generated.
func (c serverConfig) engineConfig() (cfg keygate.Config, generated bool, err error) {
	cfg = keygate.DefaultConfig()

	cfg.Invite.TTL = c.InviteTTL
	cfg.Passkey.RPID = c.RPID
	cfg.Passkey.RPDisplayName = c.RPDisplayName
	cfg.Passkey.RPOrigins = c.RPOrigins
	cfg.Session.RedisPrefix = c.RedisPrefix
	cfg.Session.UserTTL = c.UserSessionTTL
	cfg.Session.AdminTTL = c.AdminSessionTTL
	cfg.Admin.PasswordHash = c.AdminPasswordHash
	cfg.RateLimit.Enabled = c.RateLimitEnabled
	cfg.Metrics.Enabled = c.MetricsEnabled
	cfg.Security.CookieSecure = c.CookieSecure
	cfg.Security.TrustProxyHeaders = c.TrustProxyHeaders

	if c.AdminSigningKey == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return cfg, false, fmt.Errorf("generate signing key: %w", err)
		}
		cfg.Admin.PrivateKey = key
		generated = true
	} else {
		key, err := base64.StdEncoding.DecodeString(c.AdminSigningKey)
		if err != nil {
			return cfg, false, fmt.Errorf("KEYGATE_ADMIN_SIGNING_KEY is not valid base64: %w", err)
		}
		cfg.Admin.PrivateKey = key
	}

	if err := cfg.Validate(); err != nil {
		return cfg, generated, err
	}
	return cfg, generated, nil
}

func (c serverConfig) slogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
