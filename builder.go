package keygate

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/keygate/internal"
	"github.com/MrEthical07/keygate/internal/limiters"
	"github.com/MrEthical07/keygate/internal/logging"
	"github.com/MrEthical07/keygate/internal/stores"
	"github.com/MrEthical07/keygate/jwt"
	"github.com/MrEthical07/keygate/password"
	"github.com/MrEthical07/keygate/session"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. Configure it during initialization, call
// Build once, and discard it.
type Builder struct {
	config   Config
	redis    redis.UniversalClient
	verifier CredentialVerifier

	auditSink AuditSink
	logger    *slog.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client shared by every store. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithVerifier sets the WebAuthn verifier. Required; see package passkey.
func (b *Builder) WithVerifier(v CredentialVerifier) *Builder {
	b.verifier = v
	return b
}

// WithAuditSink mirrors every audit entry to sink through the async
// dispatcher. The durable Redis log is written regardless.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. Without one the engine is silent.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock overrides time.Now. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the stores, policies and
// signers. A Builder can be built only once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.verifier == nil {
		return nil, errors.New("credential verifier required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	prefix := cfg.Session.RedisPrefix
	engine := &Engine{
		config:      cfg,
		redis:       b.redis,
		verifier:    b.verifier,
		sessions:    session.NewStore(b.redis, prefix),
		invites:     stores.NewInviteStore(b.redis, prefix),
		credentials: stores.NewCredentialStore(b.redis, prefix),
		ceremonies:  stores.NewCeremonyStore(b.redis, prefix),
		auditLog:    stores.NewAuditLogStore(b.redis, prefix, cfg.Audit.MaxEntries),
		lockout: limiters.NewLockout(limiters.LockoutConfig{
			Threshold: cfg.Lockout.Threshold,
			Duration:  cfg.Lockout.Duration,
		}),
		metrics:     NewMetrics(cfg.Metrics),
		logger:      logging.NewSlogLogger(b.logger),
		now:         b.now,
		newID:       uuid.NewString,
		newToken:    internal.NewInviteToken,
	}
	if engine.now == nil {
		engine.now = time.Now
	}
	if cfg.Audit.Enabled && b.auditSink != nil {
		engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	}

	ph, err := password.NewArgon2(password.DefaultConfig())
	if err != nil {
		return nil, err
	}
	engine.passwords = ph

	jm, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.Session.AdminTTL,
		SigningMethod: jwt.SigningMethod(cfg.Admin.SigningMethod),
		PrivateKey:    cloneBytes(cfg.Admin.PrivateKey),
		PublicKey:     cloneBytes(cfg.Admin.PublicKey),
		Issuer:        cfg.Admin.Issuer,
		Now:           engine.now,
	})
	if err != nil {
		return nil, err
	}
	engine.adminTokens = jm

	engine.registration = engine.registrationDeps()
	engine.authentication = engine.authenticationDeps()

	b.built = true
	return engine, nil
}
