package keygate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/keygate/internal/flows"
	"github.com/MrEthical07/keygate/internal/limiters"
	"github.com/MrEthical07/keygate/internal/logging"
	"github.com/MrEthical07/keygate/internal/stores"
	"github.com/MrEthical07/keygate/jwt"
	"github.com/MrEthical07/keygate/password"
	"github.com/MrEthical07/keygate/session"
	"github.com/redis/go-redis/v9"
)

// Engine is the access-control core. It is safe for concurrent use once
// built and holds no per-request state.
type Engine struct {
	config   Config
	redis    redis.UniversalClient
	verifier CredentialVerifier

	sessions    *session.Store
	invites     *stores.InviteStore
	credentials *stores.CredentialStore
	ceremonies  *stores.CeremonyStore
	auditLog    *stores.AuditLogStore
	lockout     *limiters.Lockout

	adminTokens *jwt.Manager
	passwords   *password.Argon2

	audit   *auditDispatcher
	metrics *Metrics
	logger  logging.Logger

	now      func() time.Time
	newID    func() string
	newToken func() (string, error)

	registration   flows.RegistrationDeps
	authentication flows.AuthenticationDeps
}

// Close flushes the audit sink dispatcher. The Redis client is owned by
// the caller and stays open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// AuditDropped reports sink events dropped because the buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditDroppedByAction breaks AuditDropped down by audit action.
func (e *Engine) AuditDroppedByAction() map[AuditAction]uint64 {
	if e == nil || e.audit == nil {
		return map[AuditAction]uint64{}
	}
	return e.audit.DroppedByAction()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Ping reports whether Redis is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}
	if _, err := e.sessions.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

func (e *Engine) warn(ctx context.Context, msg string, args ...any) {
	e.logger.Warn(ctx, msg, withClientIP(ctx, args)...)
}

func withClientIP(ctx context.Context, args []any) []any {
	if ip := ClientIPFromContext(ctx); ip != "" {
		return append(args, "ip", ip)
	}
	return args
}

// storeError maps store-level failures onto the public error taxonomy.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stores.ErrInviteNotFound):
		return ErrTokenNotFound
	case errors.Is(err, stores.ErrInviteExpired):
		return ErrTokenExpired
	case errors.Is(err, stores.ErrInviteConsumed):
		return ErrTokenConsumed
	case errors.Is(err, stores.ErrCeremonyNotFound),
		errors.Is(err, stores.ErrCeremonyCorrupt):
		return ErrChallengeInvalid
	case errors.Is(err, stores.ErrCredentialNotFound):
		return ErrUserNotFound
	case errors.Is(err, stores.ErrCredentialDuplicate):
		return fmt.Errorf("%w: credential already registered", ErrVerificationFailed)
	case errors.Is(err, stores.ErrPrincipalExists):
		return fmt.Errorf("%w: principal id collision, retry registration", ErrVerificationFailed)
	case errors.Is(err, stores.ErrCounterRegression):
		return fmt.Errorf("%w: signature counter did not advance", ErrVerificationFailed)
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
