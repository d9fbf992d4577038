package limiters

import (
	"errors"
	"time"
)

// LockoutConfig holds configuration for the sign-in lockout policy.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

// ErrLocked is returned by Check while a credential is inside its lockout window.
var ErrLocked = errors.New("credential locked")

// LockedError carries the remaining lockout in whole minutes, rounded up.
type LockedError struct {
	Until             time.Time
	RetryAfterMinutes int
}

func (e *LockedError) Error() string {
	return "credential locked"
}

func (e *LockedError) Unwrap() error {
	return ErrLocked
}

// Lockout evaluates the failure counter and lockout deadline stored on a
// credential. The counter itself is persisted by the credential store.
type Lockout struct {
	config LockoutConfig
}

// NewLockout creates a lockout policy. Non-positive values fall back to 10 failures / 5 minutes.
func NewLockout(cfg LockoutConfig) *Lockout {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 10
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 5 * time.Minute
	}
	return &Lockout{config: cfg}
}

// Threshold returns the failure count at which a lockout is set.
func (l *Lockout) Threshold() int {
	return l.config.Threshold
}

// Check returns a *LockedError when lockedUntil is still in the future.
// A zero lockedUntil means the credential was never locked.
func (l *Lockout) Check(lockedUntil, now time.Time) error {
	if lockedUntil.IsZero() || !lockedUntil.After(now) {
		return nil
	}
	return &LockedError{
		Until:             lockedUntil,
		RetryAfterMinutes: RetryAfterMinutes(lockedUntil, now),
	}
}

// ShouldLock reports whether a post-increment failure count triggers a lockout.
// Counts at or above the threshold keep re-locking until a success resets them.
func (l *Lockout) ShouldLock(failedAttempts int) bool {
	return failedAttempts >= l.config.Threshold
}

// Deadline returns the lockout expiry for a lock set at now.
func (l *Lockout) Deadline(now time.Time) time.Time {
	return now.Add(l.config.Duration)
}

// RetryAfterMinutes returns ceil((until-now)/1m), never less than 1 while locked.
func RetryAfterMinutes(until, now time.Time) int {
	remaining := until.Sub(now)
	if remaining <= 0 {
		return 0
	}
	minutes := int(remaining / time.Minute)
	if remaining%time.Minute != 0 {
		minutes++
	}
	return minutes
}
