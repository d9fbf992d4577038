package keygate

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/keygate/internal/limiters"
	"github.com/MrEthical07/keygate/internal/rate"
)

var (
	// ErrRateLimited is returned when a source exceeds its request ceiling.
	ErrRateLimited = rate.ErrRateLimited
	// ErrUnauthorized is returned for a missing or invalid admin or user credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidToken covers every invite that cannot be redeemed.
	ErrInvalidToken = errors.New("invalid invite token")
	// ErrTokenNotFound, ErrTokenExpired and ErrTokenConsumed all match ErrInvalidToken.
	ErrTokenNotFound = fmt.Errorf("%w: not found", ErrInvalidToken)
	ErrTokenExpired  = fmt.Errorf("%w: expired", ErrInvalidToken)
	ErrTokenConsumed = fmt.Errorf("%w: already used", ErrInvalidToken)

	// ErrVerificationFailed is returned when a passkey response does not verify.
	ErrVerificationFailed = errors.New("verification failed")
	// ErrChallengeInvalid means no pending ceremony matches the response.
	// It matches ErrVerificationFailed.
	ErrChallengeInvalid = fmt.Errorf("%w: challenge invalid or expired", ErrVerificationFailed)

	// ErrLocked matches any *LockedError.
	ErrLocked = limiters.ErrLocked

	ErrUserNotFound     = errors.New("user not found")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionExpired   = errors.New("session expired")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrEngineNotReady   = errors.New("engine not initialized")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// LockedError reports a credential inside its lockout window.
// RetryAfterMinutes is rounded up.
type LockedError = limiters.LockedError

// Error categories returned by Category.
const (
	CategoryRateLimited        = "rate_limited"
	CategoryUnauthorized       = "unauthorized"
	CategoryInvalidToken       = "invalid_token"
	CategoryVerificationFailed = "verification_failed"
	CategoryLocked             = "locked"
	CategoryNotFound           = "not_found"
	CategoryInvalidRequest     = "invalid_request"
	CategoryInternal           = "internal"
)

// Category maps err to a stable machine-readable category. Unknown errors,
// including store failures, are internal. A nil error has no category.
func Category(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return CategoryRateLimited
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrSessionExpired):
		return CategoryUnauthorized
	case errors.Is(err, ErrInvalidToken):
		return CategoryInvalidToken
	case errors.Is(err, ErrVerificationFailed):
		return CategoryVerificationFailed
	case errors.Is(err, ErrLocked):
		return CategoryLocked
	case errors.Is(err, ErrUserNotFound):
		return CategoryNotFound
	case errors.Is(err, ErrInvalidRequest):
		return CategoryInvalidRequest
	default:
		return CategoryInternal
	}
}
