package stores

import "errors"

var (
	ErrBackendUnavailable = errors.New("store backend unavailable")

	ErrInviteNotFound = errors.New("invite not found")
	ErrInviteExists   = errors.New("invite already exists")
	ErrInviteConsumed = errors.New("invite already consumed")
	ErrInviteExpired  = errors.New("invite expired")

	ErrCredentialNotFound  = errors.New("credential not found")
	ErrCredentialDuplicate = errors.New("credential id already registered")
	ErrPrincipalExists     = errors.New("principal already exists")
	ErrCounterRegression   = errors.New("signature counter did not advance")

	ErrCeremonyNotFound = errors.New("ceremony not found")
	ErrCeremonyCorrupt  = errors.New("ceremony record corrupt")
)
