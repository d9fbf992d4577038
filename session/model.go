package session

// Kind distinguishes principal sessions from administrator sessions.
type Kind uint8

const (
	// KindUser is a session issued after passkey registration or sign-in.
	KindUser Kind = 1
	// KindAdmin is a session issued after administrator password login.
	KindAdmin Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// Session is an opaque bearer credential bound to a principal. CreatedAt and
// ExpiresAt are unix seconds.
type Session struct {
	SessionID   string
	PrincipalID string
	Kind        Kind

	CreatedAt int64
	ExpiresAt int64
}
