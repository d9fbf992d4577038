package passkey

import (
	"github.com/go-webauthn/webauthn/webauthn"
)

// user adapts a keygate principal to webauthn.User. A principal owns at most
// one credential.
type user struct {
	id          string
	name        string
	credentials []webauthn.Credential
}

func (u *user) WebAuthnID() []byte {
	return []byte(u.id)
}

func (u *user) WebAuthnName() string {
	return u.name
}

func (u *user) WebAuthnDisplayName() string {
	return u.name
}

func (u *user) WebAuthnIcon() string {
	return ""
}

func (u *user) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}
