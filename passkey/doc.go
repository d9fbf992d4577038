// Package passkey implements keygate.CredentialVerifier on top of
// github.com/go-webauthn/webauthn.
//
// Registration requires a discoverable (resident) credential so that sign-in
// can run without a username: the authenticator returns the user handle,
// which is the keygate principal id.
package passkey
