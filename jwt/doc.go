// Package jwt issues and verifies the signed admin token carried in the
// admin cookie. A token names a server-side admin session; callers must
// still confirm that session exists before granting access.
package jwt
