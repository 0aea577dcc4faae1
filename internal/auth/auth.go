// Package auth validates the shared bearer secret that gates tenant routes.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

const bearerPrefix = "Bearer "

var (
	// ErrMissingCredential is returned when the Authorization header is absent
	// or does not use the Bearer scheme.
	ErrMissingCredential = errors.New("auth: missing or malformed bearer credential")

	// ErrInvalidCredential is returned when the bearer token does not match the secret.
	ErrInvalidCredential = errors.New("auth: invalid bearer token")
)

// Authenticator compares bearer tokens against a single configured secret.
type Authenticator struct {
	secret []byte
}

// New creates an Authenticator. An empty secret is rejected.
func New(secret string) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("auth: bearer secret is empty")
	}
	return &Authenticator{secret: []byte(secret)}, nil
}

// Authenticate checks the raw Authorization header value.
func (a *Authenticator) Authenticate(header string) error {
	token, ok := strings.CutPrefix(header, bearerPrefix)
	if !ok {
		return ErrMissingCredential
	}
	if subtle.ConstantTimeCompare([]byte(token), a.secret) != 1 {
		return ErrInvalidCredential
	}
	return nil
}
