// Package pam combines a host PAM password check with HOTP validation
// against a usersfile credential store, the two-factor arrangement login
// services build on top of the store.
//
// The PAM stack verifies the account password (first factor); the store
// verifies and consumes the one-time code (second factor). The store is only
// consulted after the password check passes, so a failed login never
// advances the user's counter.
//
// The default session opener talks to the host PAM stack and requires a cgo
// build; tests and non-cgo builds can supply their own SessionOpener.
package pam

import (
	"context"
	"errors"
)

// Session is one PAM transaction against a service.
type Session interface {
	// Authenticate runs the service's auth and account stacks with the
	// given password.
	Authenticate(ctx context.Context, password string) error
	// Close ends the transaction.
	Close() error
}

// SessionOpener starts PAM sessions for a service/username pair.
type SessionOpener interface {
	Open(ctx context.Context, service, username string) (Session, error)
}

var (
	errSystemOpenerUnavailable = errors.New("pam: system session opener unavailable; requires a cgo build with PAM support")

	// systemSessionOpener is installed by the cgo build.
	systemSessionOpener SessionOpener
)
