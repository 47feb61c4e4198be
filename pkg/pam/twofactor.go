package pam

import (
	"context"
	"errors"
	"fmt"

	"github.com/GetSerene/oath-toolkit/pkg/usersfile"
)

// Common errors returned by this package.
var (
	// ErrInvalidConfig indicates the configuration is invalid.
	ErrInvalidConfig = errors.New("pam: invalid configuration")
	// ErrNilAuthenticator indicates a nil authenticator was used.
	ErrNilAuthenticator = errors.New("pam: authenticator is nil")
)

// TwoFactorConfig holds two-factor authenticator configuration.
type TwoFactorConfig struct {
	// Service is the PAM service name whose stack checks the password
	// (required).
	Service string
	// Store validates and consumes one-time codes (required).
	Store *usersfile.Authenticator
	// Opener creates PAM sessions. A nil opener selects the host PAM
	// stack, which is only available in cgo builds.
	Opener SessionOpener
}

// TwoFactor authenticates a password against a PAM service and an HOTP code
// against a usersfile store.
type TwoFactor struct {
	service string
	store   *usersfile.Authenticator
	opener  SessionOpener
}

// NewTwoFactor creates a two-factor authenticator.
func NewTwoFactor(cfg TwoFactorConfig) (*TwoFactor, error) {
	if cfg.Service == "" {
		return nil, fmt.Errorf("%w: service name must not be empty", ErrInvalidConfig)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: store must not be nil", ErrInvalidConfig)
	}
	if cfg.Opener == nil {
		if systemSessionOpener == nil {
			return nil, errSystemOpenerUnavailable
		}
		cfg.Opener = systemSessionOpener
	}
	return &TwoFactor{service: cfg.Service, store: cfg.Store, opener: cfg.Opener}, nil
}

// Authenticate checks both factors. The password is verified first against
// the PAM service; only then is the one-time code presented to the store, so
// the stored counter never moves for a caller that failed the password
// check. Store outcomes, including usersfile.ErrReplayedOTP, surface
// unchanged.
func (t *TwoFactor) Authenticate(ctx context.Context, username, password, otp string) error {
	if t == nil {
		return ErrNilAuthenticator
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if username == "" {
		return errors.New("pam: username must not be empty")
	}
	if password == "" {
		return errors.New("pam: password must not be empty")
	}
	if otp == "" {
		return errors.New("pam: otp must not be empty")
	}

	sess, err := t.opener.Open(ctx, t.service, username)
	if err != nil {
		return fmt.Errorf("pam: opening session: %w", err)
	}
	defer sess.Close()

	if err := sess.Authenticate(ctx, password); err != nil {
		return fmt.Errorf("pam: password check: %w", err)
	}

	return t.store.Authenticate(ctx, username, otp)
}
