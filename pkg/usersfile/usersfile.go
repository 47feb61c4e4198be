package usersfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/GetSerene/oath-toolkit/pkg/hotp"
)

// DefaultMaxSecretSize is the largest decoded secret the store accepts
// unless Config.MaxSecretSize overrides it. 20 bytes matches the 160-bit
// secrets the UsersFile format was designed around.
const DefaultMaxSecretSize = 20

// timestampLength is the fixed width of a formatted last-success timestamp.
const timestampLength = len(timeFormat)

// Config holds credential-store configuration.
type Config struct {
	// Path is the credential file location (required).
	Path string
	// Window is how many counter values past the stored moving factor are
	// tried during validation, to tolerate client/server counter drift.
	// A window of 0 accepts only the code for the stored counter.
	Window uint
	// MaxSecretSize caps the decoded secret length in bytes; longer
	// secrets are rejected when the record is read.
	// Default: DefaultMaxSecretSize.
	MaxSecretSize int
}

// validate checks that the configuration is valid.
func (c Config) validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return fmt.Errorf("%w: path must not be empty", ErrInvalidConfig)
	}
	if c.MaxSecretSize < 0 {
		return fmt.Errorf("%w: max secret size must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Authenticator validates OTP codes against a shared credential file and
// advances the stored counter on success.
//
// Safe for concurrent use. Rewrites are serialized across processes by the
// companion lock file and within the process by the Authenticator itself
// (fcntl locks do not exclude threads of the same process).
type Authenticator struct {
	cfg Config
	mu  sync.Mutex
}

// NewAuthenticator creates a credential-store authenticator.
// The configuration is validated and an error is returned if invalid.
func NewAuthenticator(cfg Config) (*Authenticator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.MaxSecretSize == 0 {
		cfg.MaxSecretSize = DefaultMaxSecretSize
	}
	return &Authenticator{cfg: cfg}, nil
}

// Authenticate validates otp for username and, on success, persists the
// advanced counter, the accepted code and a success timestamp. Password
// fields in the file are ignored.
//
// A replayed code is reported as *ReplayError without touching the file.
// Callers must treat every other non-nil result as authentication failure
// and must not assume the file changed.
func (a *Authenticator) Authenticate(ctx context.Context, username, otp string) error {
	return a.authenticate(ctx, username, nil, otp)
}

// AuthenticateWithPassword behaves like Authenticate but additionally checks
// password against the record's password field. Records whose password field
// is "-" (no password set) fail the check.
func (a *Authenticator) AuthenticateWithPassword(ctx context.Context, username, password, otp string) error {
	return a.authenticate(ctx, username, &password, otp)
}

func (a *Authenticator) authenticate(ctx context.Context, username string, passwd *string, otp string) error {
	if a == nil {
		return ErrNilAuthenticator
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if username == "" {
		return errors.New("usersfile: username must not be empty")
	}
	if otp == "" {
		return errors.New("usersfile: otp must not be empty")
	}

	in, err := os.Open(a.cfg.Path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoSuchFile, err)
	}
	defer in.Close()

	rec, err := findRecord(in, username, passwd, a.cfg.MaxSecretSize)
	if err != nil {
		return err
	}

	if rec.LastOTP != "" && rec.LastOTP == otp {
		return &ReplayError{LastAuth: rec.LastAuth}
	}

	offset, err := hotp.Validate(rec.Secret, rec.MovingFactor, a.cfg.Window, rec.Digits, otp)
	if err != nil {
		return err
	}

	timestamp := time.Now().Format(timeFormat)
	if len(timestamp) != timestampLength {
		return fmt.Errorf("%w: got %q", ErrTime, timestamp)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return persist(in, a.cfg.Path, username, otp, timestamp, rec.MovingFactor+uint64(offset))
}
