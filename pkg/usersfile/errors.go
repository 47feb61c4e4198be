package usersfile

import (
	"errors"
	"fmt"
	"time"
)

// Common errors returned by this package.
var (
	// ErrInvalidConfig indicates the configuration is invalid.
	ErrInvalidConfig = errors.New("usersfile: invalid configuration")
	// ErrNilAuthenticator indicates a nil authenticator was used.
	ErrNilAuthenticator = errors.New("usersfile: authenticator is nil")

	// ErrUnknownUser indicates no credential line matched the username.
	ErrUnknownUser = errors.New("usersfile: unknown user")
	// ErrBadPassword indicates the record's password field did not match.
	ErrBadPassword = errors.New("usersfile: bad password")
	// ErrSecretTooLong indicates the decoded secret exceeds the configured
	// maximum size.
	ErrSecretTooLong = errors.New("usersfile: secret too long")
	// ErrInvalidCounter indicates a malformed moving-factor field.
	ErrInvalidCounter = errors.New("usersfile: invalid moving factor")
	// ErrInvalidTimestamp indicates a malformed last-success timestamp field.
	ErrInvalidTimestamp = errors.New("usersfile: invalid timestamp")

	// ErrNoSuchFile indicates the credential file could not be opened.
	ErrNoSuchFile = errors.New("usersfile: no such credential file")
	// ErrFileSeek indicates rewinding the credential file failed.
	ErrFileSeek = errors.New("usersfile: seek failed")
	// ErrFileCreate indicates the lock or staging file could not be created.
	ErrFileCreate = errors.New("usersfile: file creation failed")
	// ErrFileLock indicates the exclusive lock could not be acquired.
	ErrFileLock = errors.New("usersfile: lock acquisition failed")
	// ErrWrite indicates writing the staged file failed.
	ErrWrite = errors.New("usersfile: write failed")
	// ErrFileRename indicates the staged file could not be renamed into place.
	ErrFileRename = errors.New("usersfile: rename failed")
	// ErrFileUnlink indicates the lock file could not be removed.
	ErrFileUnlink = errors.New("usersfile: lock file removal failed")
	// ErrTime indicates the success timestamp could not be produced.
	ErrTime = errors.New("usersfile: timestamp formatting failed")

	// ErrReplayedOTP indicates the presented OTP equals the last accepted
	// one. See ReplayError.
	ErrReplayedOTP = errors.New("usersfile: replayed otp")
)

// ReplayError reports re-presentation of the last successfully authenticated
// OTP. It is a terminal outcome distinct from validation failure: the counter
// is not advanced and the credential file is left untouched.
//
// ReplayError matches ErrReplayedOTP under errors.Is.
type ReplayError struct {
	// LastAuth is the recorded time of the previous successful
	// authentication; zero when the record carries no timestamp.
	LastAuth time.Time
}

func (e *ReplayError) Error() string {
	if e.LastAuth.IsZero() {
		return ErrReplayedOTP.Error()
	}
	return fmt.Sprintf("%s (last success %s)", ErrReplayedOTP, e.LastAuth.Format(timeFormat))
}

// Is reports whether the target is ErrReplayedOTP.
func (e *ReplayError) Is(target error) bool {
	return target == ErrReplayedOTP
}
