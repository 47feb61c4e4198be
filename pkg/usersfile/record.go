package usersfile

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/GetSerene/oath-toolkit/pkg/hotp"
)

// timeFormat is the fixed-width last-success timestamp layout. The trailing
// L marks local time.
const timeFormat = "2006-01-02T15:04:05L"

// Record is one user's credential line, parsed.
type Record struct {
	// Type is the on-disk type token (HOTP, HOTP/E, HOTP/E/6...).
	Type string
	// Digits is the code length the type token selects.
	Digits hotp.Digits
	// Username identifies the record.
	Username string
	// Password is the raw password field; "-" means no password is set,
	// empty means the field was absent.
	Password string
	// Secret is the decoded shared secret.
	Secret []byte
	// MovingFactor is the stored HOTP counter; 0 when the field was absent.
	MovingFactor uint64
	// LastOTP is the last successfully authenticated code, if recorded.
	LastOTP string
	// LastAuth is the time of the last successful authentication; only
	// meaningful when HasLastAuth is set.
	LastAuth    time.Time
	HasLastAuth bool
}

// typeDigits maps a type token to its code length; 0 means the token is not
// a recognized record type.
func typeDigits(token string) hotp.Digits {
	switch token {
	case "HOTP/E/6":
		return hotp.DigitsSix
	case "HOTP/E/7":
		return hotp.DigitsSeven
	case "HOTP/E/8":
		return hotp.DigitsEight
	case "HOTP/E", "HOTP":
		return hotp.DigitsSix
	}
	return 0
}

// findRecord scans r line by line and returns the first record whose type
// token is recognized and whose username matches. Lines failing either test
// are skipped; field errors on the matched line abort the scan. A non-nil
// passwd enables password checking against the record's password field.
//
// Lines are read the same unbounded way the rewrite path reads them, so a
// file the parser accepts is a file the updater can stream.
func findRecord(r io.Reader, username string, passwd *string, maxSecretSize int) (*Record, error) {
	reader := bufio.NewReader(r)
	for {
		line, readErr := reader.ReadString('\n')
		if line != "" {
			rec, ok, err := parseLine(strings.Fields(line), username, passwd, maxSecretSize)
			if err != nil {
				return nil, err
			}
			if ok {
				return rec, nil
			}
		}
		if readErr == io.EOF {
			return nil, ErrUnknownUser
		}
		if readErr != nil {
			return nil, readErr
		}
	}
}

// parseLine extracts a record from one line's fields. ok is false for lines
// that are not this user's record (wrong type token, wrong username, missing
// mandatory fields); errors are reserved for the matched line's bad fields.
func parseLine(fields []string, username string, passwd *string, maxSecretSize int) (rec *Record, ok bool, err error) {
	if len(fields) == 0 {
		return nil, false, nil
	}

	digits := typeDigits(fields[0])
	if digits == 0 {
		return nil, false, nil
	}
	if len(fields) < 2 || fields[1] != username {
		return nil, false, nil
	}

	rec = &Record{Type: fields[0], Digits: digits, Username: fields[1]}
	rest := fields[2:]

	// Password field. Only consulted when checking was requested; a record
	// without a password field cannot satisfy a password check and is
	// skipped, while "-" (no password set) is a hard failure.
	if len(rest) > 0 {
		rec.Password = rest[0]
	}
	if passwd != nil {
		if len(rest) == 0 {
			return nil, false, nil
		}
		if rec.Password == "-" || rec.Password != *passwd {
			return nil, false, ErrBadPassword
		}
	}

	// Secret field. A line without one is not a usable record.
	if len(rest) < 2 {
		return nil, false, nil
	}
	secret, err := hex.DecodeString(rest[1])
	if err != nil {
		return nil, false, err
	}
	if len(secret) > maxSecretSize {
		return nil, false, fmt.Errorf("%w: %d bytes exceeds maximum of %d", ErrSecretTooLong, len(secret), maxSecretSize)
	}
	rec.Secret = secret

	// Optional moving factor; must be consumed in full.
	if len(rest) > 2 {
		counter, err := strconv.ParseUint(rest[2], 10, 64)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %q", ErrInvalidCounter, rest[2])
		}
		rec.MovingFactor = counter
	}

	// Optional last accepted OTP.
	if len(rest) > 3 {
		rec.LastOTP = rest[3]
	}

	// Optional last-success timestamp; must match the fixed layout exactly.
	if len(rest) > 4 {
		lastAuth, err := time.ParseInLocation(timeFormat, rest[4], time.Local)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %q", ErrInvalidTimestamp, rest[4])
		}
		rec.LastAuth = lastAuth
		rec.HasLastAuth = true
	}

	return rec, true, nil
}
