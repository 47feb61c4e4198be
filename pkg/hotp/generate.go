package hotp

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"fmt"
)

// Digits is the number of decimal digits in a generated code.
type Digits int

const (
	// DigitsSix produces 6-digit codes (the common default).
	DigitsSix Digits = 6
	// DigitsSeven produces 7-digit codes.
	DigitsSeven Digits = 7
	// DigitsEight produces 8-digit codes.
	DigitsEight Digits = 8
)

// DynamicTruncation selects the truncation offset from the low nibble of the
// final digest byte, as RFC 4226 section 5.3 describes. It is the only
// truncation mode currently performed; see GenerateOpts.TruncationOffset.
const DynamicTruncation = -1

// Common errors returned by this package.
var (
	// ErrInvalidDigits indicates a digit count outside {6, 7, 8}.
	ErrInvalidDigits = errors.New("hotp: digits must be 6, 7, or 8")
	// ErrInvalidOTP indicates no code in the search window matched.
	ErrInvalidOTP = errors.New("hotp: otp not found in window")
	// ErrCrypto indicates the underlying MAC computation failed.
	ErrCrypto = errors.New("hotp: hmac computation failed")
	// ErrFormat indicates the truncated value could not be rendered as a
	// fixed-width decimal string.
	ErrFormat = errors.New("hotp: otp formatting failed")
)

// GenerateOpts controls code generation.
type GenerateOpts struct {
	// Digits is the code length. Default: DigitsSix.
	Digits Digits
	// AddChecksum requests an appended checksum digit. It is accepted for
	// interface compatibility but not honored: no checksum digit is ever
	// appended. This restriction may be lifted in a future version.
	AddChecksum bool
	// TruncationOffset requests a fixed truncation offset. It is accepted
	// for interface compatibility but not honored: dynamic truncation is
	// always performed, as if DynamicTruncation had been passed.
	TruncationOffset int
}

// GenerateCode computes the HOTP code for the given secret and moving factor.
// Unlike the options form, the explicit digits argument gets no default: any
// value outside {6, 7, 8} is rejected.
func GenerateCode(secret []byte, movingFactor uint64, digits Digits) (string, error) {
	switch digits {
	case DigitsSix, DigitsSeven, DigitsEight:
	default:
		return "", fmt.Errorf("%w: got %d", ErrInvalidDigits, digits)
	}
	return GenerateCodeCustom(secret, movingFactor, GenerateOpts{Digits: digits})
}

// GenerateCodeCustom computes an HOTP code with explicit options.
//
// The moving factor is serialized as an 8-byte big-endian value and fed to
// HMAC-SHA1 together with the secret; the digest is dynamically truncated to
// a 31-bit integer and reduced modulo 10^digits.
func GenerateCodeCustom(secret []byte, movingFactor uint64, opts GenerateOpts) (string, error) {
	if opts.Digits == 0 {
		opts.Digits = DigitsSix
	}

	var mod uint32
	switch opts.Digits {
	case DigitsSix:
		mod = 1_000_000
	case DigitsSeven:
		mod = 10_000_000
	case DigitsEight:
		mod = 100_000_000
	default:
		return "", fmt.Errorf("%w: got %d", ErrInvalidDigits, opts.Digits)
	}

	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], movingFactor)

	digest, err := hmacSHA1(secret, counter[:])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCrypto, err)
	}

	// Dynamic truncation: take 4 bytes starting at the offset named by the
	// low nibble of the last digest byte, masking the sign bit.
	offset := digest[len(digest)-1] & 0x0f
	value := binary.BigEndian.Uint32(digest[offset:offset+4]) & 0x7fffffff

	code := fmt.Sprintf("%0*d", int(opts.Digits), value%mod)
	if len(code) != int(opts.Digits) {
		return "", fmt.Errorf("%w: got %q for %d digits", ErrFormat, code, opts.Digits)
	}
	return code, nil
}

func hmacSHA1(secret, message []byte) ([]byte, error) {
	mac := hmac.New(sha1.New, secret)
	if _, err := mac.Write(message); err != nil {
		return nil, err
	}
	return mac.Sum(nil), nil
}
