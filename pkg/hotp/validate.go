package hotp

import (
	"crypto/subtle"
	"fmt"
)

// Comparator decides whether a candidate code matches the target OTP.
//
// Implementations may compare against plaintext, against a stored hash of the
// OTP, or against any other representation; the validator only ever hands
// them candidate codes and never needs the target value itself.
type Comparator interface {
	Compare(candidate string) (bool, error)
}

// ComparatorFunc adapts a function to the Comparator interface.
type ComparatorFunc func(candidate string) (bool, error)

// Compare executes the underlying function.
func (f ComparatorFunc) Compare(candidate string) (bool, error) {
	return f(candidate)
}

// equalComparator matches a plaintext OTP in constant time.
type equalComparator string

func (e equalComparator) Compare(candidate string) (bool, error) {
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(e)) == 1, nil
}

// Validate searches the window of codes starting at startMovingFactor for the
// given plaintext OTP. It returns the offset of the match within the window
// (zero is the start counter itself), or ErrInvalidOTP if no code in
// [startMovingFactor, startMovingFactor+window] matches.
func Validate(secret []byte, startMovingFactor uint64, window uint, digits Digits, otp string) (uint, error) {
	return ValidateCustom(secret, startMovingFactor, window, digits, equalComparator(otp))
}

// ValidateOTP behaves like Validate but derives the digit count from the
// length of the presented OTP. Lengths outside {6, 7, 8} are rejected with
// ErrInvalidDigits.
func ValidateOTP(secret []byte, startMovingFactor uint64, window uint, otp string) (uint, error) {
	switch len(otp) {
	case 6, 7, 8:
		return Validate(secret, startMovingFactor, window, Digits(len(otp)), otp)
	}
	return 0, fmt.Errorf("%w: otp length %d", ErrInvalidDigits, len(otp))
}

// ValidateCustom searches the window using a caller-supplied comparison
// strategy. Candidates are generated strictly left to right and the first
// match wins; a window of zero checks exactly the start counter. Generation
// and comparator errors abort the search immediately.
func ValidateCustom(secret []byte, startMovingFactor uint64, window uint, digits Digits, cmp Comparator) (uint, error) {
	opts := GenerateOpts{Digits: digits, TruncationOffset: DynamicTruncation}
	for iter := uint(0); iter <= window; iter++ {
		candidate, err := GenerateCodeCustom(secret, startMovingFactor+uint64(iter), opts)
		if err != nil {
			return 0, err
		}
		ok, err := cmp.Compare(candidate)
		if err != nil {
			return 0, err
		}
		if ok {
			return iter, nil
		}
	}
	return 0, ErrInvalidOTP
}
