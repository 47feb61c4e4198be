// Package hotp implements the HOTP one-time password algorithm (RFC 4226).
//
// Codes are generated from a shared secret and a 64-bit moving factor using
// HMAC-SHA1 with dynamic truncation:
//
//	code, err := hotp.GenerateCode(secret, counter, hotp.DigitsSix)
//
// Validation searches a bounded window of counter values and reports the
// offset of the match, so callers can advance their stored counter:
//
//	offset, err := hotp.Validate(secret, counter, 5, hotp.DigitsSix, code)
//	if err == nil {
//	    counter += uint64(offset) // next expected counter is counter+1
//	}
//
// When the plaintext OTP is not available for comparison (for example when
// only a hash of it is stored), supply a Comparator to ValidateCustom; the
// validator passes each candidate code to the comparator and never needs to
// see the target value.
//
// All functions are pure and safe for concurrent use.
package hotp
