// Package base32 implements the RFC 4648 base32 encoding used for TOTP shared
// secrets.
//
// The codec is kept free of any cryptographic code so that its correctness can
// be audited and table-tested in isolation. Decoding is strict: characters
// outside the alphabet, stray padding, pad runs that cannot terminate an
// 8-character group and final groups with non-zero unused bits are rejected
// instead of being silently ignored.
//
// # Usage
//
//	secret := base32.EncodeNoPadding(raw)   // "GEZDGNBVGY3TQOJQ..."
//	raw, err := base32.Decode(secret)
//	if err != nil {
//	    // errors.Is(err, base32.ErrMalformed) == true
//	}
//
// # Error Handling
//
// Every decoding error wraps ErrMalformed together with one of
// ErrInvalidCharacter, ErrInvalidPadding, ErrInvalidLength or ErrTrailingBits.
package base32
