package twofactor

import "errors"

// Error classes. Every error returned by the Service wraps exactly one of them.
var (
	ErrValidation    = errors.New("twofactor: validation error")
	ErrNotConfigured = errors.New("twofactor: two-factor authentication is not configured")
	ErrCrypto        = errors.New("twofactor: crypto error")
	ErrStorage       = errors.New("twofactor: storage error")
)

// Validation errors
var (
	ErrMissingUserID     = errors.New("user id is required")
	ErrInvalidSecret     = errors.New("invalid TOTP secret")
	ErrSecretTooShort    = errors.New("TOTP secret must decode to at least 10 bytes")
	ErrInvalidCodeFormat = errors.New("code is neither a TOTP code nor a backup code")
	ErrInvalidConfig     = errors.New("invalid two-factor configuration")
	ErrInvalidClock      = errors.New("clock reports a time before the Unix epoch")
)

// Verification errors
var (
	ErrInvalidCode = errors.New("invalid verification code")
	ErrLockedOut   = errors.New("too many failed verification attempts")
)

// Storage contract errors. Store adapters return these so the Service
// can tell a missing row or a lost compare-and-swap from an outage.
var (
	ErrCredentialNotFound = errors.New("two-factor credential not found")
	ErrVersionConflict    = errors.New("two-factor credential version conflict")
)
