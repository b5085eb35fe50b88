package totp

import "errors"

var (
	ErrFailedToGenerateSecretKey  = errors.New("failed to generate TOTP secret key")
	ErrFailedToGenerateTOTP       = errors.New("failed to generate TOTP")
	ErrFailedToValidateTOTP       = errors.New("failed to validate TOTP")
	ErrFailedToGenerateBackupCode = errors.New("failed to generate backup code")
	ErrMissingSecret              = errors.New("missing secret")
	ErrInvalidSecret              = errors.New("invalid secret")
	ErrMissingAccountName         = errors.New("missing account name")
	ErrMissingIssuer              = errors.New("missing issuer")
	ErrInvalidOTP                 = errors.New("invalid OTP format")
	ErrInvalidPeriod              = errors.New("invalid TOTP period, must be greater than 0")
	ErrInvalidDigits              = errors.New("invalid TOTP digits, must be between 1 and 10")
	ErrUnsupportedAlgorithm       = errors.New("unsupported TOTP algorithm")
	ErrNegativeTime               = errors.New("time before unix epoch")
	ErrInvalidBackupCodeCount     = errors.New("invalid backup code count, must be greater than 0")
)
