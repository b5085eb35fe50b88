// Package totp implements the pure building blocks of time-based one-time
// passwords: RFC 4226 HOTP, RFC 6238 TOTP with a drift window, secret
// generation, otpauth:// provisioning URIs and single-use backup codes.
//
// Nothing in this package performs I/O or keeps state. Code generation is a
// deterministic function of (key, time, params), which makes the published
// RFC 6238 test vectors reproducible bit for bit.
//
// # Architecture
//
//   - otp.go    – HOTP/TOTP generation (GenerateHOTP, Generate, GenerateCustom)
//     and constant-time validation over a drift window (Validate).
//   - secret.go – secret creation (GenerateSecret), tolerant decoding of
//     user-facing secrets (DecodeSecret) and provisioning URI construction.
//   - backup.go – backup code generation and input normalization.
//
// Base32 handling lives in the sibling package base32 so the bit-packing code
// can be audited separately from the cryptographic code.
//
// # Usage
//
//	secret, _ := totp.GenerateSecret()
//	uri, _ := totp.ProvisioningURI(totp.URIParams{
//	    Secret:      secret,
//	    AccountName: "alice@example.com",
//	    Issuer:      "Acme",
//	})
//
//	key, _ := totp.DecodeSecret(secret)
//	code, _ := totp.Generate(key, time.Now().Unix(), totp.DefaultPeriod, totp.DefaultDigits)
//	_, ok, _ := totp.Validate(key, code, time.Now(), totp.Params{}, totp.DefaultWindow)
//
// # Error Handling
//
// Exported functions return package level sentinels (ErrInvalidOTP,
// ErrInvalidSecret, ErrInvalidDigits, ...) that may be wrapped using
// errors.Join; inspect them with errors.Is.
//
// # See Also
//
//   - RFC 4226 – HMAC-Based One-Time Password (HOTP) Algorithm
//   - RFC 6238 – Time-Based One-Time Password (TOTP) Algorithm
package totp
