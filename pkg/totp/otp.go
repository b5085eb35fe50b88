package totp

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"strings"
	"time"
)

const (
	DefaultDigits    = 6             // Standard 6-digit TOTP codes
	DefaultPeriod    = 30            // 30-second validity window (RFC 6238 standard)
	DefaultAlgorithm = AlgorithmSHA1 // HMAC-SHA1 algorithm (RFC 6238 standard)
	DefaultWindow    = 1             // Accept the previous and the next period
	MaxDigits        = 10            // 31-bit truncated values never exceed 10 decimal digits
)

// Algorithm names the HMAC hash used for code generation.
type Algorithm string

const (
	AlgorithmSHA1   Algorithm = "SHA1"
	AlgorithmSHA256 Algorithm = "SHA256"
	AlgorithmSHA512 Algorithm = "SHA512"
)

func (a Algorithm) hash() (func() hash.Hash, error) {
	switch Algorithm(strings.ToUpper(string(a))) {
	case "", AlgorithmSHA1:
		return sha1.New, nil
	case AlgorithmSHA256:
		return sha256.New, nil
	case AlgorithmSHA512:
		return sha512.New, nil
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}

// String returns the canonical upper-case name used in provisioning URIs.
func (a Algorithm) String() string {
	if a == "" {
		return string(DefaultAlgorithm)
	}
	return strings.ToUpper(string(a))
}

// Params controls code generation. Zero fields fall back to RFC 6238 defaults.
type Params struct {
	Period    int
	Digits    int
	Algorithm Algorithm
}

// GetDefaults returns a copy with RFC 6238 standard defaults applied to zero-valued fields
func (p Params) GetDefaults() Params {
	if p.Period == 0 {
		p.Period = DefaultPeriod
	}
	if p.Digits == 0 {
		p.Digits = DefaultDigits
	}
	if p.Algorithm == "" {
		p.Algorithm = DefaultAlgorithm
	}
	return p
}

// Validate reports whether the parameters can produce codes.
func (p Params) Validate() error {
	if p.Period <= 0 {
		return ErrInvalidPeriod
	}
	if p.Digits < 1 || p.Digits > MaxDigits {
		return ErrInvalidDigits
	}
	if _, err := p.Algorithm.hash(); err != nil {
		return err
	}
	return nil
}

// Match describes a successful validation.
type Match struct {
	Counter uint64 // HOTP counter of the matching period
	Step    int    // Offset from the current period, within [-window, +window]
}

// GenerateHOTP implements RFC 4226 HMAC-based One-Time Password algorithm with HMAC-SHA1.
func GenerateHOTP(key []byte, counter uint64, digits int) int {
	return hotp(sha1.New, key, counter, digits)
}

func hotp(h func() hash.Hash, key []byte, counter uint64, digits int) int {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(h, key)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	// Dynamic truncation (RFC 4226): use last 4 bits as offset into hash
	offset := sum[len(sum)-1] & 0x0f
	// Extract 31-bit value (clear MSB to ensure positive number)
	value := (int64(sum[offset])&0x7f)<<24 |
		int64(sum[offset+1])<<16 |
		int64(sum[offset+2])<<8 |
		int64(sum[offset+3])

	mod := int64(1)
	for range digits {
		mod *= 10
	}

	return int(value % mod)
}

// Generate returns the HMAC-SHA1 TOTP code for unixTime, zero-padded to digits characters.
func Generate(key []byte, unixTime int64, period, digits int) (string, error) {
	return GenerateCustom(key, unixTime, Params{Period: period, Digits: digits, Algorithm: AlgorithmSHA1})
}

// GenerateCustom is Generate with a configurable hash algorithm.
func GenerateCustom(key []byte, unixTime int64, p Params) (string, error) {
	p = p.GetDefaults()
	if err := p.Validate(); err != nil {
		return "", errors.Join(ErrFailedToGenerateTOTP, err)
	}
	if len(key) == 0 {
		return "", errors.Join(ErrFailedToGenerateTOTP, ErrMissingSecret)
	}
	if unixTime < 0 {
		return "", errors.Join(ErrFailedToGenerateTOTP, ErrNegativeTime)
	}

	h, _ := p.Algorithm.hash()
	counter := uint64(unixTime) / uint64(p.Period)
	return format(hotp(h, key, counter, p.Digits), p.Digits), nil
}

// GenerateAt generates the code for the period containing t.
func GenerateAt(key []byte, t time.Time, p Params) (string, error) {
	return GenerateCustom(key, t.Unix(), p)
}

func format(code, digits int) string {
	return fmt.Sprintf("%0*d", digits, code)
}

// Validate checks code against every period in [now-window, now+window].
// The comparison is constant-time; the first matching period is returned.
func Validate(key []byte, code string, now time.Time, p Params, window int) (Match, bool, error) {
	p = p.GetDefaults()
	if err := p.Validate(); err != nil {
		return Match{}, false, errors.Join(ErrFailedToValidateTOTP, err)
	}
	if len(key) == 0 {
		return Match{}, false, errors.Join(ErrFailedToValidateTOTP, ErrMissingSecret)
	}
	if window < 0 {
		window = 0
	}

	code = strings.TrimSpace(code)
	if !IsWellFormed(code, p.Digits) {
		return Match{}, false, ErrInvalidOTP
	}

	h, _ := p.Algorithm.hash()
	unix := now.Unix()
	if unix < 0 {
		return Match{}, false, errors.Join(ErrFailedToValidateTOTP, ErrNegativeTime)
	}
	base := unix / int64(p.Period)

	for step := -window; step <= window; step++ {
		counter := base + int64(step)
		if counter < 0 {
			continue
		}
		candidate := format(hotp(h, key, uint64(counter), p.Digits), p.Digits)
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(code)) == 1 {
			return Match{Counter: uint64(counter), Step: step}, true, nil
		}
	}

	return Match{}, false, nil
}

// IsWellFormed reports whether code consists of exactly digits decimal digits.
func IsWellFormed(code string, digits int) bool {
	if len(code) != digits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
