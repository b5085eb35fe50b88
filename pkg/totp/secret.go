package totp

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/dmitrymomot/twofactor/pkg/base32"
)

// SecretSize is the raw secret length in bytes (160 bits, RFC 4226 recommendation).
// Encoded without padding it yields exactly SecretLength base32 characters.
const (
	SecretSize   = 20
	SecretLength = 32
)

// GenerateSecret generates a new Base32-encoded secret key for TOTP.
func GenerateSecret() (string, error) {
	secret := make([]byte, SecretSize)
	if _, err := rand.Read(secret); err != nil {
		return "", errors.Join(ErrFailedToGenerateSecretKey, err)
	}
	defer clear(secret)
	return base32.EncodeNoPadding(secret), nil
}

// DecodeSecret converts a user-facing secret into raw key bytes.
// Surrounding whitespace and inner spaces are dropped and letters are upper-cased,
// since authenticator apps often display secrets in lower-case groups of four.
func DecodeSecret(secret string) ([]byte, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(secret), " ", ""))
	if normalized == "" {
		return nil, ErrMissingSecret
	}
	key, err := base32.Decode(normalized)
	if err != nil {
		return nil, errors.Join(ErrInvalidSecret, err)
	}
	if len(key) == 0 {
		return nil, ErrInvalidSecret
	}
	return key, nil
}

// URIParams contains the parameters for provisioning URI generation
type URIParams struct {
	Secret      string    // Base32-encoded TOTP secret key (required)
	AccountName string    // User identifier like email (required)
	Issuer      string    // Service name displayed in authenticator apps (required)
	Algorithm   Algorithm // HMAC algorithm (optional, defaults to SHA1)
	Digits      int       // Number of digits in generated codes (optional, defaults to 6)
	Period      int       // Code validity period in seconds (optional, defaults to 30)
}

// Validate ensures all required parameters are present and valid
func (p URIParams) Validate() error {
	if p.Secret == "" {
		return ErrMissingSecret
	}
	if _, err := DecodeSecret(p.Secret); err != nil {
		return err
	}
	if p.AccountName == "" {
		return ErrMissingAccountName
	}
	if p.Issuer == "" {
		return ErrMissingIssuer
	}
	return Params{Period: p.Period, Digits: p.Digits, Algorithm: p.Algorithm}.GetDefaults().Validate()
}

// ProvisioningURI creates a properly encoded otpauth:// URI for use with authenticator apps.
// The URI format follows the Key Uri Format specification:
// https://github.com/google/google-authenticator/wiki/Key-Uri-Format
func ProvisioningURI(p URIParams) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	params := Params{Period: p.Period, Digits: p.Digits, Algorithm: p.Algorithm}.GetDefaults()

	label := escapeLabel(p.Issuer) + ":" + escapeLabel(p.AccountName)

	query := url.Values{}
	query.Set("secret", strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(p.Secret), " ", "")))
	query.Set("issuer", p.Issuer)
	query.Set("algorithm", params.Algorithm.String())
	query.Set("digits", strconv.Itoa(params.Digits))
	query.Set("period", strconv.Itoa(params.Period))

	return fmt.Sprintf("otpauth://totp/%s?%s", label, query.Encode()), nil
}

// escapeLabel path-escapes a label part. The colon separates issuer from
// account, so it is escaped as well.
func escapeLabel(s string) string {
	return strings.ReplaceAll(url.PathEscape(s), ":", "%3A")
}
