package twofactor

import (
	"errors"
	"fmt"

	"github.com/dmitrymomot/twofactor/pkg/totp"
	"github.com/dmitrymomot/twofactor/pkg/vault"
)

// MinSecretBytes is the shortest decoded secret accepted by Enable (80 bits, RFC 4226).
const MinSecretBytes = 10

// Config is the explicit configuration of a Service.
// It can be populated from the environment with config.Load.
type Config struct {
	VaultKey          string   `env:"TWOFA_VAULT_KEY,required"`      // Base64 encoded 32-byte master key
	PreviousVaultKeys []string `env:"TWOFA_PREVIOUS_VAULT_KEYS"`     // Retired master keys, decryption only
	Issuer            string   `env:"TWOFA_ISSUER" envDefault:"app"` // Issuer shown by authenticator apps
	Digits            int      `env:"TWOFA_DIGITS" envDefault:"6"`
	PeriodSeconds     int      `env:"TWOFA_PERIOD" envDefault:"30"`
	Algorithm         string   `env:"TWOFA_ALGORITHM" envDefault:"SHA1"`
	DriftWindow       int      `env:"TWOFA_DRIFT_WINDOW" envDefault:"1"` // Accepted periods on each side of now
	BackupCodeCount   int      `env:"TWOFA_BACKUP_CODE_COUNT" envDefault:"10"`
	ConsumeRetries    int      `env:"TWOFA_CONSUME_RETRIES" envDefault:"5"` // Compare-and-swap retries on version conflicts
}

// DefaultConfig returns a Config with the standard defaults and no vault key.
func DefaultConfig() Config {
	return Config{
		Issuer:          "app",
		Digits:          totp.DefaultDigits,
		PeriodSeconds:   totp.DefaultPeriod,
		Algorithm:       string(totp.DefaultAlgorithm),
		DriftWindow:     totp.DefaultWindow,
		BackupCodeCount: totp.DefaultBackupCodeCount,
		ConsumeRetries:  5,
	}
}

// Params returns the TOTP generation parameters.
func (c Config) Params() totp.Params {
	return totp.Params{
		Period:    c.PeriodSeconds,
		Digits:    c.Digits,
		Algorithm: totp.Algorithm(c.Algorithm),
	}.GetDefaults()
}

// Validate checks every field except the vault key, which is checked by NewVault.
func (c Config) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}
	if c.DriftWindow < 0 {
		return errors.Join(ErrInvalidConfig, fmt.Errorf("drift window must not be negative, got %d", c.DriftWindow))
	}
	if c.BackupCodeCount < 1 {
		return errors.Join(ErrInvalidConfig, fmt.Errorf("backup code count must be positive, got %d", c.BackupCodeCount))
	}
	if c.ConsumeRetries < 0 {
		return errors.Join(ErrInvalidConfig, fmt.Errorf("consume retries must not be negative, got %d", c.ConsumeRetries))
	}
	return nil
}

// NewVault builds the vault from VaultKey and PreviousVaultKeys.
func (c Config) NewVault() (*vault.Vault, error) {
	v, err := vault.NewFromBase64(c.VaultKey, c.PreviousVaultKeys...)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	return v, nil
}
