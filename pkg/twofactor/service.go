package twofactor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrymomot/twofactor/pkg/logger"
	"github.com/dmitrymomot/twofactor/pkg/totp"
	"github.com/dmitrymomot/twofactor/pkg/vault"
)

// Blob purposes, combined with the user id into the vault binding.
const (
	purposeSecret      = "totp-secret"
	purposeBackupCodes = "backup-codes"
)

const defaultRetryBase = 5 * time.Millisecond

// Service is the two-factor engine: enrollment, verification and backup codes.
// It holds immutable configuration only and is safe for concurrent use.
type Service struct {
	storage  Storage
	attempts AttemptStore
	vault    *vault.Vault
	cfg      Config
	params   totp.Params
	logger   *slog.Logger
	now      func() time.Time

	retryBase time.Duration
	lockout   lockoutPolicy
}

type lockoutPolicy struct {
	counter AttemptCounter
	max     int64
	window  time.Duration
}

type Option func(*Service)

// WithLogger sets a custom logger for the service
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for code validation and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAttemptStore routes attempts to a dedicated sink (for example an
// audit.AsyncWriter) instead of the credential storage.
func WithAttemptStore(store AttemptStore) Option {
	return func(s *Service) {
		if store != nil {
			s.attempts = store
		}
	}
}

// WithLockout rejects every code once a user has max counted failures within window.
// Failures are counted by the storage, which must implement AttemptCounter,
// unless WithAttemptCounter supplies another counter.
func WithLockout(max int, window time.Duration) Option {
	return func(s *Service) {
		s.lockout.max = int64(max)
		s.lockout.window = window
	}
}

// WithAttemptCounter sets the counter used by the lockout policy.
func WithAttemptCounter(counter AttemptCounter) Option {
	return func(s *Service) {
		s.lockout.counter = counter
	}
}

// WithRetryBase sets the initial backoff between compare-and-swap retries.
func WithRetryBase(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retryBase = d
		}
	}
}

// New creates a Service over storage, sealing secret material with v.
func New(storage Storage, v *vault.Vault, cfg Config, opts ...Option) (*Service, error) {
	if storage == nil || v == nil {
		return nil, errors.Join(ErrInvalidConfig, errors.New("storage and vault are required"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		storage:   storage,
		attempts:  storage,
		vault:     v,
		cfg:       cfg,
		params:    cfg.Params(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
		retryBase: defaultRetryBase,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.lockout.max > 0 {
		if s.lockout.window <= 0 {
			return nil, errors.Join(ErrInvalidConfig, errors.New("lockout window must be positive"))
		}
		if s.lockout.counter == nil {
			counter, ok := storage.(AttemptCounter)
			if !ok {
				return nil, errors.Join(ErrInvalidConfig, errors.New("lockout requires an attempt counter"))
			}
			s.lockout.counter = counter
		}
	}

	s.logger = logger.Decorate(s.logger, sourceAttr).With(logger.Component("twofactor"))
	return s, nil
}

// NewFromConfig is New with the vault built from cfg.VaultKey.
func NewFromConfig(storage Storage, cfg Config, opts ...Option) (*Service, error) {
	v, err := cfg.NewVault()
	if err != nil {
		return nil, err
	}
	return New(storage, v, cfg, opts...)
}

// GenerateSecret returns a fresh 160-bit base32 secret for enrollment.
func (s *Service) GenerateSecret() (string, error) {
	secret, err := totp.GenerateSecret()
	if err != nil {
		return "", errors.Join(ErrCrypto, err)
	}
	return secret, nil
}

// ProvisioningURI builds the otpauth:// URI for secret using the configured issuer and parameters.
func (s *Service) ProvisioningURI(accountLabel, secret string) (string, error) {
	uri, err := totp.ProvisioningURI(totp.URIParams{
		Secret:      secret,
		AccountName: accountLabel,
		Issuer:      s.cfg.Issuer,
		Algorithm:   s.params.Algorithm,
		Digits:      s.params.Digits,
		Period:      s.params.Period,
	})
	if err != nil {
		return "", errors.Join(ErrValidation, err)
	}
	return uri, nil
}

// Enable stores secret for userID, enables the second factor and returns a fresh set of backup codes.
// Enabling an already configured user replaces the secret and the backup codes in one write.
func (s *Service) Enable(ctx context.Context, userID, secret string) ([]string, error) {
	if userID == "" {
		return nil, errors.Join(ErrValidation, ErrMissingUserID)
	}

	encSecret, err := s.sealSecret(userID, secret)
	if err != nil {
		return nil, err
	}

	codes, encCodes, err := s.newBackupCodes(userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if _, err := s.storage.UpsertCredential(ctx, Credential{
		UserID:               userID,
		EncryptedSecret:      encSecret,
		EncryptedBackupCodes: encCodes,
		Enabled:              true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to store two-factor credential",
			logger.UserID(userID),
			logger.Error(err),
		)
		return nil, storageErr(err)
	}

	s.logger.InfoContext(ctx, "two-factor authentication enabled", logger.UserID(userID))
	return codes, nil
}

// Disable turns the second factor off and erases the stored secret and backup codes.
// Disabling an already disabled user is a no-op; an unknown user yields ErrNotConfigured.
func (s *Service) Disable(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.Join(ErrValidation, ErrMissingUserID)
	}

	_, err := s.mutate(ctx, userID, eventDisable, func(cred *Credential) error {
		cred.Enabled = false
		cred.EncryptedSecret = ""
		cred.EncryptedBackupCodes = ""
		cred.RotatedAt = time.Time{}
		return nil
	})
	if err != nil {
		s.logError(ctx, "failed to disable two-factor authentication", userID, err)
		return err
	}

	s.logger.InfoContext(ctx, "two-factor authentication disabled", logger.UserID(userID))
	return nil
}

// RotateSecret replaces the secret of an enabled user, keeping the outstanding backup codes.
func (s *Service) RotateSecret(ctx context.Context, userID, secret string) error {
	if userID == "" {
		return errors.Join(ErrValidation, ErrMissingUserID)
	}

	encSecret, err := s.sealSecret(userID, secret)
	if err != nil {
		return err
	}

	_, err = s.mutate(ctx, userID, eventRotate, func(cred *Credential) error {
		cred.EncryptedSecret = encSecret
		cred.RotatedAt = s.now()
		return nil
	})
	if err != nil {
		s.logError(ctx, "failed to rotate two-factor secret", userID, err)
		return err
	}

	s.logger.InfoContext(ctx, "two-factor secret rotated", logger.UserID(userID))
	return nil
}

// IsEnabled reports whether codes are currently accepted for userID.
func (s *Service) IsEnabled(ctx context.Context, userID string) (bool, error) {
	state, err := s.State(ctx, userID)
	if err != nil {
		return false, err
	}
	return state.Active(), nil
}

// State returns the lifecycle state of userID's second factor.
func (s *Service) State(ctx context.Context, userID string) (State, error) {
	if userID == "" {
		return StateNotConfigured, errors.Join(ErrValidation, ErrMissingUserID)
	}

	cred, err := s.storage.GetCredential(ctx, userID)
	if errors.Is(err, ErrCredentialNotFound) {
		return StateNotConfigured, nil
	}
	if err != nil {
		return StateNotConfigured, storageErr(err)
	}
	return stateOf(cred), nil
}

func (s *Service) sealSecret(userID, secret string) (string, error) {
	key, err := totp.DecodeSecret(secret)
	if err != nil {
		return "", errors.Join(ErrValidation, ErrInvalidSecret, err)
	}
	defer clear(key)

	if len(key) < MinSecretBytes {
		return "", errors.Join(ErrValidation, ErrInvalidSecret, ErrSecretTooShort)
	}

	blob, err := s.vault.Seal(key, binding(purposeSecret, userID))
	if err != nil {
		return "", errors.Join(ErrCrypto, err)
	}
	return blob, nil
}

func (s *Service) openSecret(cred *Credential) ([]byte, error) {
	key, err := s.vault.Open(cred.EncryptedSecret, binding(purposeSecret, cred.UserID))
	if err != nil {
		return nil, errors.Join(ErrCrypto, err)
	}
	return key, nil
}

// mutate runs a read-modify-write cycle on userID's credential. The write is
// a compare-and-swap on the version read; the whole cycle is retried with
// backoff when another writer got there first.
func (s *Service) mutate(ctx context.Context, userID string, ev event, fn func(cred *Credential) error) (Credential, error) {
	var stored Credential

	backoff := retry.WithMaxRetries(uint64(s.cfg.ConsumeRetries),
		retry.WithCappedDuration(20*s.retryBase, retry.NewExponential(s.retryBase)))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		cred, err := s.storage.GetCredential(ctx, userID)
		if err != nil {
			return err
		}
		if !canFire(stateOf(cred), ev) {
			return ErrNotConfigured
		}

		expected := cred.Version
		if err := fn(cred); err != nil {
			return err
		}
		cred.UpdatedAt = s.now()

		out, err := s.storage.CompareAndSwapCredential(ctx, *cred, expected)
		if errors.Is(err, ErrVersionConflict) {
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		stored = out
		return nil
	})

	return stored, classify(err)
}

func (s *Service) logError(ctx context.Context, msg, userID string, err error) {
	if errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrValidation) {
		s.logger.InfoContext(ctx, msg, logger.UserID(userID), logger.Error(err))
		return
	}
	s.logger.ErrorContext(ctx, msg, logger.UserID(userID), logger.Error(err))
}

// classify attaches an error class to errors surfacing from mutate.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCredentialNotFound):
		return errors.Join(ErrNotConfigured, err)
	case errors.Is(err, ErrNotConfigured),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrCrypto),
		errors.Is(err, ErrStorage),
		errors.Is(err, errBackupCodeNotFound):
		return err
	default:
		return storageErr(err)
	}
}

func storageErr(err error) error {
	if errors.Is(err, ErrStorage) {
		return err
	}
	return errors.Join(ErrStorage, err)
}

func binding(purpose, userID string) []byte {
	return []byte(purpose + ":" + userID)
}
