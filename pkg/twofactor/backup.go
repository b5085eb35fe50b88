package twofactor

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"slices"

	"github.com/dmitrymomot/twofactor/pkg/logger"
	"github.com/dmitrymomot/twofactor/pkg/totp"
)

var errBackupCodeNotFound = errors.New("backup code not found")

// GetBackupCodes returns the outstanding backup codes of an enabled user.
func (s *Service) GetBackupCodes(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, errors.Join(ErrValidation, ErrMissingUserID)
	}

	cred, err := s.storage.GetCredential(ctx, userID)
	if errors.Is(err, ErrCredentialNotFound) {
		return nil, errors.Join(ErrNotConfigured, err)
	}
	if err != nil {
		return nil, storageErr(err)
	}
	if !stateOf(cred).Active() {
		return nil, ErrNotConfigured
	}

	codes, err := s.openBackupCodes(cred)
	if err != nil {
		s.logError(ctx, "failed to decrypt backup codes", userID, err)
		return nil, err
	}
	return codes, nil
}

// RegenerateBackupCodes replaces the whole backup-code set of an enabled user.
// Previously issued codes stop working as soon as the call returns.
func (s *Service) RegenerateBackupCodes(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, errors.Join(ErrValidation, ErrMissingUserID)
	}

	codes, blob, err := s.newBackupCodes(userID)
	if err != nil {
		return nil, err
	}

	if _, err := s.mutate(ctx, userID, eventRegen, func(cred *Credential) error {
		cred.EncryptedBackupCodes = blob
		return nil
	}); err != nil {
		s.logError(ctx, "failed to regenerate backup codes", userID, err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "backup codes regenerated", logger.UserID(userID))
	return codes, nil
}

// consumeBackupCode removes code from the stored set if present.
// The removal is a compare-and-swap on the credential version, so two
// concurrent requests presenting the same code cannot both succeed.
func (s *Service) consumeBackupCode(ctx context.Context, userID, code string) (bool, error) {
	_, err := s.mutate(ctx, userID, eventConsume, func(cred *Credential) error {
		codes, err := s.openBackupCodes(cred)
		if err != nil {
			return err
		}

		idx := matchBackupCode(codes, code)
		if idx < 0 {
			return errBackupCodeNotFound
		}

		blob, err := s.sealBackupCodes(cred.UserID, slices.Delete(codes, idx, idx+1))
		if err != nil {
			return err
		}
		cred.EncryptedBackupCodes = blob
		return nil
	})

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errBackupCodeNotFound):
		return false, nil
	default:
		return false, err
	}
}

// matchBackupCode compares code against every stored code in constant time
// per entry and returns the index of the match or -1.
func matchBackupCode(codes []string, code string) int {
	idx := -1
	for i, c := range codes {
		if subtle.ConstantTimeCompare([]byte(c), []byte(code)) == 1 && idx < 0 {
			idx = i
		}
	}
	return idx
}

func (s *Service) newBackupCodes(userID string) ([]string, string, error) {
	codes, err := totp.GenerateBackupCodes(s.cfg.BackupCodeCount)
	if err != nil {
		return nil, "", errors.Join(ErrCrypto, err)
	}
	blob, err := s.sealBackupCodes(userID, codes)
	if err != nil {
		return nil, "", err
	}
	return codes, blob, nil
}

func (s *Service) sealBackupCodes(userID string, codes []string) (string, error) {
	if codes == nil {
		codes = []string{}
	}
	data, err := json.Marshal(codes)
	if err != nil {
		return "", errors.Join(ErrCrypto, err)
	}
	defer clear(data)

	blob, err := s.vault.Seal(data, binding(purposeBackupCodes, userID))
	if err != nil {
		return "", errors.Join(ErrCrypto, err)
	}
	return blob, nil
}

func (s *Service) openBackupCodes(cred *Credential) ([]string, error) {
	if cred.EncryptedBackupCodes == "" {
		return []string{}, nil
	}

	data, err := s.vault.Open(cred.EncryptedBackupCodes, binding(purposeBackupCodes, cred.UserID))
	if err != nil {
		return nil, errors.Join(ErrCrypto, err)
	}
	defer clear(data)

	var codes []string
	if err := json.Unmarshal(data, &codes); err != nil {
		return nil, errors.Join(ErrCrypto, err)
	}
	return codes, nil
}
