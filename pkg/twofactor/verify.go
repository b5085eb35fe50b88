package twofactor

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrymomot/twofactor/pkg/logger"
	"github.com/dmitrymomot/twofactor/pkg/totp"
)

// Verify reports whether code is a valid TOTP code or an unused backup code for userID.
// It is fail-closed: any failure, including storage and crypto errors, returns false.
func (s *Service) Verify(ctx context.Context, userID, code string) bool {
	res, _ := s.VerifyDetailed(ctx, userID, code)
	return res.Valid
}

// VerifyDetailed is Verify with the typed outcome. Every call with a user id
// is appended to the attempt log. The error is nil only for a valid code.
func (s *Service) VerifyDetailed(ctx context.Context, userID, code string) (Result, error) {
	if userID == "" {
		return Result{Outcome: OutcomeInvalidFormat, Method: MethodTOTP}, errors.Join(ErrValidation, ErrMissingUserID)
	}

	res, err := s.verify(ctx, userID, code)
	s.record(ctx, userID, res, err)
	s.logResult(ctx, userID, res, err)
	return res, err
}

func (s *Service) verify(ctx context.Context, userID, code string) (Result, error) {
	fail := func(method Method, outcome Outcome, err error) (Result, error) {
		return Result{Method: method, Outcome: outcome}, err
	}

	cred, err := s.storage.GetCredential(ctx, userID)
	if errors.Is(err, ErrCredentialNotFound) {
		return fail(MethodTOTP, OutcomeNotConfigured, errors.Join(ErrNotConfigured, err))
	}
	if err != nil {
		return fail(MethodTOTP, OutcomeStorageFailure, storageErr(err))
	}
	if !stateOf(cred).Active() {
		return fail(MethodTOTP, OutcomeNotConfigured, ErrNotConfigured)
	}

	otp := strings.TrimSpace(code)
	backup := totp.NormalizeBackupCode(code)
	isOTP := totp.IsWellFormed(otp, s.params.Digits)
	isBackup := totp.IsBackupCodeShape(backup)

	method := MethodTOTP
	if !isOTP && isBackup {
		method = MethodBackupCode
	}

	if !isOTP && !isBackup {
		return fail(method, OutcomeInvalidFormat, errors.Join(ErrValidation, ErrInvalidCodeFormat))
	}

	if locked, err := s.lockedOut(ctx, userID); err != nil {
		return fail(method, OutcomeStorageFailure, err)
	} else if locked {
		return fail(method, OutcomeLockedOut, ErrLockedOut)
	}

	if isOTP {
		match, ok, err := s.validateTOTP(cred, otp)
		switch {
		case errors.Is(err, ErrInvalidClock):
			return fail(MethodTOTP, OutcomeClockFailure, err)
		case err != nil:
			return fail(MethodTOTP, OutcomeCryptoFailure, err)
		}
		if ok {
			return Result{Valid: true, Method: MethodTOTP, Outcome: OutcomeSuccess, Step: match.Step}, nil
		}
	}

	if isBackup {
		ok, err := s.consumeBackupCode(ctx, userID, backup)
		switch {
		case errors.Is(err, ErrCrypto):
			return fail(MethodBackupCode, OutcomeCryptoFailure, err)
		case errors.Is(err, ErrNotConfigured):
			return fail(MethodBackupCode, OutcomeNotConfigured, err)
		case err != nil:
			return fail(MethodBackupCode, OutcomeStorageFailure, err)
		case ok:
			return Result{Valid: true, Method: MethodBackupCode, Outcome: OutcomeSuccess}, nil
		}
	}

	return fail(method, OutcomeInvalidCode, ErrInvalidCode)
}

// validateTOTP decrypts the secret for the duration of the check only.
func (s *Service) validateTOTP(cred *Credential, code string) (totp.Match, bool, error) {
	key, err := s.openSecret(cred)
	if err != nil {
		return totp.Match{}, false, err
	}
	defer clear(key)

	match, ok, err := totp.Validate(key, code, s.now(), s.params, s.cfg.DriftWindow)
	if errors.Is(err, totp.ErrNegativeTime) {
		return totp.Match{}, false, errors.Join(ErrValidation, ErrInvalidClock, err)
	}
	if err != nil {
		return totp.Match{}, false, errors.Join(ErrCrypto, err)
	}
	return match, ok, nil
}

func (s *Service) lockedOut(ctx context.Context, userID string) (bool, error) {
	if s.lockout.max <= 0 {
		return false, nil
	}
	failures, err := s.lockout.counter.CountFailures(ctx, userID, s.now().Add(-s.lockout.window))
	if err != nil {
		return false, storageErr(err)
	}
	return failures >= s.lockout.max, nil
}

func (s *Service) logResult(ctx context.Context, userID string, res Result, err error) {
	attrs := []any{
		logger.UserID(userID),
		logger.Method(string(res.Method)),
		logger.Outcome(string(res.Outcome)),
	}

	switch {
	case res.Valid:
		s.logger.InfoContext(ctx, "two-factor verification succeeded", attrs...)
	case res.Outcome.Operational():
		s.logger.ErrorContext(ctx, "two-factor verification failed", append(attrs, logger.Error(err))...)
	default:
		s.logger.InfoContext(ctx, "two-factor verification rejected", attrs...)
	}
}
