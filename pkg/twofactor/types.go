package twofactor

import (
	"time"

	"github.com/google/uuid"
)

// Method identifies which factor satisfied (or was tried for) a verification.
type Method string

const (
	MethodTOTP       Method = "totp"
	MethodBackupCode Method = "backup_code"
)

// Outcome is the typed cause behind a verification decision.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeInvalidCode    Outcome = "invalid_code"
	OutcomeInvalidFormat  Outcome = "invalid_format"
	OutcomeNotConfigured  Outcome = "not_configured"
	OutcomeLockedOut      Outcome = "locked_out"
	OutcomeCryptoFailure  Outcome = "crypto_failure"
	OutcomeStorageFailure Outcome = "storage_failure"
	OutcomeClockFailure   Outcome = "clock_failure"
)

// Operational reports whether the outcome points at a broken dependency
// rather than at the submitted code.
func (o Outcome) Operational() bool {
	return o == OutcomeCryptoFailure || o == OutcomeStorageFailure || o == OutcomeClockFailure
}

// CountsTowardLockout reports whether a failed attempt with this outcome
// is counted by the lockout policy.
func (o Outcome) CountsTowardLockout() bool {
	return o == OutcomeInvalidCode || o == OutcomeInvalidFormat
}

// LockoutOutcomes lists the outcomes stores count in CountFailures.
var LockoutOutcomes = []Outcome{OutcomeInvalidCode, OutcomeInvalidFormat}

// Credential is the per-user two-factor record.
// Both blobs are vault ciphertexts bound to the owning user.
type Credential struct {
	UserID               string
	EncryptedSecret      string
	EncryptedBackupCodes string
	Enabled              bool
	Version              int64     // Incremented by the store on every write
	RotatedAt            time.Time // Zero unless the secret was rotated since the last enable
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Source carries request metadata recorded with each attempt.
type Source struct {
	IP        string
	UserAgent string
}

// Attempt is an append-only verification log entry.
type Attempt struct {
	ID        uuid.UUID
	UserID    string
	Success   bool
	Method    Method
	Outcome   Outcome
	Error     string // Operational error text, empty for wrong codes
	Source    Source
	CreatedAt time.Time
}

// Result is the detailed outcome of VerifyDetailed.
type Result struct {
	Valid   bool
	Method  Method
	Outcome Outcome
	Step    int // Matching period offset for TOTP successes
}
