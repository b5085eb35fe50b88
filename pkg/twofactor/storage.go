package twofactor

import (
	"context"
	"time"
)

// CredentialStore persists one Credential per user.
type CredentialStore interface {
	// GetCredential returns ErrCredentialNotFound when the user has no row.
	GetCredential(ctx context.Context, userID string) (*Credential, error)

	// UpsertCredential inserts or replaces the row in a single atomic write.
	// The store bumps Version, keeps CreatedAt of an existing row and returns the stored value.
	UpsertCredential(ctx context.Context, cred Credential) (Credential, error)

	// CompareAndSwapCredential replaces the row only if its stored Version equals expectedVersion.
	// Returns ErrVersionConflict on mismatch and ErrCredentialNotFound when the row is gone.
	CompareAndSwapCredential(ctx context.Context, cred Credential, expectedVersion int64) (Credential, error)
}

// AttemptStore appends verification attempts.
type AttemptStore interface {
	AppendAttempt(ctx context.Context, attempt Attempt) error
}

// AttemptCounter counts failed attempts for the lockout policy.
// Only failures whose outcome is listed in LockoutOutcomes are counted.
type AttemptCounter interface {
	CountFailures(ctx context.Context, userID string, since time.Time) (int64, error)
}

// Storage is the persistence contract required by the Service.
type Storage interface {
	CredentialStore
	AttemptStore
}
