// Package pgstore is a PostgreSQL twofactor.Storage built on pgx/v5.
//
// Credentials live in two_factor_credentials keyed by user_id, with a
// version column driving compare-and-swap. Attempts are appended to
// two_factor_attempts. The schema ships as embedded goose migrations,
// see Migrations and pg.Migrate.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/twofactor/pkg/audit"
	"github.com/dmitrymomot/twofactor/pkg/pg"
	"github.com/dmitrymomot/twofactor/pkg/twofactor"
)

// DB is the subset of *pgxpool.Pool (or pgx.Tx) the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Store implements twofactor.Storage, twofactor.AttemptCounter, audit.BatchWriter,
// audit.Querier and audit.Counter.
type Store struct {
	db DB
}

// New wraps an open pool.
func New(db DB) *Store {
	if db == nil {
		panic("pgstore: db cannot be nil")
	}
	return &Store{db: db}
}

const credentialColumns = `user_id, encrypted_secret, encrypted_backup_codes, enabled, version, rotated_at, created_at, updated_at`

const getCredentialQuery = `SELECT ` + credentialColumns + ` FROM two_factor_credentials WHERE user_id = $1`

const upsertCredentialQuery = `
INSERT INTO two_factor_credentials (user_id, encrypted_secret, encrypted_backup_codes, enabled, version, rotated_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, 1, $5, $6, $6)
ON CONFLICT (user_id) DO UPDATE SET
    encrypted_secret       = EXCLUDED.encrypted_secret,
    encrypted_backup_codes = EXCLUDED.encrypted_backup_codes,
    enabled                = EXCLUDED.enabled,
    rotated_at             = EXCLUDED.rotated_at,
    version                = two_factor_credentials.version + 1,
    updated_at             = EXCLUDED.updated_at
RETURNING ` + credentialColumns

const casCredentialQuery = `
UPDATE two_factor_credentials SET
    encrypted_secret       = $3,
    encrypted_backup_codes = $4,
    enabled                = $5,
    rotated_at             = $6,
    updated_at             = $7,
    version                = version + 1
WHERE user_id = $1 AND version = $2
RETURNING ` + credentialColumns

const credentialExistsQuery = `SELECT EXISTS (SELECT 1 FROM two_factor_credentials WHERE user_id = $1)`

func (s *Store) GetCredential(ctx context.Context, userID string) (*twofactor.Credential, error) {
	cred, err := scanCredential(s.db.QueryRow(ctx, getCredentialQuery, userID))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, twofactor.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return &cred, nil
}

func (s *Store) UpsertCredential(ctx context.Context, cred twofactor.Credential) (twofactor.Credential, error) {
	updated := cred.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}

	out, err := scanCredential(s.db.QueryRow(ctx, upsertCredentialQuery,
		cred.UserID,
		cred.EncryptedSecret,
		cred.EncryptedBackupCodes,
		cred.Enabled,
		nullTime(cred.RotatedAt),
		updated,
	))
	if err != nil {
		return twofactor.Credential{}, fmt.Errorf("upsert credential: %w", err)
	}
	return out, nil
}

func (s *Store) CompareAndSwapCredential(ctx context.Context, cred twofactor.Credential, expectedVersion int64) (twofactor.Credential, error) {
	updated := cred.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}

	out, err := scanCredential(s.db.QueryRow(ctx, casCredentialQuery,
		cred.UserID,
		expectedVersion,
		cred.EncryptedSecret,
		cred.EncryptedBackupCodes,
		cred.Enabled,
		nullTime(cred.RotatedAt),
		updated,
	))
	if err == nil {
		return out, nil
	}
	if !pg.IsNotFoundError(err) {
		return twofactor.Credential{}, fmt.Errorf("swap credential: %w", err)
	}

	// No row updated: either the version moved on or the row is gone.
	var exists bool
	if err := s.db.QueryRow(ctx, credentialExistsQuery, cred.UserID).Scan(&exists); err != nil {
		return twofactor.Credential{}, fmt.Errorf("swap credential: %w", err)
	}
	if !exists {
		return twofactor.Credential{}, twofactor.ErrCredentialNotFound
	}
	return twofactor.Credential{}, twofactor.ErrVersionConflict
}

func scanCredential(row pgx.Row) (twofactor.Credential, error) {
	var (
		c       twofactor.Credential
		rotated *time.Time
	)
	if err := row.Scan(
		&c.UserID,
		&c.EncryptedSecret,
		&c.EncryptedBackupCodes,
		&c.Enabled,
		&c.Version,
		&rotated,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return twofactor.Credential{}, err
	}
	if rotated != nil {
		c.RotatedAt = *rotated
	}
	return c, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

const attemptColumns = `id, user_id, success, method, outcome, error, ip, user_agent, created_at`

const insertAttemptQuery = `INSERT INTO two_factor_attempts (` + attemptColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func attemptArgs(a twofactor.Attempt) []any {
	return []any{
		a.ID,
		a.UserID,
		a.Success,
		string(a.Method),
		string(a.Outcome),
		a.Error,
		a.Source.IP,
		a.Source.UserAgent,
		a.CreatedAt,
	}
}

func (s *Store) AppendAttempt(ctx context.Context, attempt twofactor.Attempt) error {
	if _, err := s.db.Exec(ctx, insertAttemptQuery, attemptArgs(attempt)...); err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}
	return nil
}

// AppendAttempts writes the batch in a single round trip.
func (s *Store) AppendAttempts(ctx context.Context, attempts []twofactor.Attempt) error {
	if len(attempts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, a := range attempts {
		batch.Queue(insertAttemptQuery, attemptArgs(a)...)
	}

	br := s.db.SendBatch(ctx, batch)
	var errs []error
	for range attempts {
		if _, err := br.Exec(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := br.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("append attempts: %w", errors.Join(errs...))
	}
	return nil
}

const countFailuresQuery = `
SELECT COUNT(*) FROM two_factor_attempts
WHERE user_id = $1 AND success = FALSE AND outcome = ANY($2) AND created_at >= $3`

func (s *Store) CountFailures(ctx context.Context, userID string, since time.Time) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, countFailuresQuery, userID, outcomeStrings(twofactor.LockoutOutcomes), since).Scan(&n); err != nil {
		return 0, fmt.Errorf("count failures: %w", err)
	}
	return n, nil
}

// FindAttempts implements audit.Querier. Results are ordered newest first.
func (s *Store) FindAttempts(ctx context.Context, criteria audit.Criteria) ([]twofactor.Attempt, error) {
	where, args := buildWhere(criteria)
	query := `SELECT ` + attemptColumns + ` FROM two_factor_attempts` + where + ` ORDER BY created_at DESC`
	if criteria.Limit > 0 {
		args = append(args, criteria.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if criteria.Offset > 0 {
		args = append(args, criteria.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find attempts: %w", err)
	}
	defer rows.Close()

	out := []twofactor.Attempt{}
	for rows.Next() {
		var (
			a               twofactor.Attempt
			method, outcome string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Success, &method, &outcome, &a.Error, &a.Source.IP, &a.Source.UserAgent, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("find attempts: %w", err)
		}
		a.Method = twofactor.Method(method)
		a.Outcome = twofactor.Outcome(outcome)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find attempts: %w", err)
	}
	return out, nil
}

// CountAttempts implements audit.Counter.
func (s *Store) CountAttempts(ctx context.Context, criteria audit.Criteria) (int64, error) {
	where, args := buildWhere(criteria)
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM two_factor_attempts`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return n, nil
}

func buildWhere(c audit.Criteria) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if c.UserID != "" {
		add("user_id = $%d", c.UserID)
	}
	if c.Method != "" {
		add("method = $%d", string(c.Method))
	}
	if len(c.Outcomes) > 0 {
		add("outcome = ANY($%d)", outcomeStrings(c.Outcomes))
	}
	if c.Success != nil {
		add("success = $%d", *c.Success)
	}
	if !c.StartTime.IsZero() {
		add("created_at >= $%d", c.StartTime)
	}
	if !c.EndTime.IsZero() {
		add("created_at < $%d", c.EndTime)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func outcomeStrings(outcomes []twofactor.Outcome) []string {
	out := make([]string, len(outcomes))
	for i, o := range outcomes {
		out[i] = string(o)
	}
	return out
}
