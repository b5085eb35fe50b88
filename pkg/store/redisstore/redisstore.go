// Package redisstore is a Redis twofactor.Storage built on go-redis/v9.
//
// Each credential is a JSON document at <prefix>:cred:<user>. Writes run
// under WATCH so a concurrent writer aborts the transaction instead of
// overwriting it. Attempts are kept in sorted sets scored by their
// creation time in milliseconds, one per user plus a global index.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/twofactor/pkg/audit"
	"github.com/dmitrymomot/twofactor/pkg/twofactor"
)

const (
	defaultPrefix  = "twofa"
	maxWatchRetry  = 4
	allAttemptsKey = "attempts"
)

// ErrCorruptRecord is returned when a stored document cannot be decoded.
var ErrCorruptRecord = errors.New("corrupt redis record")

// Store implements twofactor.Storage, twofactor.AttemptCounter, audit.BatchWriter,
// audit.Querier and audit.Counter.
type Store struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
	maxPerKey int64
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix namespaces every key.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithAttemptRetention expires attempt sets after d of inactivity and drops
// older entries on every append. Zero keeps attempts forever.
func WithAttemptRetention(d time.Duration) Option {
	return func(s *Store) {
		s.retention = d
	}
}

// WithMaxAttemptsPerUser caps each user's attempt set to the newest n entries.
func WithMaxAttemptsPerUser(n int64) Option {
	return func(s *Store) {
		s.maxPerKey = n
	}
}

// WithClock overrides the time source used for UpdatedAt and retention.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New wraps a connected client.
func New(client redis.UniversalClient, opts ...Option) *Store {
	if client == nil {
		panic("redisstore: client cannot be nil")
	}
	s := &Store{
		client: client,
		prefix: defaultPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) credKey(userID string) string {
	return s.prefix + ":cred:" + userID
}

func (s *Store) attemptsKey(userID string) string {
	if userID == "" {
		return s.prefix + ":" + allAttemptsKey
	}
	return s.prefix + ":" + allAttemptsKey + ":" + userID
}

type credentialRecord struct {
	UserID               string    `json:"user_id"`
	EncryptedSecret      string    `json:"encrypted_secret"`
	EncryptedBackupCodes string    `json:"encrypted_backup_codes"`
	Enabled              bool      `json:"enabled"`
	Version              int64     `json:"version"`
	RotatedAt            time.Time `json:"rotated_at,omitzero"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func toRecord(c twofactor.Credential) credentialRecord {
	return credentialRecord(c)
}

func (r credentialRecord) credential() twofactor.Credential {
	return twofactor.Credential(r)
}

func (s *Store) GetCredential(ctx context.Context, userID string) (*twofactor.Credential, error) {
	rec, err := s.load(ctx, s.client, userID)
	if err != nil {
		return nil, err
	}
	cred := rec.credential()
	return &cred, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *Store) load(ctx context.Context, c getter, userID string) (credentialRecord, error) {
	data, err := c.Get(ctx, s.credKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return credentialRecord{}, twofactor.ErrCredentialNotFound
		}
		return credentialRecord{}, fmt.Errorf("get credential: %w", err)
	}

	var rec credentialRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return credentialRecord{}, errors.Join(ErrCorruptRecord, err)
	}
	return rec, nil
}

func (s *Store) UpsertCredential(ctx context.Context, cred twofactor.Credential) (twofactor.Credential, error) {
	key := s.credKey(cred.UserID)

	for range maxWatchRetry {
		var out twofactor.Credential
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			rec := toRecord(cred)
			existing, err := s.load(ctx, tx, cred.UserID)
			switch {
			case err == nil:
				rec.Version = existing.Version + 1
				rec.CreatedAt = existing.CreatedAt
			case errors.Is(err, twofactor.ErrCredentialNotFound):
				rec.Version = 1
				if rec.CreatedAt.IsZero() {
					rec.CreatedAt = s.now().UTC()
				}
			default:
				return err
			}
			if rec.UpdatedAt.IsZero() {
				rec.UpdatedAt = s.now().UTC()
			}

			if err := s.write(ctx, tx, key, rec); err != nil {
				return err
			}
			out = rec.credential()
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return twofactor.Credential{}, err
		}
		return out, nil
	}

	return twofactor.Credential{}, fmt.Errorf("upsert credential: %w", redis.TxFailedErr)
}

func (s *Store) CompareAndSwapCredential(ctx context.Context, cred twofactor.Credential, expectedVersion int64) (twofactor.Credential, error) {
	key := s.credKey(cred.UserID)

	var out twofactor.Credential
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		existing, err := s.load(ctx, tx, cred.UserID)
		if err != nil {
			return err
		}
		if existing.Version != expectedVersion {
			return twofactor.ErrVersionConflict
		}

		rec := toRecord(cred)
		rec.Version = existing.Version + 1
		rec.CreatedAt = existing.CreatedAt
		if rec.UpdatedAt.IsZero() {
			rec.UpdatedAt = s.now().UTC()
		}

		if err := s.write(ctx, tx, key, rec); err != nil {
			return err
		}
		out = rec.credential()
		return nil
	}, key)

	// Another client touched the key between WATCH and EXEC.
	if errors.Is(err, redis.TxFailedErr) {
		return twofactor.Credential{}, twofactor.ErrVersionConflict
	}
	if err != nil {
		return twofactor.Credential{}, err
	}
	return out, nil
}

func (s *Store) write(ctx context.Context, tx *redis.Tx, key string, rec credentialRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, 0)
		return nil
	})
	return err
}

type attemptRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Success   bool      `json:"success"`
	Method    string    `json:"method"`
	Outcome   string    `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) AppendAttempt(ctx context.Context, attempt twofactor.Attempt) error {
	return s.AppendAttempts(ctx, []twofactor.Attempt{attempt})
}

// AppendAttempts writes the batch in one MULTI/EXEC round trip.
func (s *Store) AppendAttempts(ctx context.Context, attempts []twofactor.Attempt) error {
	if len(attempts) == 0 {
		return nil
	}

	touched := make(map[string]struct{}, len(attempts))
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, a := range attempts {
			data, err := json.Marshal(attemptRecord{
				ID:        a.ID.String(),
				UserID:    a.UserID,
				Success:   a.Success,
				Method:    string(a.Method),
				Outcome:   string(a.Outcome),
				Error:     a.Error,
				IP:        a.Source.IP,
				UserAgent: a.Source.UserAgent,
				CreatedAt: a.CreatedAt,
			})
			if err != nil {
				return fmt.Errorf("encode attempt: %w", err)
			}
			z := redis.Z{Score: float64(a.CreatedAt.UnixMilli()), Member: data}
			pipe.ZAdd(ctx, s.attemptsKey(a.UserID), z)
			pipe.ZAdd(ctx, s.attemptsKey(""), z)
			touched[s.attemptsKey(a.UserID)] = struct{}{}
		}
		touched[s.attemptsKey("")] = struct{}{}

		for key := range touched {
			if s.retention > 0 {
				cutoff := s.now().Add(-s.retention).UnixMilli()
				pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10))
				pipe.Expire(ctx, key, s.retention)
			}
			if s.maxPerKey > 0 && key != s.attemptsKey("") {
				pipe.ZRemRangeByRank(ctx, key, 0, -s.maxPerKey-1)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append attempts: %w", err)
	}
	return nil
}

func (s *Store) CountFailures(ctx context.Context, userID string, since time.Time) (int64, error) {
	attempts, err := s.scan(ctx, audit.Criteria{
		UserID:    userID,
		Outcomes:  twofactor.LockoutOutcomes,
		Success:   audit.Failed(),
		StartTime: since,
	})
	if err != nil {
		return 0, fmt.Errorf("count failures: %w", err)
	}
	return int64(len(attempts)), nil
}

// FindAttempts implements audit.Querier. Results are ordered newest first.
func (s *Store) FindAttempts(ctx context.Context, criteria audit.Criteria) ([]twofactor.Attempt, error) {
	out, err := s.scan(ctx, criteria)
	if err != nil {
		return nil, fmt.Errorf("find attempts: %w", err)
	}

	if criteria.Offset >= len(out) {
		return []twofactor.Attempt{}, nil
	}
	out = out[criteria.Offset:]
	if criteria.Limit > 0 && criteria.Limit < len(out) {
		out = out[:criteria.Limit]
	}
	return out, nil
}

// CountAttempts implements audit.Counter.
func (s *Store) CountAttempts(ctx context.Context, criteria audit.Criteria) (int64, error) {
	out, err := s.scan(ctx, criteria)
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return int64(len(out)), nil
}

// scan reads the time range from the sorted set and filters the rest in memory.
func (s *Store) scan(ctx context.Context, criteria audit.Criteria) ([]twofactor.Attempt, error) {
	rng := &redis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if !criteria.StartTime.IsZero() {
		rng.Min = strconv.FormatInt(criteria.StartTime.UnixMilli(), 10)
	}
	if !criteria.EndTime.IsZero() {
		rng.Max = strconv.FormatInt(criteria.EndTime.UnixMilli(), 10)
	}

	members, err := s.client.ZRevRangeByScore(ctx, s.attemptsKey(criteria.UserID), rng).Result()
	if err != nil {
		return nil, err
	}

	out := make([]twofactor.Attempt, 0, len(members))
	for _, m := range members {
		a, err := decodeAttempt(m)
		if err != nil {
			return nil, err
		}
		if criteria.Match(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

func decodeAttempt(member string) (twofactor.Attempt, error) {
	var rec attemptRecord
	if err := json.Unmarshal([]byte(member), &rec); err != nil {
		return twofactor.Attempt{}, errors.Join(ErrCorruptRecord, err)
	}
	a := twofactor.Attempt{
		UserID:    rec.UserID,
		Success:   rec.Success,
		Method:    twofactor.Method(rec.Method),
		Outcome:   twofactor.Outcome(rec.Outcome),
		Error:     rec.Error,
		Source:    twofactor.Source{IP: rec.IP, UserAgent: rec.UserAgent},
		CreatedAt: rec.CreatedAt,
	}
	if err := a.ID.UnmarshalText([]byte(rec.ID)); err != nil {
		return twofactor.Attempt{}, errors.Join(ErrCorruptRecord, err)
	}
	return a, nil
}
