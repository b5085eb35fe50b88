// Package memstore is an in-memory twofactor.Storage.
// It is intended for tests and single-process deployments.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/twofactor/pkg/audit"
	"github.com/dmitrymomot/twofactor/pkg/twofactor"
)

// Store keeps credentials and attempts in maps guarded by a single mutex.
type Store struct {
	mu          sync.RWMutex
	credentials map[string]twofactor.Credential
	attempts    map[string][]twofactor.Attempt
	now         func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for UpdatedAt on writes.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		credentials: make(map[string]twofactor.Credential),
		attempts:    make(map[string][]twofactor.Attempt),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) GetCredential(_ context.Context, userID string) (*twofactor.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.credentials[userID]
	if !ok {
		return nil, twofactor.ErrCredentialNotFound
	}
	return &cred, nil
}

func (s *Store) UpsertCredential(_ context.Context, cred twofactor.Credential) (twofactor.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.credentials[cred.UserID]; ok {
		cred.CreatedAt = existing.CreatedAt
		cred.Version = existing.Version + 1
	} else {
		cred.Version = 1
		if cred.CreatedAt.IsZero() {
			cred.CreatedAt = s.now()
		}
	}
	if cred.UpdatedAt.IsZero() {
		cred.UpdatedAt = s.now()
	}

	s.credentials[cred.UserID] = cred
	return cred, nil
}

func (s *Store) CompareAndSwapCredential(_ context.Context, cred twofactor.Credential, expectedVersion int64) (twofactor.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.credentials[cred.UserID]
	if !ok {
		return twofactor.Credential{}, twofactor.ErrCredentialNotFound
	}
	if existing.Version != expectedVersion {
		return twofactor.Credential{}, twofactor.ErrVersionConflict
	}

	cred.Version = existing.Version + 1
	cred.CreatedAt = existing.CreatedAt
	s.credentials[cred.UserID] = cred
	return cred, nil
}

func (s *Store) AppendAttempt(_ context.Context, attempt twofactor.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts[attempt.UserID] = append(s.attempts[attempt.UserID], attempt)
	return nil
}

// AppendAttempts implements audit.BatchWriter.
func (s *Store) AppendAttempts(_ context.Context, attempts []twofactor.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range attempts {
		s.attempts[a.UserID] = append(s.attempts[a.UserID], a)
	}
	return nil
}

func (s *Store) CountFailures(_ context.Context, userID string, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, a := range s.attempts[userID] {
		if !a.Success && a.Outcome.CountsTowardLockout() && !a.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// FindAttempts implements audit.Querier. Results are ordered newest first.
func (s *Store) FindAttempts(_ context.Context, criteria audit.Criteria) ([]twofactor.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []twofactor.Attempt
	for _, list := range s.attempts {
		for _, a := range list {
			if criteria.Match(a) {
				out = append(out, a)
			}
		}
	}

	slices.SortStableFunc(out, func(a, b twofactor.Attempt) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

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
func (s *Store) CountAttempts(_ context.Context, criteria audit.Criteria) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, list := range s.attempts {
		for _, a := range list {
			if criteria.Match(a) {
				n++
			}
		}
	}
	return n, nil
}

// Attempts returns a copy of the attempts recorded for userID, oldest first.
func (s *Store) Attempts(userID string) []twofactor.Attempt {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.attempts[userID])
}
