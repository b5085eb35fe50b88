package audit

import (
	"context"
	"time"

	"github.com/dmitrymomot/twofactor/pkg/twofactor"
)

// Reader answers investigation queries over the attempt log.
type Reader struct {
	querier Querier
}

// NewReader creates a new attempt reader
func NewReader(q Querier) *Reader {
	if q == nil {
		panic("audit: querier cannot be nil")
	}
	return &Reader{querier: q}
}

// Find retrieves attempts matching the criteria, newest first.
func (r *Reader) Find(ctx context.Context, criteria Criteria) ([]twofactor.Attempt, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}
	return r.querier.FindAttempts(ctx, criteria)
}

// Count returns the number of attempts matching the criteria.
// If the querier implements Counter, it uses the optimized count.
// Otherwise it loads the matching attempts and counts them in memory.
func (r *Reader) Count(ctx context.Context, criteria Criteria) (int64, error) {
	if err := criteria.Validate(); err != nil {
		return 0, err
	}
	if counter, ok := r.querier.(Counter); ok {
		return counter.CountAttempts(ctx, criteria)
	}

	criteria.Limit, criteria.Offset = 0, 0
	attempts, err := r.querier.FindAttempts(ctx, criteria)
	if err != nil {
		return 0, err
	}
	return int64(len(attempts)), nil
}

// CountFailures implements twofactor.AttemptCounter, so a Reader can drive the lockout policy.
func (r *Reader) CountFailures(ctx context.Context, userID string, since time.Time) (int64, error) {
	return r.Count(ctx, Criteria{
		UserID:    userID,
		Success:   Failed(),
		Outcomes:  twofactor.LockoutOutcomes,
		StartTime: since,
	})
}

// FailureRate returns the share of failed attempts for userID since the given time.
// It returns 0 when there were no attempts.
func (r *Reader) FailureRate(ctx context.Context, userID string, since time.Time) (float64, error) {
	total, err := r.Count(ctx, Criteria{UserID: userID, StartTime: since})
	if err != nil || total == 0 {
		return 0, err
	}
	failed, err := r.Count(ctx, Criteria{UserID: userID, Success: Failed(), StartTime: since})
	if err != nil {
		return 0, err
	}
	return float64(failed) / float64(total), nil
}
