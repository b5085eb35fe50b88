package audit

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrymomot/twofactor/pkg/twofactor"
)

// BatchWriter provides bulk storage for attempts.
// Implementations should write the whole batch atomically (SQL batch, InsertMany, pipeline).
type BatchWriter interface {
	AppendAttempts(ctx context.Context, attempts []twofactor.Attempt) error
}

// Querier reads attempts back for investigation and anomaly detection.
type Querier interface {
	FindAttempts(ctx context.Context, criteria Criteria) ([]twofactor.Attempt, error)
}

// Counter is an optional Querier extension with an optimized count.
type Counter interface {
	CountAttempts(ctx context.Context, criteria Criteria) (int64, error)
}

// Criteria selects attempts. Zero fields match everything.
type Criteria struct {
	UserID    string
	Method    twofactor.Method
	Outcomes  []twofactor.Outcome
	Success   *bool
	StartTime time.Time // Inclusive
	EndTime   time.Time // Exclusive
	Limit     int
	Offset    int
}

// Validate checks that the criteria can be executed.
func (c Criteria) Validate() error {
	if c.Limit < 0 || c.Offset < 0 {
		return fmt.Errorf("%w: limit and offset must not be negative", ErrInvalidCriteria)
	}
	if !c.StartTime.IsZero() && !c.EndTime.IsZero() && !c.EndTime.After(c.StartTime) {
		return fmt.Errorf("%w: end time must be after start time", ErrInvalidCriteria)
	}
	return nil
}

// Match reports whether a satisfies the criteria, ignoring Limit and Offset.
// Stores without a query language filter with it.
func (c Criteria) Match(a twofactor.Attempt) bool {
	if c.UserID != "" && a.UserID != c.UserID {
		return false
	}
	if c.Method != "" && a.Method != c.Method {
		return false
	}
	if len(c.Outcomes) > 0 && !slices.Contains(c.Outcomes, a.Outcome) {
		return false
	}
	if c.Success != nil && a.Success != *c.Success {
		return false
	}
	if !c.StartTime.IsZero() && a.CreatedAt.Before(c.StartTime) {
		return false
	}
	if !c.EndTime.IsZero() && !a.CreatedAt.Before(c.EndTime) {
		return false
	}
	return true
}

// Failed is a convenience for Criteria.Success.
func Failed() *bool {
	v := false
	return &v
}

// Succeeded is a convenience for Criteria.Success.
func Succeeded() *bool {
	v := true
	return &v
}
