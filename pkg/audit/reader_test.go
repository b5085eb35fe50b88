package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/twofactor/pkg/audit"
	"github.com/dmitrymomot/twofactor/pkg/store/memstore"
	"github.com/dmitrymomot/twofactor/pkg/twofactor"
	"github.com/dmitrymomot/twofactor/pkg/vault"
)

func seed(t *testing.T, base time.Time) *memstore.Store {
	t.Helper()
	s := memstore.New()
	require.NoError(t, s.AppendAttempts(context.Background(), []twofactor.Attempt{
		{UserID: "42", Outcome: twofactor.OutcomeInvalidCode, Method: twofactor.MethodTOTP, CreatedAt: base.Add(-2 * time.Hour)},
		{UserID: "42", Outcome: twofactor.OutcomeInvalidCode, Method: twofactor.MethodTOTP, CreatedAt: base},
		{UserID: "42", Outcome: twofactor.OutcomeStorageFailure, Method: twofactor.MethodTOTP, CreatedAt: base},
		{UserID: "42", Success: true, Outcome: twofactor.OutcomeSuccess, Method: twofactor.MethodTOTP, CreatedAt: base},
	}))
	return s
}

func TestReader_Find(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r := audit.NewReader(seed(t, base))

	attempts, err := r.Find(context.Background(), audit.Criteria{UserID: "42", StartTime: base.Add(-time.Hour)})
	require.NoError(t, err)
	assert.Len(t, attempts, 3)

	_, err = r.Find(context.Background(), audit.Criteria{Limit: -1})
	assert.ErrorIs(t, err, audit.ErrInvalidCriteria)

	_, err = r.Find(context.Background(), audit.Criteria{StartTime: base, EndTime: base})
	assert.ErrorIs(t, err, audit.ErrInvalidCriteria)
}

func TestReader_CountFailures(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r := audit.NewReader(seed(t, base))

	n, err := r.CountFailures(context.Background(), "42", base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "operational failures do not count")

	var _ twofactor.AttemptCounter = r
}

func TestReader_FailureRate(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r := audit.NewReader(seed(t, base))

	rate, err := r.FailureRate(context.Background(), "42", base.Add(-3*time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 0.75, rate, 1e-9)

	rate, err = r.FailureRate(context.Background(), "nobody", base.Add(-3*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, rate)
}

func TestReader_CountFallsBackToFind(t *testing.T) {
	t.Parallel()

	q := &MockQuerier{}
	criteria := audit.Criteria{UserID: "42", Limit: 1}
	q.On("FindAttempts", mock.Anything, audit.Criteria{UserID: "42"}).
		Return([]twofactor.Attempt{{UserID: "42"}, {UserID: "42"}}, nil)

	n, err := audit.NewReader(q).Count(context.Background(), criteria)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "limit is ignored when counting")
	q.AssertExpectations(t)
}

func TestReader_PropagatesErrors(t *testing.T) {
	t.Parallel()

	failure := errors.New("query failed")
	q := &MockQuerier{}
	q.On("FindAttempts", mock.Anything, mock.Anything).Return(nil, failure)

	_, err := audit.NewReader(q).FailureRate(context.Background(), "42", time.Now())
	assert.ErrorIs(t, err, failure)
}

func TestReader_LockoutIntegration(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memstore.New()

	key, err := vault.GenerateEncodedKey()
	require.NoError(t, err)
	cfg := twofactor.DefaultConfig()
	cfg.VaultKey = key

	svc, err := twofactor.NewFromConfig(store, cfg,
		twofactor.WithLockout(2, time.Hour),
		twofactor.WithAttemptCounter(audit.NewReader(store)),
	)
	require.NoError(t, err)

	_, err = svc.Enable(ctx, "42", "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ")
	require.NoError(t, err)

	for range 2 {
		assert.False(t, svc.Verify(ctx, "42", "DEADBEEF"))
	}
	res, err := svc.VerifyDetailed(ctx, "42", "DEADBEEF")
	assert.ErrorIs(t, err, twofactor.ErrLockedOut)
	assert.Equal(t, twofactor.OutcomeLockedOut, res.Outcome)
}

func TestCriteria_Match(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	a := twofactor.Attempt{
		UserID:    "42",
		Method:    twofactor.MethodBackupCode,
		Outcome:   twofactor.OutcomeInvalidCode,
		CreatedAt: base,
	}

	tests := []struct {
		name     string
		criteria audit.Criteria
		want     bool
	}{
		{name: "empty", criteria: audit.Criteria{}, want: true},
		{name: "user", criteria: audit.Criteria{UserID: "42"}, want: true},
		{name: "other user", criteria: audit.Criteria{UserID: "7"}},
		{name: "method", criteria: audit.Criteria{Method: twofactor.MethodTOTP}},
		{name: "outcomes", criteria: audit.Criteria{Outcomes: twofactor.LockoutOutcomes}, want: true},
		{name: "succeeded", criteria: audit.Criteria{Success: audit.Succeeded()}},
		{name: "failed", criteria: audit.Criteria{Success: audit.Failed()}, want: true},
		{name: "start inclusive", criteria: audit.Criteria{StartTime: base}, want: true},
		{name: "end exclusive", criteria: audit.Criteria{EndTime: base}},
		{name: "in range", criteria: audit.Criteria{StartTime: base.Add(-time.Minute), EndTime: base.Add(time.Minute)}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.criteria.Match(a))
		})
	}
}
