package audit_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/twofactor/pkg/audit"
	"github.com/dmitrymomot/twofactor/pkg/twofactor"
)

// MockBatchWriter is a mock implementation of audit.BatchWriter that also
// records the sizes of the batches it received.
type MockBatchWriter struct {
	mock.Mock

	mu      sync.Mutex
	batches [][]twofactor.Attempt
}

func (m *MockBatchWriter) AppendAttempts(ctx context.Context, attempts []twofactor.Attempt) error {
	m.mu.Lock()
	m.batches = append(m.batches, append([]twofactor.Attempt(nil), attempts...))
	m.mu.Unlock()

	args := m.Called(ctx, attempts)
	return args.Error(0)
}

func (m *MockBatchWriter) Batches() [][]twofactor.Attempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]twofactor.Attempt(nil), m.batches...)
}

func (m *MockBatchWriter) Total() int {
	n := 0
	for _, b := range m.Batches() {
		n += len(b)
	}
	return n
}

// MockQuerier is a mock implementation of audit.Querier.
type MockQuerier struct {
	mock.Mock
}

func (m *MockQuerier) FindAttempts(ctx context.Context, criteria audit.Criteria) ([]twofactor.Attempt, error) {
	args := m.Called(ctx, criteria)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]twofactor.Attempt), args.Error(1)
}
