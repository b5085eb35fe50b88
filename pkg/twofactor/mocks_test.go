package twofactor_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/twofactor/pkg/twofactor"
)

// MockStorage is a mock implementation of twofactor.Storage.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) GetCredential(ctx context.Context, userID string) (*twofactor.Credential, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*twofactor.Credential), args.Error(1)
}

func (m *MockStorage) UpsertCredential(ctx context.Context, cred twofactor.Credential) (twofactor.Credential, error) {
	args := m.Called(ctx, cred)
	return args.Get(0).(twofactor.Credential), args.Error(1)
}

func (m *MockStorage) CompareAndSwapCredential(ctx context.Context, cred twofactor.Credential, expectedVersion int64) (twofactor.Credential, error) {
	args := m.Called(ctx, cred, expectedVersion)
	return args.Get(0).(twofactor.Credential), args.Error(1)
}

func (m *MockStorage) AppendAttempt(ctx context.Context, attempt twofactor.Attempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

// MockAttemptStore is a mock implementation of twofactor.AttemptStore.
type MockAttemptStore struct {
	mock.Mock
}

func (m *MockAttemptStore) AppendAttempt(ctx context.Context, attempt twofactor.Attempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}
