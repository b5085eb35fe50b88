package mongostore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/twofactor/pkg/audit"
	"github.com/dmitrymomot/twofactor/pkg/mongo"
	"github.com/dmitrymomot/twofactor/pkg/store/mongostore"
	"github.com/dmitrymomot/twofactor/pkg/twofactor"
)

// newStore connects to TWOFA_TEST_MONGO_URL using a throwaway database.
func newStore(t *testing.T) *mongostore.Store {
	t.Helper()

	url := os.Getenv("TWOFA_TEST_MONGO_URL")
	if url == "" {
		t.Skip("TWOFA_TEST_MONGO_URL not set, skipping mongo integration test")
	}

	ctx := context.Background()
	cfg := mongo.Config{
		ConnectionURL: url,
		MaxPoolSize:   10,
		RetryAttempts: 3,
		RetryInterval: 100 * time.Millisecond,
	}
	db, err := mongo.NewWithDatabase(ctx, cfg, "twofactor_test_"+uuid.NewString()[:8])
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = db.Client().Disconnect(context.Background())
	})
	require.NoError(t, mongo.Healthcheck(db.Client())(ctx))

	store := mongostore.New(db)
	require.NoError(t, store.EnsureIndexes(ctx))
	return store
}

func TestCredentialLifecycle(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := store.GetCredential(ctx, "u1")
	require.ErrorIs(t, err, twofactor.ErrCredentialNotFound)

	first, err := store.UpsertCredential(ctx, twofactor.Credential{UserID: "u1", EncryptedSecret: "s1", Enabled: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Version)

	second, err := store.UpsertCredential(ctx, twofactor.Credential{UserID: "u1", EncryptedSecret: "s2", Enabled: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Version)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))

	rotated := time.Unix(1_700_000_000, 0).UTC()
	swapped, err := store.CompareAndSwapCredential(ctx, twofactor.Credential{
		UserID:          "u1",
		EncryptedSecret: "s3",
		Enabled:         true,
		RotatedAt:       rotated,
	}, second.Version)
	require.NoError(t, err)
	assert.Equal(t, int64(3), swapped.Version)
	assert.True(t, rotated.Equal(swapped.RotatedAt))

	_, err = store.CompareAndSwapCredential(ctx, swapped, second.Version)
	assert.ErrorIs(t, err, twofactor.ErrVersionConflict)

	_, err = store.CompareAndSwapCredential(ctx, twofactor.Credential{UserID: "ghost"}, 1)
	assert.ErrorIs(t, err, twofactor.ErrCredentialNotFound)
}

func TestAttempts(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0).UTC()

	mk := func(outcome twofactor.Outcome, offset time.Duration) twofactor.Attempt {
		return twofactor.Attempt{
			ID:        uuid.New(),
			UserID:    "u1",
			Success:   outcome == twofactor.OutcomeSuccess,
			Method:    twofactor.MethodTOTP,
			Outcome:   outcome,
			CreatedAt: base.Add(offset),
		}
	}

	require.NoError(t, store.AppendAttempt(ctx, mk(twofactor.OutcomeSuccess, 0)))
	require.NoError(t, store.AppendAttempts(ctx, []twofactor.Attempt{
		mk(twofactor.OutcomeInvalidCode, time.Second),
		mk(twofactor.OutcomeInvalidFormat, 2*time.Second),
		mk(twofactor.OutcomeCryptoFailure, 3*time.Second),
	}))

	n, err := store.CountFailures(ctx, "u1", base)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	found, err := store.FindAttempts(ctx, audit.Criteria{UserID: "u1", Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, twofactor.OutcomeInvalidFormat, found[0].Outcome)

	total, err := store.CountAttempts(ctx, audit.Criteria{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
}
