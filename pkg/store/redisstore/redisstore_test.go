package redisstore_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/twofactor/pkg/audit"
	"github.com/dmitrymomot/twofactor/pkg/redis"
	"github.com/dmitrymomot/twofactor/pkg/store/redisstore"
	"github.com/dmitrymomot/twofactor/pkg/twofactor"
	"github.com/dmitrymomot/twofactor/pkg/vault"
)

func setup(t *testing.T, opts ...redisstore.Option) (*redisstore.Store, *miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := redis.Connect(context.Background(), redis.Config{ConnectionURL: "redis://" + mr.Addr() + "/0"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return redisstore.New(client, opts...), mr, client
}

func TestCredentialLifecycle(t *testing.T) {
	t.Parallel()
	store, mr, _ := setup(t, redisstore.WithPrefix("test"))
	ctx := context.Background()

	_, err := store.GetCredential(ctx, "u1")
	require.ErrorIs(t, err, twofactor.ErrCredentialNotFound)

	first, err := store.UpsertCredential(ctx, twofactor.Credential{UserID: "u1", EncryptedSecret: "s1", Enabled: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Version)
	assert.False(t, first.CreatedAt.IsZero())
	assert.True(t, mr.Exists("test:cred:u1"))

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
	}, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), swapped.Version)

	got, err := store.GetCredential(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "s3", got.EncryptedSecret)
	assert.True(t, rotated.Equal(got.RotatedAt))
	assert.Equal(t, int64(3), got.Version)
}

func TestCompareAndSwapErrors(t *testing.T) {
	t.Parallel()
	store, mr, _ := setup(t)
	ctx := context.Background()

	_, err := store.CompareAndSwapCredential(ctx, twofactor.Credential{UserID: "ghost"}, 1)
	assert.ErrorIs(t, err, twofactor.ErrCredentialNotFound)

	cred, err := store.UpsertCredential(ctx, twofactor.Credential{UserID: "u1", EncryptedSecret: "s"})
	require.NoError(t, err)

	_, err = store.CompareAndSwapCredential(ctx, cred, cred.Version+1)
	assert.ErrorIs(t, err, twofactor.ErrVersionConflict)

	require.NoError(t, mr.Set("twofa:cred:broken", "{not json"))
	_, err = store.GetCredential(ctx, "broken")
	assert.ErrorIs(t, err, redisstore.ErrCorruptRecord)
}

func TestConcurrentCompareAndSwap(t *testing.T) {
	t.Parallel()
	store, _, _ := setup(t)
	ctx := context.Background()

	cred, err := store.UpsertCredential(ctx, twofactor.Credential{UserID: "u1", EncryptedSecret: "s", Enabled: true})
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.CompareAndSwapCredential(ctx, cred, cred.Version); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func attempt(userID string, outcome twofactor.Outcome, at time.Time) twofactor.Attempt {
	return twofactor.Attempt{
		ID:        uuid.New(),
		UserID:    userID,
		Success:   outcome == twofactor.OutcomeSuccess,
		Method:    twofactor.MethodTOTP,
		Outcome:   outcome,
		Source:    twofactor.Source{IP: "10.0.0.1"},
		CreatedAt: at,
	}
}

func TestAttempts(t *testing.T) {
	t.Parallel()
	store, _, _ := setup(t)
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0).UTC()

	require.NoError(t, store.AppendAttempt(ctx, attempt("u1", twofactor.OutcomeSuccess, base)))
	require.NoError(t, store.AppendAttempts(ctx, []twofactor.Attempt{
		attempt("u1", twofactor.OutcomeInvalidCode, base.Add(time.Second)),
		attempt("u1", twofactor.OutcomeInvalidFormat, base.Add(2*time.Second)),
		attempt("u1", twofactor.OutcomeStorageFailure, base.Add(3*time.Second)),
		attempt("u2", twofactor.OutcomeInvalidCode, base.Add(time.Second)),
	}))

	n, err := store.CountFailures(ctx, "u1", base)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = store.CountFailures(ctx, "u1", base.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	found, err := store.FindAttempts(ctx, audit.Criteria{UserID: "u1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, twofactor.OutcomeStorageFailure, found[0].Outcome)
	assert.Equal(t, "10.0.0.1", found[0].Source.IP)

	all, err := store.CountAttempts(ctx, audit.Criteria{Outcomes: []twofactor.Outcome{twofactor.OutcomeInvalidCode}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), all)

	window, err := store.FindAttempts(ctx, audit.Criteria{UserID: "u1", StartTime: base.Add(time.Second), EndTime: base.Add(3 * time.Second)})
	require.NoError(t, err)
	assert.Len(t, window, 2)
}

func TestAttemptTrimming(t *testing.T) {
	t.Parallel()
	base := time.Unix(1_700_000_000, 0).UTC()
	store, mr, _ := setup(t,
		redisstore.WithMaxAttemptsPerUser(3),
		redisstore.WithAttemptRetention(time.Hour),
		redisstore.WithClock(func() time.Time { return base.Add(time.Minute) }),
	)
	ctx := context.Background()

	for i := range 5 {
		require.NoError(t, store.AppendAttempt(ctx, attempt("u1", twofactor.OutcomeInvalidCode, base.Add(time.Duration(i)*time.Second))))
	}
	require.NoError(t, store.AppendAttempt(ctx, attempt("u1", twofactor.OutcomeInvalidCode, base.Add(-2*time.Hour))))

	members, err := mr.ZMembers("twofa:attempts:u1")
	require.NoError(t, err)
	assert.Len(t, members, 3)
	assert.Greater(t, mr.TTL("twofa:attempts:u1"), time.Duration(0))

	found, err := store.FindAttempts(ctx, audit.Criteria{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, found, 3)
	assert.True(t, found[0].CreatedAt.Equal(base.Add(4*time.Second)))
}

func TestServiceDoubleSpend(t *testing.T) {
	t.Parallel()
	store, _, _ := setup(t)
	ctx := context.Background()

	key, err := vault.GenerateEncodedKey()
	require.NoError(t, err)
	cfg := twofactor.DefaultConfig()
	cfg.VaultKey = key
	cfg.ConsumeRetries = 20

	svc, err := twofactor.NewFromConfig(store, cfg, twofactor.WithRetryBase(time.Millisecond))
	require.NoError(t, err)

	secret, err := svc.GenerateSecret()
	require.NoError(t, err)
	codes, err := svc.Enable(ctx, "alice", secret)
	require.NoError(t, err)
	require.NotEmpty(t, codes)

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if svc.Verify(ctx, "alice", codes[0]) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())

	remaining, err := svc.GetBackupCodes(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, remaining, len(codes)-1)
	assert.NotContains(t, remaining, codes[0])

	failed, err := store.FindAttempts(ctx, audit.Criteria{UserID: "alice", Success: audit.Failed()})
	require.NoError(t, err)
	assert.Len(t, failed, 7)
}
