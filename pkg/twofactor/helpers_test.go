package twofactor_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/twofactor/pkg/store/memstore"
	"github.com/dmitrymomot/twofactor/pkg/totp"
	"github.com/dmitrymomot/twofactor/pkg/twofactor"
	"github.com/dmitrymomot/twofactor/pkg/vault"
)

const testSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Unix(1_700_000_010, 0).UTC()}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig(t *testing.T) twofactor.Config {
	t.Helper()
	key, err := vault.GenerateEncodedKey()
	require.NoError(t, err)

	cfg := twofactor.DefaultConfig()
	cfg.VaultKey = key
	cfg.Issuer = "Acme"
	return cfg
}

type fixture struct {
	svc   *twofactor.Service
	store *memstore.Store
	clock *clock
	cfg   twofactor.Config
}

func newFixture(t *testing.T, opts ...twofactor.Option) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, testConfig(t), opts...)
}

func newFixtureWithConfig(t *testing.T, cfg twofactor.Config, opts ...twofactor.Option) *fixture {
	t.Helper()

	c := newClock()
	store := memstore.New(memstore.WithClock(c.Now))
	svc, err := twofactor.NewFromConfig(store, cfg,
		append([]twofactor.Option{twofactor.WithClock(c.Now), twofactor.WithRetryBase(time.Millisecond)}, opts...)...)
	require.NoError(t, err)

	return &fixture{svc: svc, store: store, clock: c, cfg: cfg}
}

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	key, err := totp.DecodeSecret(secret)
	require.NoError(t, err)
	code, err := totp.GenerateAt(key, at, totp.Params{})
	require.NoError(t, err)
	return code
}
