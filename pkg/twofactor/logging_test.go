package twofactor_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/twofactor/pkg/logger"
	"github.com/dmitrymomot/twofactor/pkg/twofactor"
)

func logEntries(t *testing.T, buf *bytes.Buffer) map[string]map[string]any {
	t.Helper()
	entries := make(map[string]map[string]any)
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		entries[entry["msg"].(string)] = entry
	}
	return entries
}

func TestServiceLogsRequestSource(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	f := newFixture(t, twofactor.WithLogger(logger.New(logger.WithOutput(buf))))

	ctx := twofactor.WithSource(context.Background(), twofactor.Source{IP: "203.0.113.7", UserAgent: "authenticator-test"})

	codes, err := f.svc.Enable(ctx, "42", testSecret)
	require.NoError(t, err)

	wrong := codeAt(t, testSecret, f.clock.Now().Add(10*time.Minute))
	assert.False(t, f.svc.Verify(ctx, "42", wrong))

	entries := logEntries(t, buf)

	enabled, ok := entries["two-factor authentication enabled"]
	require.True(t, ok)
	assert.Equal(t, "twofactor", enabled["component"])

	rejected, ok := entries["two-factor verification rejected"]
	require.True(t, ok)
	assert.Equal(t, "42", rejected["user_id"])
	assert.Equal(t, string(twofactor.OutcomeInvalidCode), rejected["outcome"])

	source, ok := rejected["source"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "203.0.113.7", source["ip"])
	assert.Equal(t, "authenticator-test", source["user_agent"])

	assert.NotContains(t, buf.String(), testSecret)
	for _, code := range codes {
		assert.NotContains(t, buf.String(), code)
	}
}

func TestServiceLogsWithoutSource(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	f := newFixture(t, twofactor.WithLogger(logger.New(logger.WithOutput(buf))))

	assert.False(t, f.svc.Verify(context.Background(), "nobody", "123456"))

	rejected, ok := logEntries(t, buf)["two-factor verification rejected"]
	require.True(t, ok)
	assert.NotContains(t, rejected, "source")
}
