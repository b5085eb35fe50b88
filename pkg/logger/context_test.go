package logger_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/twofactor/pkg/logger"
)

type traceKey struct{}

func traceAttr(ctx context.Context) (slog.Attr, bool) {
	v, ok := ctx.Value(traceKey{}).(string)
	return slog.String("trace_id", v), ok
}

func TestDecorate(t *testing.T) {
	t.Parallel()

	ctx := context.WithValue(context.Background(), traceKey{}, "t-1")

	t.Run("foreign handler gains extractors and redaction", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.Decorate(slog.New(slog.NewJSONHandler(buf, nil)), traceAttr)

		log.InfoContext(ctx, "msg", slog.String("encrypted_secret", "AQID"))

		entry := decode(t, buf)[0]
		assert.Equal(t, "t-1", entry["trace_id"])
		assert.Equal(t, logger.RedactedValue, entry["encrypted_secret"])
	})

	t.Run("logger from New keeps its options", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		base := logger.New(
			logger.WithOutput(buf),
			logger.WithRedactedKeys("otp"),
			logger.WithContextExtractors(func(context.Context) (slog.Attr, bool) {
				return slog.String("tenant", "acme"), true
			}),
		)
		log := logger.Decorate(base.With(logger.Component("twofactor")), traceAttr)

		log.InfoContext(ctx, "msg", slog.String("otp", "123456"))

		entry := decode(t, buf)[0]
		assert.Equal(t, "t-1", entry["trace_id"])
		assert.Equal(t, "acme", entry["tenant"])
		assert.Equal(t, "twofactor", entry["component"])
		assert.Equal(t, logger.RedactedValue, entry["otp"])
	})

	t.Run("base logger is not modified", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		base := logger.New(logger.WithOutput(buf))
		_ = logger.Decorate(base, traceAttr)

		base.InfoContext(ctx, "msg")
		assert.NotContains(t, decode(t, buf)[0], "trace_id")
	})

	t.Run("groups keep extractors", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.Decorate(slog.New(slog.NewJSONHandler(buf, nil)), traceAttr).WithGroup("verify")

		log.InfoContext(ctx, "msg", slog.String("code", "1"))

		group, ok := decode(t, buf)[0]["verify"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "t-1", group["trace_id"])
		assert.Equal(t, logger.RedactedValue, group["code"])
	})

	t.Run("nil logger", func(t *testing.T) {
		t.Parallel()
		assert.NotNil(t, logger.Decorate(nil, traceAttr))
	})
}
