package logger

import (
	"context"
	"log/slog"
	"slices"
	"strings"
)

// RedactedValue replaces the value of every attribute with a redacted key.
const RedactedValue = "[REDACTED]"

// DefaultRedactedKeys are attribute keys whose values never reach the output.
// Matching is case-insensitive and applies inside groups.
var DefaultRedactedKeys = []string{
	"secret",
	"code",
	"backup_code",
	"backup_codes",
	"vault_key",
	"encrypted_secret",
	"encrypted_backup_codes",
}

// ContextExtractor extracts a slog attribute from context.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

// contextHandler adds attributes pulled from the record's context and
// replaces the values of redacted keys before delegating.
type contextHandler struct {
	next       slog.Handler
	extractors []ContextExtractor
	redact     map[string]struct{}
}

func newContextHandler(next slog.Handler, extractors []ContextExtractor, redact []string) *contextHandler {
	h := &contextHandler{
		next:   next,
		redact: make(map[string]struct{}, len(redact)),
	}
	for _, k := range redact {
		if k != "" {
			h.redact[strings.ToLower(k)] = struct{}{}
		}
	}
	h.extractors = appendExtractors(nil, extractors)
	return h
}

func appendExtractors(dst, extractors []ContextExtractor) []ContextExtractor {
	for _, ex := range extractors {
		if ex != nil {
			dst = append(dst, ex)
		}
	}
	return dst
}

// Decorate returns l with extra context extractors and the default redaction.
// A logger created by New keeps its own redaction list and gains the extractors.
func Decorate(l *slog.Logger, extractors ...ContextExtractor) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	if h, ok := l.Handler().(*contextHandler); ok {
		return slog.New(&contextHandler{
			next:       h.next,
			extractors: appendExtractors(slices.Clip(h.extractors), extractors),
			redact:     h.redact,
		})
	}
	return slog.New(newContextHandler(l.Handler(), extractors, DefaultRedactedKeys))
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.scrub(a))
		return true
	})
	for _, ex := range h.extractors {
		if attr, ok := ex(ctx); ok {
			out.AddAttrs(h.scrub(attr))
		}
	}
	return h.next.Handle(ctx, out)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	scrubbed := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		scrubbed[i] = h.scrub(a)
	}
	return &contextHandler{
		next:       h.next.WithAttrs(scrubbed),
		extractors: h.extractors,
		redact:     h.redact,
	}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{
		next:       h.next.WithGroup(name),
		extractors: h.extractors,
		redact:     h.redact,
	}
}

func (h *contextHandler) scrub(a slog.Attr) slog.Attr {
	if len(h.redact) == 0 || a.Equal(slog.Attr{}) {
		return a
	}
	if _, ok := h.redact[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, RedactedValue)
	}

	v := a.Value.Resolve()
	if v.Kind() != slog.KindGroup {
		return slog.Attr{Key: a.Key, Value: v}
	}
	group := v.Group()
	scrubbed := make([]slog.Attr, len(group))
	for i, g := range group {
		scrubbed[i] = h.scrub(g)
	}
	return slog.Attr{Key: a.Key, Value: slog.GroupValue(scrubbed...)}
}
