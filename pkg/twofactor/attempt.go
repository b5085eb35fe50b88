package twofactor

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/twofactor/pkg/logger"
)

type sourceKey struct{}

// WithSource attaches request metadata recorded with every attempt made under ctx.
func WithSource(ctx context.Context, src Source) context.Context {
	return context.WithValue(ctx, sourceKey{}, src)
}

// SourceFromContext returns the metadata attached by WithSource.
func SourceFromContext(ctx context.Context) (Source, bool) {
	src, ok := ctx.Value(sourceKey{}).(Source)
	return src, ok
}

// sourceAttr adds the request source to every log record written under ctx.
func sourceAttr(ctx context.Context) (slog.Attr, bool) {
	src, ok := SourceFromContext(ctx)
	if !ok || (src.IP == "" && src.UserAgent == "") {
		return slog.Attr{}, false
	}
	return logger.Group("source",
		slog.String("ip", src.IP),
		slog.String("user_agent", src.UserAgent),
	), true
}

// record appends an attempt to the log. A failing log write is reported but
// never changes the verification decision.
func (s *Service) record(ctx context.Context, userID string, res Result, cause error) {
	attempt := Attempt{
		ID:        uuid.New(),
		UserID:    userID,
		Success:   res.Valid,
		Method:    res.Method,
		Outcome:   res.Outcome,
		CreatedAt: s.now().UTC(),
	}
	if res.Outcome.Operational() && cause != nil {
		attempt.Error = cause.Error()
	}
	if src, ok := SourceFromContext(ctx); ok {
		attempt.Source = src
	}

	if err := s.attempts.AppendAttempt(ctx, attempt); err != nil {
		s.logger.ErrorContext(ctx, "failed to record verification attempt",
			logger.UserID(userID),
			logger.Outcome(string(res.Outcome)),
			logger.Error(err),
		)
	}
}
