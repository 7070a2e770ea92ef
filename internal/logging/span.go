package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span times a named unit of work. Nested spans share the trace of their parent;
// a root span started inside a request reuses the request id as its trace id.
type Span struct {
	ID      string
	TraceID string
	name    string
	logger  *slog.Logger
	start   time.Time
	err     error
}

// StartSpan derives a child span and returns a context whose logger carries the
// span's identifiers.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	span := &Span{
		ID:    uuid.NewString(),
		name:  name,
		start: time.Now(),
	}

	logger := FromContext(ctx)
	if parent := spanFromContext(ctx); parent != nil {
		span.TraceID = parent.TraceID
		logger = logger.With(slog.String("parentSpanId", parent.ID))
	} else {
		span.TraceID = RequestIDFromContext(ctx)
		if span.TraceID == "" {
			span.TraceID = uuid.NewString()
		}
		logger = logger.With(slog.String("traceId", span.TraceID))
	}
	span.logger = logger.With(
		slog.String("spanId", span.ID),
		slog.String("span", name),
	)

	ctx = context.WithValue(ctx, spanKey{}, span)
	return WithLogger(ctx, span.logger), span
}

// Fail marks the span as failed; End then logs at error level.
func (s *Span) Fail(err error) {
	if s != nil {
		s.err = err
	}
}

// End logs the span's duration.
func (s *Span) End() {
	if s == nil {
		return
	}
	elapsed := slog.Duration("duration", time.Since(s.start))
	if s.err != nil {
		s.logger.Error("span failed", elapsed, slog.Any("error", s.err))
		return
	}
	s.logger.Debug("span completed", elapsed)
}
