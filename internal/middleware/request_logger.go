package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/streamr/backend/internal/logging"
	"github.com/streamr/backend/internal/metrics"
)

// RequestIDHeader carries the request id back to the client.
const RequestIDHeader = "X-Request-ID"

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	if rw.status == 0 {
		rw.status = status
	}
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Status() int {
	if rw.status == 0 {
		return http.StatusOK
	}
	return rw.status
}

// RequestLogger assigns each request an id and a scoped logger, recovers
// panics, and records the outcome in the log and the HTTP metrics.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := uuid.NewString()

			reqLogger := base.With(
				slog.String("requestId", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remoteAddr", r.RemoteAddr),
			)

			ctx := logging.WithLogger(r.Context(), reqLogger)
			ctx = logging.WithRequestID(ctx, requestID)

			w.Header().Set(RequestIDHeader, requestID)
			wrapped := &responseWriter{ResponseWriter: w}
			// ServeMux records the matched pattern on the request it receives.
			req := r.WithContext(ctx)

			defer func() {
				if rec := recover(); rec != nil {
					reqLogger.Error("panic recovered", "panic", rec)
					if wrapped.status == 0 {
						writeError(wrapped, http.StatusInternalServerError, "internal server error")
					}
				}

				elapsed := time.Since(start)
				metrics.RecordHTTPRequest(req.Pattern, r.Method, wrapped.Status(), elapsed)
				reqLogger.Info("request completed",
					slog.String("route", req.Pattern),
					slog.Int("status", wrapped.Status()),
					slog.Duration("duration", elapsed),
				)
			}()

			next.ServeHTTP(wrapped, req)
		})
	}
}
