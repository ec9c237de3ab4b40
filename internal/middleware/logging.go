// Package middleware contains HTTP middleware shared by every route.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/coderover/internal/auth"
)

// statusRecorder remembers the status code and body size written through it.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Logger logs one line per request. It must run after chi's RequestID so the
// id is available. The subject is logged when the credential filter
// authenticated the request; the credential itself never is.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			var subject string
			next.ServeHTTP(rec, r.WithContext(withSubjectSink(r.Context(), &subject)))

			attrs := []any{
				slog.String("requestID", chimiddleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", rec.written),
			}
			if subject != "" {
				attrs = append(attrs, slog.String("subject", subject))
			}

			level := slog.LevelInfo
			if rec.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(r.Context(), level, "request completed", attrs...)
		})
	}
}

// CaptureSubject copies the authenticated subject into the Logger's sink.
// Mount it after auth.OptionalAuth.
func CaptureSubject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := auth.PrincipalFromContext(r.Context()); ok {
			if sink := subjectSink(r.Context()); sink != nil {
				*sink = p.Subject
			}
		}
		next.ServeHTTP(w, r)
	})
}

type sinkKey struct{}

func withSubjectSink(ctx context.Context, sink *string) context.Context {
	return context.WithValue(ctx, sinkKey{}, sink)
}

func subjectSink(ctx context.Context) *string {
	sink, _ := ctx.Value(sinkKey{}).(*string)
	return sink
}
