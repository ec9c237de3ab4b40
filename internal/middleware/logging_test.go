package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"

	"github.com/sakif/coderover/internal/auth"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	inject := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := &auth.Principal{Subject: "42"}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})

	h := chimiddleware.RequestID(Logger(logger)(inject(CaptureSubject(final))))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/user", nil))

	line := buf.String()
	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Contains(t, line, "status=418")
	assert.Contains(t, line, "path=/api/v1/user")
	assert.Contains(t, line, "bytes=15")
	assert.Contains(t, line, "subject=42")
	assert.Contains(t, line, "requestID=")
	assert.False(t, strings.Contains(line, "requestID= "), "request id should be set")
}

func TestLogger_AnonymousAndServerError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	rr := httptest.NewRecorder()
	Logger(logger)(CaptureSubject(final)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	line := buf.String()
	assert.Contains(t, line, "level=ERROR")
	assert.NotContains(t, line, "subject=")
}
