package middleware

import (
	"net/http"
	"time"

	"cellar-api/pkg/logger"
)

// Logging logs one line per request. 5xx responses log at error level, 4xx at warn.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		ctx := r.Context()
		fields := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr,
			"bytes", wrapped.written,
		}
		switch {
		case wrapped.statusCode >= http.StatusInternalServerError:
			logger.Error(ctx, "request failed", fields...)
		case wrapped.statusCode >= http.StatusBadRequest:
			logger.Warn(ctx, "request rejected", fields...)
		default:
			logger.Info(ctx, "request handled", fields...)
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	written     int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}
