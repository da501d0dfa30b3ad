// Package middleware provides HTTP middleware that reports how many
// database queries each request issued. A request whose query count scales
// with its payload size is the request-level symptom of the per-statement
// N+1 warnings the engine emits.
package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/shaffooo/nplusone/orm/conn"
)

// Counter reports the number of queries performed so far
type Counter interface {
	TotalQueries() int64
}

// QueryCountConfig holds configuration for the query count middleware
type QueryCountConfig struct {
	// Counter is snapshotted before and after each request
	Counter Counter
	// Logger receives the per-request entries
	Logger *zap.Logger
	// Threshold escalates a request to a warning when it issues more than
	// this many queries; 0 disables the escalation
	Threshold int64
}

// DefaultQueryCountConfig returns the default middleware configuration
func DefaultQueryCountConfig() QueryCountConfig {
	return QueryCountConfig{
		Counter: conn.Default,
		Logger:  zap.L(),
	}
}

// QueryCount creates a query count middleware with default configuration
func QueryCount() func(http.Handler) http.Handler {
	return QueryCountWithConfig(DefaultQueryCountConfig())
}

// QueryCountWithConfig creates a query count middleware with custom configuration
func QueryCountWithConfig(config QueryCountConfig) func(http.Handler) http.Handler {
	if config.Counter == nil {
		config.Counter = conn.Default
	}
	if config.Logger == nil {
		config.Logger = zap.L()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			pre := config.Counter.TotalQueries()

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			queries := config.Counter.TotalQueries() - pre
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rw.statusCode),
				zap.Int64("queries", queries),
				zap.Duration("duration", time.Since(start)),
			}

			if config.Threshold > 0 && queries > config.Threshold {
				config.Logger.Warn("request exceeded query threshold",
					append(fields, zap.Int64("threshold", config.Threshold))...)
				return
			}
			config.Logger.Info("request completed", fields...)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

// WriteHeader captures the status code
func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.wroteHeader {
		rw.statusCode = statusCode
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}
