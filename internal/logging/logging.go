// Package logging sets up the process logger and HTTP request logging.
package logging

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-logr/logr"
	"go.uber.org/zap/zapcore"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Options controls logger construction.
type Options struct {
	// Level is a zap level name: debug, info, warn or error.
	Level string
	// Development switches to console encoding with stack traces on warnings.
	Development bool
}

// New builds a zap-backed logr.Logger and installs it as the
// controller-runtime logger so client internals log through it too.
func New(opts Options) (logr.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return logr.Discard(), fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	log := zap.New(
		zap.UseDevMode(opts.Development),
		zap.Level(level),
	)
	ctrl.SetLogger(log)
	return log, nil
}

// RequestLogger returns middleware that attaches a request-scoped logger to
// the context and logs one line per completed request.
func RequestLogger(base logr.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			log := base.WithValues("method", r.Method, "path", r.URL.Path)
			if id := middleware.GetReqID(r.Context()); id != "" {
				log = log.WithValues("requestID", id)
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(logr.NewContext(r.Context(), log)))

			log.Info("request completed",
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).String(),
			)
		})
	}
}

// FromRequest returns the request-scoped logger, or fallback when the
// request did not pass through RequestLogger.
func FromRequest(r *http.Request, fallback logr.Logger) logr.Logger {
	if log, err := logr.FromContext(r.Context()); err == nil {
		return log
	}
	return fallback
}
