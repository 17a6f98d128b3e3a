package http

import (
	"context"
	"log/slog"

	"github.com/example/attendance-tracker/internal/application"
	"github.com/example/attendance-tracker/internal/logging"
)

type contextKey string

const (
	sessionContextKey   contextKey = "session"
	requestIDContextKey contextKey = "request_id"
)

// ContextWithSession returns a derived context containing the caller's session.
func ContextWithSession(ctx context.Context, session application.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// SessionFromContext extracts the caller's session from context if available.
func SessionFromContext(ctx context.Context) (application.Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(application.Session)
	return session, ok
}

// ContextWithRequestID stores the identifier assigned by RequestLogger.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

// RequestIDFromContext returns the identifier assigned by RequestLogger.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDContextKey).(string)
	return id, ok
}

// ContextWithLogger attaches a request-scoped logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext returns the request-scoped logger, if any.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}
