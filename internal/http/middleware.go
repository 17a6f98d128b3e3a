package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/attendance-tracker/internal/application"
)

const (
	// UserIDHeader identifies the caller. It stands in for the external
	// authentication collaborator.
	UserIDHeader = "X-User-ID"
	// RequestIDHeader echoes the identifier assigned to each request.
	RequestIDHeader = "X-Request-ID"

	tracerName = "github.com/example/attendance-tracker/internal/http"
)

// SessionResolver turns a caller id into a session.
type SessionResolver interface {
	ResolveSession(ctx context.Context, userID string) (application.Session, error)
}

// AttachSession resolves the X-User-ID header, when present, and stores the
// session in the request context. Requests without the header pass through
// anonymously; unknown callers are rejected.
func AttachSession(resolver SessionResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, err := resolver.ResolveSession(r.Context(), userID)
			if err != nil {
				var vErr *application.ValidationError
				switch {
				case errors.Is(err, application.ErrNotFound), errors.As(err, &vErr):
					responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{Message: "ユーザーが見つかりません。登録済みのユーザー ID を指定してください。"})
				case errors.Is(err, application.ErrStoreUnavailable):
					responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, errorResponse{Message: "ユーザー確認中にデータストアへ接続できませんでした。"})
				default:
					responder.writeJSON(r.Context(), w, http.StatusInternalServerError, errorResponse{Message: "ユーザー確認中にエラーが発生しました。"})
				}
				responder.loggerFor(r.Context()).WarnContext(r.Context(), "session resolution failed",
					"user_id", userID, "error", err, "error_kind", application.ErrorKind(err))
				return
			}

			ctx := ContextWithSession(r.Context(), session)
			if logger := LoggerFromContext(ctx); logger != nil {
				ctx = ContextWithLogger(ctx, logger.With("principal_id", session.UserID))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession rejects requests that carry no resolved session.
func RequireSession(logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := SessionFromContext(r.Context()); !ok {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingUserID)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin rejects callers whose session is not an administrator's.
func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := SessionFromContext(r.Context())
			if !ok {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingUserID)
				return
			}
			if !session.IsAdmin() {
				responder.writeError(r.Context(), w, http.StatusForbidden, errAdminRequired)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	if s.status == 0 {
		s.status = status
	}
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

// RequestLogger assigns a request id, attaches a request-scoped logger and
// records a server span for every request.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	tracer := otel.Tracer(tracerName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := uuid.NewString()
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", r.Method),
					attribute.String("url.path", r.URL.Path),
					attribute.String("request.id", id),
				),
			)
			defer span.End()

			ctx = ContextWithRequestID(ctx, id)
			ctx = ContextWithLogger(ctx, logger)
			w.Header().Set(RequestIDHeader, id)

			recorder := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			logger.InfoContext(ctx, "request started")
			next.ServeHTTP(recorder, r.WithContext(ctx))

			status := recorder.status
			if status == 0 {
				status = http.StatusOK
			}
			span.SetAttributes(attribute.Int("http.response.status_code", status))
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}
			logger.InfoContext(ctx, "request completed", "status", status, "duration", time.Since(start))
		})
	}
}
