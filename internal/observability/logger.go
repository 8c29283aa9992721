package observability

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
)

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeySkillRequestID
)

var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
}

// Logger returns the process logger, JSON to stdout unless replaced.
func Logger() *slog.Logger {
	return logger.Load()
}

// SetLogger replaces the process logger and returns the previous one.
func SetLogger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return logger.Load()
	}
	return logger.Swap(l)
}

// WithRequestID stores the HTTP request id (chi middleware.RequestID) in ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// RequestIDFromContext returns the HTTP request id, if any.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// WithSkillRequestID stores the envelope's requestId in ctx.
func WithSkillRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeySkillRequestID, requestID)
}

// LoggerFromContext returns the process logger annotated with whichever
// request ids ctx carries.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	l := Logger()
	if id := RequestIDFromContext(ctx); id != "" {
		l = l.With("request_id", id)
	}
	if id, _ := ctx.Value(ctxKeySkillRequestID).(string); id != "" {
		l = l.With("skill_request_id", id)
	}
	return l
}
