package log

import (
	"context"
	"log/slog"
	"net/http"
)

type ctxKey struct{}

// IntoContext returns a copy of ctx carrying logger.
func IntoContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the request logger, or one wrapping slog.Default
// tagged "unknown" when none was attached.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return logger
	}
	return newTagged(slog.Default(), "unknown")
}

// enrich derives a new request logger from the one already in the context.
func enrich(derive func(*Logger, *http.Request) *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := derive(FromContext(r.Context()), r)
			next.ServeHTTP(w, r.WithContext(IntoContext(r.Context(), logger)))
		})
	}
}

// Middleware attaches logger to every request context.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return enrich(func(*Logger, *http.Request) *Logger { return logger })
}

// ComponentMiddleware retags the request logger with component.
func ComponentMiddleware(component string) func(http.Handler) http.Handler {
	return enrich(func(l *Logger, _ *http.Request) *Logger { return l.WithComponent(component) })
}

// RequestIDMiddleware adds the request id returned by extract to the request logger.
func RequestIDMiddleware(extract func(*http.Request) string) func(http.Handler) http.Handler {
	return enrich(func(l *Logger, r *http.Request) *Logger { return l.With(FieldRequestID, extract(r)) })
}

// StructuredLogger writes the fixed-shape records: access logs, answers and
// failures.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// levelForStatus logs client errors as warnings and server errors as errors.
func levelForStatus(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// LogHTTPStart is debug-only; LogHTTPEnd carries the full access record.
func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), r.Header.Get("Referer")).
		WithClientIP(clientIP)
	sl.logger.DebugContext(ctx, "HTTP request started", fields.ToSlice()...)
}

func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), "").
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP)
	sl.logger.Log(ctx, levelForStatus(statusCode), "HTTP request completed", fields.ToSlice()...)
}

// AnswerEvent describes one answered question. The question itself is
// never logged, only its cache hash.
type AnswerEvent struct {
	QuestionHash string
	Strategy     string
	Outcome      string
	Candidates   int
	Cached       bool
}

func (sl *StructuredLogger) LogAnswer(ctx context.Context, ev AnswerEvent) {
	fields := NewFields().
		WithRouting(ev.Strategy, ev.Outcome, ev.Candidates).
		WithOperation(OpAsk).
		ToSlice()
	fields = append(fields, FieldQuestionHash, ev.QuestionHash, FieldCacheHit, ev.Cached)
	sl.logger.InfoContext(ctx, "Question answered", fields...)
}

// LogError logs err under component and operation with any extra fields.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	sl.logger.WithComponent(component).ErrorContext(ctx, msg, fields.WithError(err).WithOperation(operation).ToSlice()...)
}
