package log

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMiddlewareChain_EnrichesContextLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Handler: slog.NewTextHandler(&buf, nil), Component: ComponentApp})

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("handled")
		w.WriteHeader(http.StatusNoContent)
	})
	h := Middleware(base)(
		RequestIDMiddleware(func(*http.Request) string { return "req-1" })(
			ComponentMiddleware(ComponentHTTP)(final)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ask", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	out := buf.String()
	for _, want := range []string{"component=http", "request_id=req-1", "msg=handled"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}

func TestFromContext_Default(t *testing.T) {
	logger := FromContext(context.Background())
	if logger == nil || logger.Component() != "unknown" {
		t.Errorf("expected fallback logger, got %+v", logger)
	}
}
