package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Handler: slog.NewTextHandler(&buf, nil), Component: "app"})

	logger.WithComponent(ComponentRouter).Info("routed", FieldStrategy, "term_lookup")

	out := buf.String()
	if !strings.Contains(out, "component=router") {
		t.Errorf("expected router component in %q", out)
	}
	if !strings.Contains(out, "strategy=term_lookup") {
		t.Errorf("expected strategy field in %q", out)
	}
}

func TestLogFields_ToSlice(t *testing.T) {
	fields := NewFields().WithRouting("aggregation", "ok", 3).WithOperation(OpAsk)

	slice := fields.ToSlice()
	if len(slice) != 8 {
		t.Fatalf("expected 8 entries, got %d", len(slice))
	}
	got := map[any]any{}
	for i := 0; i < len(slice); i += 2 {
		got[slice[i]] = slice[i+1]
	}
	if got[FieldCandidates] != 3 || got[FieldOperation] != OpAsk {
		t.Errorf("unexpected fields: %v", got)
	}
}

func TestLogger_WithComponentReplacesTag(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Handler: slog.NewTextHandler(&buf, nil), Component: ComponentApp}).
		With(FieldRequestID, "r1")

	logger.WithComponent(ComponentHTTP).Info("once")

	out := buf.String()
	if n := strings.Count(out, "component="); n != 1 {
		t.Errorf("expected one component attribute, got %d in %q", n, out)
	}
	if !strings.Contains(out, "request_id=r1") {
		t.Errorf("expected attributes from With to survive retagging: %q", out)
	}
}

func TestNewHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: "JSON", Output: &buf, Level: slog.LevelDebug, Component: ComponentWorker})

	logger.Debug("tick", FieldFindings, 2)

	out := buf.String()
	if !strings.HasPrefix(out, "{") || !strings.Contains(out, `"component":"worker"`) || !strings.Contains(out, `"findings":2`) {
		t.Errorf("unexpected JSON record %q", out)
	}
}
