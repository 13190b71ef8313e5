package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"spendrag/internal/core"
)

func TestParseDays(t *testing.T) {
	tests := []struct {
		name    string
		query   url.Values
		want    int
		wantErr bool
	}{
		{name: "absent uses default", query: url.Values{}, want: 7},
		{name: "blank uses default", query: url.Values{"days": {"  "}}, want: 7},
		{name: "explicit", query: url.Values{"days": {"30"}}, want: 30},
		{name: "zero", query: url.Values{"days": {"0"}}, want: 0},
		{name: "negative", query: url.Values{"days": {"-3"}}, wantErr: true},
		{name: "not a number", query: url.Values{"days": {"week"}}, wantErr: true},
		{name: "too large", query: url.Values{"days": {"99999"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDays(tt.query, "days", 7)
			if tt.wantErr {
				if !errors.Is(err, errBadParameter) {
					t.Errorf("ParseDays() error = %v, want errBadParameter", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDays() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseDays() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseAge(t *testing.T) {
	tests := []struct {
		name       string
		value      string
		want       time.Duration
		wantScoped bool
		wantErr    bool
	}{
		{name: "absent", value: "", wantScoped: false},
		{name: "hours", value: "24h", want: 24 * time.Hour, wantScoped: true},
		{name: "minutes", value: "90m", want: 90 * time.Minute, wantScoped: true},
		{name: "zero", value: "0s", wantErr: true},
		{name: "garbage", value: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := url.Values{}
			if tt.value != "" {
				q.Set("older_than", tt.value)
			}
			got, scoped, err := ParseAge(q, "older_than")
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAge() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want || scoped != tt.wantScoped {
				t.Errorf("ParseAge() = (%v, %v), want (%v, %v)", got, scoped, tt.want, tt.wantScoped)
			}
		})
	}
}

func TestParseMonthParam(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "2025-03", want: "2025-03"},
		{in: " 2024-12 ", want: "2024-12"},
		{in: "2025-3", wantErr: true},
		{in: "2025-13", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMonthParam(tt.in)
			if tt.wantErr {
				if !errors.Is(err, core.ErrInvalidMonth) {
					t.Errorf("ParseMonthParam(%q) error = %v, want ErrInvalidMonth", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseMonthParam(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestRequestBodyParser(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		wantJSON    bool
		want        string
		wantErr     bool
	}{
		{
			name:        "json",
			body:        `{"question":"  marketten ne aldım?  "}`,
			contentType: "application/json",
			wantJSON:    true,
			want:        "marketten ne aldım?",
		},
		{
			name:        "json number coerced",
			body:        `{"question":42}`,
			contentType: "application/json",
			wantJSON:    true,
			want:        "42",
		},
		{
			name:        "form",
			body:        "question=su+fiyat%C4%B1",
			contentType: "application/x-www-form-urlencoded",
			want:        "su fiyatı",
		},
		{
			name:        "control characters dropped",
			body:        "question=a%00b%07c",
			contentType: "application/x-www-form-urlencoded",
			want:        "abc",
		},
		{
			name:        "empty body",
			body:        "",
			contentType: "application/json",
			want:        "",
		},
		{
			name:        "invalid json",
			body:        `{"question": }`,
			contentType: "application/json",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)

			p := NewRequestBodyParser(req)
			err := p.Parse()
			if tt.wantErr {
				if !errors.Is(err, errBadParameter) {
					t.Fatalf("Parse() error = %v, want errBadParameter", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() unexpected error: %v", err)
			}
			if p.IsJSON() != tt.wantJSON {
				t.Errorf("IsJSON() = %v, want %v", p.IsJSON(), tt.wantJSON)
			}
			if got := p.Get("question"); got != tt.want {
				t.Errorf("Get(question) = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequestBodyParser_TooLarge(t *testing.T) {
	body := `{"question":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(body))

	err := NewRequestBodyParser(req).Parse()
	if !errors.Is(err, errBadParameter) {
		t.Fatalf("Parse() error = %v, want errBadParameter", err)
	}
}
