package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "carrental/pkg/errors"
)

type payload struct {
	Name string    `json:"name"`
	When time.Time `json:"when"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		max     int64
		wantErr bool
	}{
		{name: "valid", body: `{"name":"x","when":"2026-01-02T10:00:00Z"}`},
		{name: "empty", body: ``, wantErr: true},
		{name: "syntax", body: `{"name":`, wantErr: true},
		{name: "unknown field", body: `{"nme":"x"}`, wantErr: true},
		{name: "wrong type", body: `{"name":5}`, wantErr: true},
		{name: "bad date", body: `{"when":"tomorrow"}`, wantErr: true},
		{name: "trailing object", body: `{"name":"x"}{"name":"y"}`, wantErr: true},
		{name: "too large", body: `{"name":"` + strings.Repeat("x", 100) + `"}`, max: 32, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst payload
			err := DecodeJSON(httptest.NewRecorder(), r, tt.max, &dst)

			if tt.wantErr {
				if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
					t.Errorf("expected INVALID_INPUT, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if dst.Name != "x" {
				t.Errorf("Name = %q", dst.Name)
			}
		})
	}
}

func TestQueryHelpers(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?brand=All&type=SUV&min=1500&bad=abc&at=2026-01-02T10:00:00%2B05:30", nil)

	if got := QueryOptional(r, "brand", "All"); got != nil {
		t.Errorf("sentinel must map to unset, got %q", *got)
	}
	if got := QueryOptional(r, "type", "All"); got == nil || *got != "SUV" {
		t.Errorf("type = %v", got)
	}
	if got := QueryOptional(r, "missing"); got != nil {
		t.Errorf("missing = %v", got)
	}

	if v, err := QueryFloat(r, "min"); err != nil || v == nil || *v != 1500 {
		t.Errorf("QueryFloat(min) = %v, %v", v, err)
	}
	if v, err := QueryFloat(r, "missing"); err != nil || v != nil {
		t.Errorf("QueryFloat(missing) = %v, %v", v, err)
	}
	if _, err := QueryFloat(r, "bad"); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("QueryFloat(bad) error = %v", err)
	}

	at, err := QueryTime(r, "at")
	if err != nil {
		t.Fatalf("QueryTime(at) error = %v", err)
	}
	if !at.Equal(time.Date(2026, 1, 2, 4, 30, 0, 0, time.UTC)) {
		t.Errorf("QueryTime(at) = %v", at)
	}
	if _, err := QueryTime(r, "missing"); err == nil {
		t.Error("missing time must be an error")
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{name: "not found", err: apperrors.NotFoundWithID("Car", "9"), wantStatus: http.StatusNotFound, wantBody: `"code":"NOT_FOUND"`},
		{name: "validation", err: apperrors.Validation("bad", nil), wantStatus: http.StatusUnprocessableEntity, wantBody: `"VALIDATION_ERROR"`},
		{name: "persistence", err: apperrors.Persistence("write failed", nil), wantStatus: http.StatusServiceUnavailable, wantBody: `"PERSISTENCE_ERROR"`},
		{name: "plain error hides text", err: errTest("secret dsn"), wantStatus: http.StatusInternalServerError, wantBody: `"Internal server error"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			if err := WriteError(rec, tt.err); err != nil {
				t.Fatalf("WriteError() error = %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body %s does not contain %s", rec.Body.String(), tt.wantBody)
			}
			if strings.Contains(rec.Body.String(), "secret") {
				t.Error("internal error text leaked")
			}
		})
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
