package shared

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type rubricPayload struct {
	TeamID        string  `json:"teamId" validate:"required"`
	Category      string  `json:"category" validate:"required,max=100"`
	Weight        float64 `json:"weight" validate:"gt=0"`
	ScoringMethod string  `json:"scoringMethod" validate:"required,oneof=manager self"`
}

func TestDecodeJSONValidates(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		ok     bool
		status int
		fields []string
	}{
		{"valid", `{"teamId":"t1","category":"Delivery","weight":50,"scoringMethod":"manager"}`, true, 0, nil},
		{"bad json", `{"teamId":`, false, http.StatusBadRequest, nil},
		{"empty body", ``, false, http.StatusBadRequest, nil},
		{"invalid fields", `{"teamId":"t1","category":"","weight":0,"scoringMethod":"peer"}`, false, http.StatusBadRequest, []string{"category", "weight", "scoringMethod"}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/rubrics", bytes.NewBufferString(tc.body))
			rec := httptest.NewRecorder()
			var payload rubricPayload
			ok := DecodeJSON(rec, req, &payload, "req-1")
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v (%s)", tc.ok, ok, rec.Body.String())
			}
			if tc.ok {
				return
			}
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			if tc.fields == nil {
				return
			}
			var env struct {
				Error struct {
					Code    string `json:"code"`
					Details struct {
						Fields []ValidationIssue `json:"fields"`
					} `json:"details"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if env.Error.Code != "validation_error" {
				t.Fatalf("expected validation_error, got %q", env.Error.Code)
			}
			got := map[string]bool{}
			for _, issue := range env.Error.Details.Fields {
				got[issue.Field] = true
			}
			for _, field := range tc.fields {
				if !got[field] {
					t.Fatalf("expected issue for %s, got %+v", field, env.Error.Details.Fields)
				}
			}
		})
	}
}

func TestDecodeJSONTooLarge(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"teamId":"`+string(bytes.Repeat([]byte("x"), 64))+`"}`))
	req.Body = http.MaxBytesReader(rec, req.Body, 16)
	var payload rubricPayload
	if DecodeJSON(rec, req, &payload, "") {
		t.Fatal("expected decode to fail")
	}
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestIssuesDateRange(t *testing.T) {
	tests := []struct {
		name   string
		start  string
		due    string
		fields []string
	}{
		{"valid", "2026-01-01", "2026-03-31", nil},
		{"rfc3339", "2026-01-01T08:00:00Z", "2026-01-02T08:00:00Z", nil},
		{"due before start", "2026-04-01", "2026-03-01", []string{"dueDate"}},
		{"same day", "2026-04-01", "2026-04-01", []string{"dueDate"}},
		{"garbage", "yesterday", "", []string{"startDate", "dueDate"}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			var issues Issues
			issues.DateRange("startDate", tc.start, "dueDate", tc.due)
			if len(issues) != len(tc.fields) {
				t.Fatalf("expected %d issues, got %+v", len(tc.fields), issues)
			}
			for i, field := range tc.fields {
				if issues[i].Field != field {
					t.Fatalf("expected issue on %s, got %+v", field, issues)
				}
			}
		})
	}
}

func TestIssuesRejectSortsFields(t *testing.T) {
	var issues Issues
	if issues.Reject(httptest.NewRecorder(), "req") {
		t.Fatal("empty issues must not reject")
	}
	issues.Add("title", "is required")
	issues.Add("dueDate", "must be after startDate")
	rec := httptest.NewRecorder()
	if !issues.Reject(rec, "req") {
		t.Fatal("expected rejection")
	}
	body := rec.Body.String()
	if rec.Code != http.StatusBadRequest || strings.Index(body, "dueDate") > strings.Index(body, "title") {
		t.Fatalf("unexpected response %d %s", rec.Code, body)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	if got := ClientIP(req); got != "192.0.2.1" {
		t.Fatalf("expected remote host, got %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := ClientIP(req); got != "203.0.113.7" {
		t.Fatalf("expected forwarded host, got %q", got)
	}
}

func TestPageFrom(t *testing.T) {
	tests := []struct {
		query  string
		limit  int
		offset int
	}{
		{"", DefaultPageSize, 0},
		{"?limit=900&offset=20", MaxPageSize, 20},
		{"?limit=-1&offset=x", DefaultPageSize, 0},
		{"?limit=25&offset=50", 25, 50},
	}
	for _, tc := range tests {
		page := PageFrom(httptest.NewRequest(http.MethodGet, "/"+tc.query, nil))
		if page.Limit != tc.limit || page.Offset != tc.offset {
			t.Fatalf("%q: unexpected page %+v", tc.query, page)
		}
	}
}
