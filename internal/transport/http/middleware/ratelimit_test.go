package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hrkpi/internal/domain/auth"
)

var noContent = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

// hit describes one request sent through a limiter.
type hit struct {
	method, path, addr, body string
	user                     *auth.UserContext
}

func (p hit) send(h http.Handler) *httptest.ResponseRecorder {
	req := httptest.NewRequest(p.method, p.path, bytes.NewBufferString(p.body))
	if p.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.RemoteAddr = p.addr
	if p.user != nil {
		req = req.WithContext(WithUser(req.Context(), *p.user))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitKeys(t *testing.T) {
	hr := &auth.UserContext{OrganizationID: "org-1", UserID: "user-1"}
	cases := []struct {
		name          string
		first, second hit
	}{
		{
			name:   "user key ignores changing ip",
			first:  hit{method: http.MethodPost, path: "/api/v1/rubrics/r1/review", addr: "198.51.100.11:2222", user: hr},
			second: hit{method: http.MethodPost, path: "/api/v1/rubrics/r1/review", addr: "198.51.100.12:3333", user: hr},
		},
		{
			name:   "anonymous falls back to ip",
			first:  hit{method: http.MethodPost, path: "/api/v1/auth/request-reset", addr: "203.0.113.10:4444", body: `{"email":"a@example.com"}`},
			second: hit{method: http.MethodPost, path: "/api/v1/auth/request-reset", addr: "203.0.113.10:5555", body: `{"email":"b@example.com"}`},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			limited := RateLimit(1, time.Minute)(noContent)
			if rec := tc.first.send(limited); rec.Code != http.StatusNoContent {
				t.Fatalf("expected first request to pass, got %d", rec.Code)
			}
			if rec := tc.second.send(limited); rec.Code != http.StatusTooManyRequests {
				t.Fatalf("expected second request to be throttled, got %d", rec.Code)
			}
		})
	}
}

func TestRateLimitWindowReset(t *testing.T) {
	limited := RateLimit(1, 40*time.Millisecond)(noContent)
	login := hit{method: http.MethodPost, path: "/api/v1/auth/login", addr: "192.0.2.20:1111", body: `{"email":"a@example.com"}`}

	if rec := login.send(limited); rec.Code != http.StatusNoContent {
		t.Fatalf("expected first request to pass, got %d", rec.Code)
	}
	rec := login.send(limited)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled, got %d", rec.Code)
	}
	for _, header := range []string{"Retry-After", "X-RateLimit-Reset", "X-RateLimit-Limit"} {
		if rec.Header().Get(header) == "" {
			t.Fatalf("expected %s header on throttled response", header)
		}
	}

	time.Sleep(50 * time.Millisecond)
	if rec := login.send(limited); rec.Code != http.StatusNoContent {
		t.Fatalf("expected request after window reset to pass, got %d", rec.Code)
	}
}

func TestSensitiveMutationRateLimitScope(t *testing.T) {
	limited := SensitiveMutationRateLimit(4, time.Minute)(noContent)

	read := hit{method: http.MethodGet, path: "/api/v1/dashboard/teams", addr: "198.51.100.40:8888"}
	for i := 0; i < 6; i++ {
		if rec := read.send(limited); rec.Code != http.StatusNoContent {
			t.Fatalf("expected read request %d to bypass sensitive limits, got %d", i+1, rec.Code)
		}
	}

	review := hit{
		method: http.MethodPost,
		path:   "/api/v1/rubrics/r1/review",
		addr:   "198.51.100.41:9999",
		user:   &auth.UserContext{OrganizationID: "org-1", UserID: "hr-1"},
	}
	want := []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}
	for i, code := range want {
		if rec := review.send(limited); rec.Code != code {
			t.Fatalf("review %d: expected %d, got %d", i+1, code, rec.Code)
		}
	}
}

func TestSensitiveRateScope(t *testing.T) {
	cases := []struct {
		method string
		path   string
		want   sensitiveScope
	}{
		{http.MethodPost, "/api/v1/auth/login", sensitiveScopeAuth},
		{http.MethodPost, "/api/v1/auth/refresh", sensitiveScopeAuth},
		{http.MethodPost, "/api/v1/periods", sensitiveScopeActor},
		{http.MethodGet, "/api/v1/periods", sensitiveScopeNone},
		{http.MethodPut, "/api/v1/assessments/a1/score", sensitiveScopeActor},
		{http.MethodPut, "/api/v1/assessments/a1/manager-score", sensitiveScopeNone},
		{http.MethodPost, "/api/v1/users/invite", sensitiveScopeActor},
		{http.MethodPost, "/api/v1/tasks", sensitiveScopeNone},
		{http.MethodPost, "/api/v1/auth/mfa/disable", sensitiveScopeActor},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if got := sensitiveRateScope(req); got != tc.want {
				t.Fatalf("expected scope %q, got %q", tc.want, got)
			}
		})
	}
}

func TestSensitiveAuthLimitKeysOnEmail(t *testing.T) {
	limited := SensitiveMutationRateLimit(8, time.Minute)(noContent)
	login := func(ip, email string) int {
		p := hit{method: http.MethodPost, path: "/api/v1/auth/login", addr: ip + ":1000", body: `{"email":"` + email + `"}`}
		return p.send(limited).Code
	}

	if code := login("192.0.2.50", "victim@example.com"); code != http.StatusNoContent {
		t.Fatalf("expected first login to pass, got %d", code)
	}
	if code := login("192.0.2.51", "Victim@example.com"); code != http.StatusNoContent {
		t.Fatalf("expected second login to pass, got %d", code)
	}
	if code := login("192.0.2.52", "victim@example.com"); code != http.StatusTooManyRequests {
		t.Fatalf("expected third login for the same email to be throttled, got %d", code)
	}
}

func TestFixedWindowSweepsExpiredKeys(t *testing.T) {
	fw := newFixedWindow(2, time.Second)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		fw.take("ip:198.51.100."+string(rune('0'+i)), start)
	}
	if v := fw.take("ip:198.51.100.0", start); !v.allowed || v.remaining != 0 {
		t.Fatalf("expected second hit to pass with no budget left, got %+v", v)
	}
	if v := fw.take("ip:198.51.100.0", start); v.allowed {
		t.Fatalf("expected third hit to be refused")
	}

	fw.take("ip:203.0.113.1", start.Add(2*time.Second))
	if len(fw.counts) != 1 {
		t.Fatalf("expected expired counters to be swept, %d left", len(fw.counts))
	}
}

func TestMatchRoute(t *testing.T) {
	cases := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/rubrics/*/review", "/rubrics/r1/review", true},
		{"/rubrics/*/review", "/rubrics//review", false},
		{"/rubrics/*/review", "/rubrics/r1/review/extra", false},
		{"/periods", "/periods/", true},
		{"/periods", "/periods/p1", false},
	}
	for _, tc := range cases {
		if got := matchRoute(tc.pattern, tc.path); got != tc.want {
			t.Fatalf("matchRoute(%q, %q) = %v, want %v", tc.pattern, tc.path, got, tc.want)
		}
	}
}
