package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"hrkpi/internal/transport/http/api"
	"hrkpi/internal/transport/http/shared"
)

// peekLimit caps how much of a JSON body is buffered to find the email of an
// auth request.
const peekLimit = 64 << 10

// fixedWindow counts hits per key in fixed windows. Expired counters are
// swept at most once per window so idle keys do not pile up.
type fixedWindow struct {
	limit  int
	window time.Duration

	mu        sync.Mutex
	counts    map[string]*windowCount
	nextSweep time.Time
}

type windowCount struct {
	hits    int
	resetAt time.Time
}

type verdict struct {
	allowed   bool
	remaining int
	resetIn   time.Duration
}

func newFixedWindow(limit int, window time.Duration) *fixedWindow {
	return &fixedWindow{limit: limit, window: window, counts: map[string]*windowCount{}}
}

func (fw *fixedWindow) take(key string, now time.Time) verdict {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if now.After(fw.nextSweep) {
		for k, c := range fw.counts {
			if now.After(c.resetAt) {
				delete(fw.counts, k)
			}
		}
		fw.nextSweep = now.Add(fw.window)
	}

	c, ok := fw.counts[key]
	if !ok || now.After(c.resetAt) {
		c = &windowCount{resetAt: now.Add(fw.window)}
		fw.counts[key] = c
	}
	c.hits++
	return verdict{
		allowed:   c.hits <= fw.limit,
		remaining: max(fw.limit-c.hits, 0),
		resetIn:   c.resetAt.Sub(now),
	}
}

type RateLimitKeyFunc func(r *http.Request) string

type RateLimitOption func(*keyedLimiter)

// keyedLimiter applies one fixed window to the key a request resolves to.
type keyedLimiter struct {
	counter *fixedWindow
	keyFn   RateLimitKeyFunc
}

func WithKeyFunc(fn RateLimitKeyFunc) RateLimitOption {
	return func(l *keyedLimiter) {
		if fn != nil {
			l.keyFn = fn
		}
	}
}

func newKeyedLimiter(limit int, window time.Duration, keyFn RateLimitKeyFunc) *keyedLimiter {
	return &keyedLimiter{counter: newFixedWindow(limit, window), keyFn: keyFn}
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// admit counts the request and, when the key is over its limit, writes the
// 429 response itself.
func (l *keyedLimiter) admit(w http.ResponseWriter, r *http.Request) bool {
	if l.counter.limit <= 0 {
		return true
	}
	key := l.keyFn(r)
	if key == "" {
		key = "ip:" + shared.ClientIP(r)
	}
	v := l.counter.take(key, time.Now())

	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(l.counter.limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(v.remaining))
	h.Set("X-RateLimit-Reset", strconv.Itoa(ceilSeconds(v.resetIn)))
	if v.allowed {
		return true
	}

	h.Set("Retry-After", strconv.Itoa(max(ceilSeconds(v.resetIn), 1)))
	slog.Warn("rate limit exceeded", "key", key, "method", r.Method, "path", r.URL.Path, "limit", l.counter.limit)
	api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
	return false
}

// RateLimit throttles every request, keyed by the authenticated user or, for
// anonymous callers, by client IP.
func RateLimit(limit int, window time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	l := newKeyedLimiter(limit, window, actorOrIPKey)
	for _, opt := range opts {
		opt(l)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.admit(w, r) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// SensitiveMutationRateLimit adds tighter limits on top of RateLimit for
// credential endpoints (a quarter of the base, per IP and per email) and for
// high-impact writes (half of the base, per actor).
func SensitiveMutationRateLimit(baseLimit int, window time.Duration) func(http.Handler) http.Handler {
	authLimit := max(baseLimit/4, 1)
	authByIP := newKeyedLimiter(authLimit, window, ipKey)
	authByEmail := newKeyedLimiter(authLimit, window, AuthEmailOrIPKey("email"))
	byActor := newKeyedLimiter(max(baseLimit/2, 1), window, actorOrIPKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var chain []*keyedLimiter
			switch sensitiveRateScope(r) {
			case sensitiveScopeAuth:
				chain = []*keyedLimiter{authByIP, authByEmail}
			case sensitiveScopeActor:
				chain = []*keyedLimiter{byActor}
			}
			for _, l := range chain {
				if !l.admit(w, r) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthEmailOrIPKey keys on the lower-cased email found in the JSON body, so
// attempts against one account share a budget across IPs.
func AuthEmailOrIPKey(field string) RateLimitKeyFunc {
	if field = strings.TrimSpace(field); field == "" {
		field = "email"
	}
	return func(r *http.Request) string {
		if email := peekJSONString(r, field); email != "" {
			return "email:" + strings.ToLower(email)
		}
		return ipKey(r)
	}
}

func actorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.OrganizationID + ":" + user.UserID
	}
	return ipKey(r)
}

func ipKey(r *http.Request) string {
	return "ip:" + shared.ClientIP(r)
}

// peekJSONString reads one string field from a JSON body and restores the
// body for the handler.
func peekJSONString(r *http.Request, field string) string {
	if r.Body == nil || !strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, peekLimit))
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), r.Body))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	value, _ := payload[field].(string)
	return strings.TrimSpace(value)
}

type sensitiveScope string

const (
	sensitiveScopeNone  sensitiveScope = ""
	sensitiveScopeAuth  sensitiveScope = "auth"
	sensitiveScopeActor sensitiveScope = "actor"
)

// sensitiveRoutes lists the write endpoints with their own budget. A "*"
// segment matches any single path segment.
var sensitiveRoutes = []struct {
	pattern string
	scope   sensitiveScope
}{
	{"/auth/login", sensitiveScopeAuth},
	{"/auth/register", sensitiveScopeAuth},
	{"/auth/refresh", sensitiveScopeAuth},
	{"/auth/request-reset", sensitiveScopeAuth},
	{"/auth/reset", sensitiveScopeAuth},
	{"/auth/mfa/enable", sensitiveScopeActor},
	{"/auth/mfa/disable", sensitiveScopeActor},
	{"/users/invite", sensitiveScopeActor},
	{"/periods", sensitiveScopeActor},
	{"/rubrics/*/review", sensitiveScopeActor},
	{"/assessments/*/score", sensitiveScopeActor},
}

func matchRoute(pattern, path string) bool {
	want := strings.Split(strings.Trim(pattern, "/"), "/")
	got := strings.Split(strings.Trim(path, "/"), "/")
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if got[i] == "" || (want[i] != "*" && want[i] != got[i]) {
			return false
		}
	}
	return true
}

func sensitiveRateScope(r *http.Request) sensitiveScope {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return sensitiveScopeNone
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/v1")
	for _, route := range sensitiveRoutes {
		if matchRoute(route.pattern, path) {
			return route.scope
		}
	}
	return sensitiveScopeNone
}
