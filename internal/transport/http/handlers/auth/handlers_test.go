package authhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"hrkpi/internal/domain/auth"
	"hrkpi/internal/platform/metrics"
	"hrkpi/internal/transport/http/middleware"
)

const testSecret = "handler-test-secret"

// singleUserStore backs the auth service with one active account.
type singleUserStore struct {
	user         auth.User
	passwordHash string
	refreshHash  string
	revoked      map[string]bool
}

func (s *singleUserStore) FindCredentialsByEmail(_ context.Context, email string) (auth.Credentials, error) {
	if !strings.EqualFold(email, s.user.Email) {
		return auth.Credentials{}, auth.ErrUserNotFound
	}
	return auth.Credentials{User: s.user, PasswordHash: s.passwordHash}, nil
}

func (s *singleUserStore) GetUser(_ context.Context, userID string) (auth.User, error) {
	if userID != s.user.ID {
		return auth.User{}, auth.ErrUserNotFound
	}
	return s.user, nil
}

func (s *singleUserStore) UpdateLastLogin(context.Context, string) error { return nil }

func (s *singleUserStore) StoreRefreshToken(_ context.Context, _ string, tokenHash string, _ time.Time) error {
	s.refreshHash = tokenHash
	return nil
}

func (s *singleUserStore) FindByRefreshToken(_ context.Context, tokenHash string, _ time.Time) (auth.User, error) {
	if tokenHash == "" || tokenHash != s.refreshHash {
		return auth.User{}, auth.ErrInvalidRefreshToken
	}
	return s.user, nil
}

func (s *singleUserStore) ClearRefreshToken(context.Context, string) error {
	s.refreshHash = ""
	return nil
}

func (s *singleUserStore) RevokeToken(_ context.Context, tokenHash, _ string, _ time.Time) error {
	s.revoked[tokenHash] = true
	return nil
}

func (s *singleUserStore) IsTokenRevoked(_ context.Context, tokenHash string) (bool, error) {
	return s.revoked[tokenHash], nil
}

func (s *singleUserStore) PurgeRevokedTokens(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (s *singleUserStore) SetResetToken(context.Context, string, string, time.Time) error { return nil }

func (s *singleUserStore) ConsumeResetToken(context.Context, string, string, time.Time) (auth.User, error) {
	return auth.User{}, auth.ErrInvalidResetToken
}

func (s *singleUserStore) PurgeResetTokens(context.Context, time.Time) (int64, error) { return 0, nil }

func (s *singleUserStore) SetMFASecret(context.Context, string, []byte) error { return nil }

func (s *singleUserStore) GetMFA(context.Context, string) (bool, []byte, error) {
	return false, nil, nil
}

func (s *singleUserStore) SetMFAEnabled(context.Context, string, bool) error { return nil }

func (s *singleUserStore) CreateUser(context.Context, auth.NewUser) (auth.User, error) {
	return auth.User{}, auth.ErrUserNotFound
}

func (s *singleUserStore) CreateOrganizationWithOwner(context.Context, string, auth.NewUser) (auth.User, error) {
	return auth.User{}, auth.ErrUserNotFound
}

func newTestRouter(t *testing.T) (http.Handler, *metrics.Collector) {
	t.Helper()
	hash, err := auth.HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	store := &singleUserStore{
		user: auth.User{
			ID:             "u-1",
			OrganizationID: "o-1",
			Name:           "Hana",
			Email:          "hana@example.com",
			Role:           auth.RoleManager,
			Status:         auth.StatusActive,
		},
		passwordHash: hash,
		revoked:      map[string]bool{},
	}
	svc := auth.NewService(store, nil, auth.Options{
		Secret:     testSecret,
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	})
	collector := metrics.New()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Auth(testSecret, svc))
	NewHandler(svc, auth.Policy{}, nil, collector).RegisterRoutes(r)
	return r, collector
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestLoginMeLogout(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/auth/login", "", `{"email":"Hana@example.com","password":"correct-horse"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected login 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var session auth.Session
	if err := json.Unmarshal(decode(t, rec).Data, &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.AccessToken == "" || session.RefreshToken == "" {
		t.Fatalf("expected both tokens, got %+v", session)
	}

	rec = do(t, router, http.MethodGet, "/auth/me", session.AccessToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected me 200, got %d", rec.Code)
	}

	rec = do(t, router, http.MethodPost, "/auth/refresh", "", `{"refreshToken":"`+session.RefreshToken+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected refresh 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodPost, "/auth/logout", session.AccessToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected logout 200, got %d", rec.Code)
	}

	rec = do(t, router, http.MethodGet, "/auth/me", session.AccessToken, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected revoked token to be rejected, got %d", rec.Code)
	}
}

func TestLoginFailureCountsMetric(t *testing.T) {
	router, collector := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/auth/login", "", `{"email":"hana@example.com","password":"wrong-password"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if env := decode(t, rec); env.Error == nil || env.Error.Code != "unauthorized" {
		t.Fatalf("unexpected error envelope: %s", rec.Body.String())
	}
	events, _ := collector.Snapshot()["events"].(map[string]uint64)
	if events[metrics.LoginFailures] != 1 {
		t.Fatalf("expected one login failure, got %v", collector.Snapshot()["events"])
	}
}

func TestAuthPayloadValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"empty login body", "/auth/login", "", http.StatusBadRequest, "invalid_payload"},
		{"login missing password", "/auth/login", `{"email":"hana@example.com"}`, http.StatusBadRequest, "validation_error"},
		{"malformed reset email", "/auth/request-reset", `{"email":"nope"}`, http.StatusBadRequest, "validation_error"},
		{"refresh missing token", "/auth/refresh", `{}`, http.StatusBadRequest, "validation_error"},
		{"register disabled", "/auth/register", `{"organizationName":"Acme","name":"A","email":"a@example.com","password":"longenough"}`, http.StatusForbidden, "forbidden"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, tc.path, "", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			env := decode(t, rec)
			if env.Error == nil || env.Error.Code != tc.code {
				t.Fatalf("expected code %q, got %s", tc.code, rec.Body.String())
			}
		})
	}
}

func TestInviteRequiresPermission(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/users/invite", "", `{"name":"Ben","email":"ben@example.com"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected anonymous invite 401, got %d", rec.Code)
	}

	token, err := auth.GenerateToken(testSecret, auth.Claims{UserID: "u-1", OrganizationID: "o-1", Role: auth.RoleManager}, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	rec = do(t, router, http.MethodPost, "/users/invite", token, `{"name":"Ben","email":"ben@example.com"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected manager invite 403, got %d", rec.Code)
	}
}

func TestMFARoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	if rec := do(t, router, http.MethodPost, "/auth/mfa/setup", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected anonymous setup to be rejected, got %d", rec.Code)
	}

	rec := do(t, router, http.MethodPost, "/auth/login", "", `{"email":"hana@example.com","password":"correct-horse"}`)
	var session auth.Session
	if err := json.Unmarshal(decode(t, rec).Data, &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}

	rec = do(t, router, http.MethodPost, "/auth/mfa/setup", session.AccessToken, "")
	if env := decode(t, rec); rec.Code != http.StatusBadRequest || env.Error == nil || env.Error.Code != "mfa_unavailable" {
		t.Fatalf("expected mfa_unavailable without a data key, got %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodPost, "/auth/mfa/enable", session.AccessToken, `{}`)
	if env := decode(t, rec); rec.Code != http.StatusBadRequest || env.Error == nil || env.Error.Code != "validation_error" {
		t.Fatalf("expected missing code to fail validation, got %d %s", rec.Code, rec.Body.String())
	}
}
