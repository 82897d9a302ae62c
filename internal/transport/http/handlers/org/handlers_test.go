package orghandler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"hrkpi/internal/domain/auth"
	"hrkpi/internal/domain/org"
	"hrkpi/internal/transport/http/middleware"
)

func serve(h *Handler, user *auth.UserContext, method, path, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if user != nil {
				req = req.WithContext(middleware.WithUser(req.Context(), *user))
			}
			next.ServeHTTP(w, req)
		})
	})
	h.RegisterRoutes(r)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// Every case is rejected before the service touches its store.
func TestRoutesRejectBeforeService(t *testing.T) {
	h := NewHandler(org.NewService(nil), auth.Policy{}, nil)
	employee := &auth.UserContext{UserID: "e1", OrganizationID: "o1", Role: auth.RoleEmployee}
	hrd := &auth.UserContext{UserID: "h1", OrganizationID: "o1", Role: auth.RoleHRD}

	tests := []struct {
		name   string
		user   *auth.UserContext
		method string
		path   string
		body   string
		status int
	}{
		{"anonymous team list", nil, http.MethodGet, "/teams", "", http.StatusUnauthorized},
		{"employee creates team", employee, http.MethodPost, "/teams", `{"name":"Ops","managerId":"00000000-0000-0000-0000-000000000001"}`, http.StatusForbidden},
		{"employee changes role", employee, http.MethodPut, "/users/u2/role", `{"role":"manager"}`, http.StatusForbidden},
		{"team without manager", hrd, http.MethodPost, "/teams", `{"name":"Ops"}`, http.StatusBadRequest},
		{"manager id not uuid", hrd, http.MethodPost, "/teams", `{"name":"Ops","managerId":"mgr"}`, http.StatusBadRequest},
		{"owner role assignment", hrd, http.MethodPut, "/users/u2/role", `{"role":"owner"}`, http.StatusBadRequest},
		{"unknown member status", hrd, http.MethodPut, "/teams/t1/members/u2", `{"status":"paused"}`, http.StatusBadRequest},
		{"empty organization name", hrd, http.MethodPut, "/organization", `{"name":""}`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(h, tc.user, tc.method, tc.path, tc.body)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
		})
	}
}
