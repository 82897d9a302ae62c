package kpihandler

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
	"hrkpi/internal/domain/kpi"
	"hrkpi/internal/transport/http/middleware"
)

// stubStore answers the dashboard reads; any other call panics on the nil
// embedded interface.
type stubStore struct {
	kpi.StoreAPI
	rows []kpi.AssessmentRow
}

func (s stubStore) ListAssessments(_ context.Context, filter kpi.AssessmentFilter) ([]kpi.AssessmentRow, error) {
	var out []kpi.AssessmentRow
	for _, row := range s.rows {
		if filter.UserID == "" || row.UserID == filter.UserID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s stubStore) ManagesUser(context.Context, string, string, string) (bool, error) {
	return false, nil
}

func score(v float64) *float64 { return &v }

func newTestHandler() *Handler {
	due := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	rows := []kpi.AssessmentRow{
		{RecordID: "r1", PeriodID: "p1", PeriodLabel: "Q1", DueDate: due, TeamID: "t1", UserID: "u1", UserName: "Uma", RubricID: "k1", Category: "Delivery", Weight: 10, ScoringMethod: kpi.ScoringManager, Score: score(10)},
		{RecordID: "r2", PeriodID: "p1", PeriodLabel: "Q1", DueDate: due, TeamID: "t1", UserID: "u1", UserName: "Uma", RubricID: "k2", Category: "Quality", Weight: 30, ScoringMethod: kpi.ScoringSelf, Score: score(5)},
	}
	return NewHandler(kpi.NewService(stubStore{rows: rows}), nil, auth.Policy{}, nil, nil, nil, nil)
}

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

var (
	employee = &auth.UserContext{UserID: "u1", OrganizationID: "o1", Role: auth.RoleEmployee}
	manager  = &auth.UserContext{UserID: "m1", OrganizationID: "o1", Role: auth.RoleManager}
	hrd      = &auth.UserContext{UserID: "h1", OrganizationID: "o1", Role: auth.RoleHRD}
)

func TestRoutesRejectBeforeService(t *testing.T) {
	h := newTestHandler()

	tests := []struct {
		name   string
		user   *auth.UserContext
		method string
		path   string
		body   string
		status int
	}{
		{"employee opens period", employee, http.MethodPost, "/periods", `{"periodLabel":"Q1","startDate":"2026-01-01","dueDate":"2026-03-31"}`, http.StatusForbidden},
		{"manager reviews rubric", manager, http.MethodPost, "/rubrics/k1/review", `{"decision":"approve"}`, http.StatusForbidden},
		{"manager overrides score", manager, http.MethodPut, "/assessments/r1/score", `{"score":50}`, http.StatusForbidden},
		{"employee views org dashboard", employee, http.MethodGet, "/dashboard/organization", "", http.StatusForbidden},
		{"period dates reversed", hrd, http.MethodPost, "/periods", `{"periodLabel":"Q1","startDate":"2026-03-31","dueDate":"2026-01-01"}`, http.StatusBadRequest},
		{"period bad date", hrd, http.MethodPost, "/periods", `{"periodLabel":"Q1","startDate":"soon","dueDate":"2026-01-01"}`, http.StatusBadRequest},
		{"period missing label", hrd, http.MethodPost, "/periods", `{"startDate":"2026-01-01","dueDate":"2026-03-31"}`, http.StatusBadRequest},
		{"rubric zero weight", manager, http.MethodPost, "/rubrics", `{"teamId":"00000000-0000-0000-0000-000000000001","category":"Delivery","metric":"On time","weight":0,"scoringMethod":"manager"}`, http.StatusBadRequest},
		{"rubric weight not a number", manager, http.MethodPost, "/rubrics", `{"teamId":"00000000-0000-0000-0000-000000000001","category":"Delivery","metric":"On time","weight":"ten","scoringMethod":"manager"}`, http.StatusBadRequest},
		{"rubric unknown method", manager, http.MethodPost, "/rubrics", `{"teamId":"00000000-0000-0000-0000-000000000001","category":"Delivery","metric":"On time","weight":10,"scoringMethod":"peer"}`, http.StatusBadRequest},
		{"review unknown decision", hrd, http.MethodPost, "/rubrics/k1/review", `{"decision":"maybe"}`, http.StatusBadRequest},
		{"self score zero", employee, http.MethodPut, "/assessments/r1/self-score", `{"score":0}`, http.StatusBadRequest},
		{"manager score above range", manager, http.MethodPut, "/assessments/r1/manager-score", `{"score":100.5}`, http.StatusBadRequest},
		{"manager score below a cent", manager, http.MethodPut, "/assessments/r1/manager-score", `{"score":0.004}`, http.StatusBadRequest},
		{"rubric weight overflows", manager, http.MethodPost, "/rubrics", `{"teamId":"00000000-0000-0000-0000-000000000001","category":"Delivery","metric":"On time","weight":1e12,"scoringMethod":"manager"}`, http.StatusBadRequest},
		{"comment empty", manager, http.MethodPut, "/assessments/r1/comment", `{"comment":""}`, http.StatusBadRequest},
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

func TestEmployeePerformanceDashboard(t *testing.T) {
	rec := serve(newTestHandler(), employee, http.MethodGet, "/dashboard/users/u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var env struct {
		Data []kpi.EmployeePeriodScore `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(env.Data) != 1 || env.Data[0].FinalScore == nil || *env.Data[0].FinalScore != 6.25 {
		t.Fatalf("unexpected performance: %+v", env.Data)
	}
}

func TestEmployeeCannotViewColleague(t *testing.T) {
	rec := serve(newTestHandler(), employee, http.MethodGet, "/dashboard/users/u2", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestPerformanceReportPDF(t *testing.T) {
	rec := serve(newTestHandler(), employee, http.MethodGet, "/dashboard/users/u1/report.pdf", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("expected pdf content type, got %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatal("expected a PDF document")
	}
}
