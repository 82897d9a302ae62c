package kpihandler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"hrkpi/internal/transport/http/api"
	"hrkpi/internal/transport/http/middleware"
)

func (h *Handler) handleTeamScores(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	scores, err := h.Service.TeamScore(r.Context(), actorFrom(user), r.URL.Query().Get("managerId"))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, scores, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleOrganizationScores(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	scores, err := h.Service.OrganizationAllTeamsScore(r.Context(), actorFrom(user))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, scores, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	progress, err := h.Service.ActiveTeamProgress(r.Context(), actorFrom(user), r.URL.Query().Get("managerId"), time.Now())
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, progress, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMemberBreakdown(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	breakdown, err := h.Service.MemberBreakdown(r.Context(), actorFrom(user), chi.URLParam(r, "teamID"), r.URL.Query().Get("periodId"))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, breakdown, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleTeamHistory(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	history, err := h.Service.TeamScoreHistory(r.Context(), actorFrom(user), chi.URLParam(r, "teamID"))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, history, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleEmployeePerformance(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	performance, err := h.Service.EmployeePerformance(r.Context(), actorFrom(user), chi.URLParam(r, "userID"))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, performance, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePerformanceReport(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	userID := chi.URLParam(r, "userID")
	report, err := h.Service.PerformanceReport(r.Context(), actorFrom(user), userID)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	var buf bytes.Buffer
	if err := report.WritePDF(&buf); err != nil {
		api.FailError(w, fmt.Errorf("render performance report: %w", err), requestID)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=performance-report.pdf")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
