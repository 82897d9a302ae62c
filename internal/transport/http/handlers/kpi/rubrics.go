package kpihandler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hrkpi/internal/domain/kpi"
	"hrkpi/internal/domain/notifications"
	"hrkpi/internal/platform/metrics"
	"hrkpi/internal/transport/http/api"
	"hrkpi/internal/transport/http/middleware"
	"hrkpi/internal/transport/http/shared"
)

type rubricRequest struct {
	TeamID        string  `json:"teamId" validate:"required,uuid"`
	Category      string  `json:"category" validate:"required,max=100"`
	Metric        string  `json:"metric" validate:"required,max=200"`
	Description   string  `json:"description" validate:"max=4000"`
	Criteria      string  `json:"criteria" validate:"max=4000"`
	Weight        float64 `json:"weight" validate:"gte=0.01,lte=99999999.99"`
	ScoringMethod string  `json:"scoringMethod" validate:"required,oneof=manager self"`
	DataSource    string  `json:"dataSource" validate:"max=500"`
}

func (p rubricRequest) input() kpi.RubricInput {
	return kpi.RubricInput{
		TeamID:        p.TeamID,
		Category:      p.Category,
		Metric:        p.Metric,
		Description:   p.Description,
		Criteria:      p.Criteria,
		Weight:        p.Weight,
		ScoringMethod: p.ScoringMethod,
		DataSource:    p.DataSource,
	}
}

type reviewRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
	Comment  string `json:"comment" validate:"max=2000"`
}

func (h *Handler) handleListRubrics(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	var (
		rubrics []kpi.Rubric
		err     error
	)
	if teamID := r.URL.Query().Get("teamId"); teamID != "" {
		rubrics, err = h.Service.ListRubricsByTeam(r.Context(), actorFrom(user), teamID)
	} else {
		rubrics, err = h.Service.ListRubrics(r.Context(), actorFrom(user))
	}
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, rubrics, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListTeamRubrics(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	rubrics, err := h.Service.ListRubricsByTeam(r.Context(), actorFrom(user), chi.URLParam(r, "teamID"))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, rubrics, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListPendingRubrics(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	rubrics, err := h.Service.ListRubricsPendingReview(r.Context(), actorFrom(user))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, rubrics, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRubricStatus(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	summary, err := h.Service.TeamRubricStatus(r.Context(), actorFrom(user))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, summary, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetRubric(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	rubric, err := h.Service.GetRubric(r.Context(), actorFrom(user), chi.URLParam(r, "rubricID"))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, rubric, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateRubric(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload rubricRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	rubric, err := h.Service.CreateRubric(r.Context(), actorFrom(user), payload.input())
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, user, "rubric.create", "rubric", rubric.ID, nil, rubric)
	h.notifyOwner(r.Context(), user.OrganizationID, user.UserID, "Rubric submitted", "A rubric for "+rubric.Metric+" is waiting for review.")
	api.Created(w, rubric, requestID)
}

func (h *Handler) handleUpdateRubric(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload rubricRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	rubricID := chi.URLParam(r, "rubricID")
	before, err := h.Service.GetRubric(r.Context(), actorFrom(user), rubricID)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	rubric, err := h.Service.UpdateRubric(r.Context(), actorFrom(user), rubricID, payload.input())
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, user, "rubric.update", "rubric", rubric.ID, before, rubric)
	h.notifyOwner(r.Context(), user.OrganizationID, user.UserID, "Rubric resubmitted", "The rubric for "+rubric.Metric+" was updated and is waiting for review.")
	api.Success(w, rubric, requestID)
}

func (h *Handler) handleDeleteRubric(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	rubricID := chi.URLParam(r, "rubricID")
	if err := h.Service.DeleteRubric(r.Context(), actorFrom(user), rubricID); err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, user, "rubric.delete", "rubric", rubricID, nil, nil)
	api.Success(w, map[string]string{"status": "deleted"}, requestID)
}

func (h *Handler) handleReviewRubric(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload reviewRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	rubricID := chi.URLParam(r, "rubricID")
	rubric, err := h.Service.ReviewRubric(r.Context(), actorFrom(user), rubricID, payload.Comment, payload.Decision)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	h.Metrics.Inc(metrics.RubricsReviewed)
	shared.RecordAudit(r, h.Audit, user, "rubric.review", "rubric", rubric.ID, nil, map[string]string{
		"decision": payload.Decision,
		"comment":  payload.Comment,
	})
	title := "Rubric approved"
	if payload.Decision == kpi.DecisionReject {
		title = "Rubric rejected"
	}
	h.Notify.Notify(r.Context(), user.OrganizationID, rubric.CreatedBy, notifications.TypeRubricReviewed, title, "Your rubric for "+rubric.Metric+" was reviewed.")
	api.Success(w, rubric, requestID)
}

// notifyOwner tells the organization owner that a rubric needs review, unless
// the owner is the one who submitted it.
func (h *Handler) notifyOwner(ctx context.Context, orgID, actorID, title, body string) {
	if h.Org == nil || h.Notify == nil {
		return
	}
	organization, err := h.Org.GetOrganization(ctx, orgID)
	if err != nil {
		slog.Warn("rubric notification owner lookup failed", "err", err)
		return
	}
	if organization.OwnerID == "" || organization.OwnerID == actorID {
		return
	}
	h.Notify.Notify(ctx, orgID, organization.OwnerID, notifications.TypeRubricSubmitted, title, body)
}
