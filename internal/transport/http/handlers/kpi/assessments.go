package kpihandler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hrkpi/internal/domain/kpi"
	"hrkpi/internal/domain/notifications"
	"hrkpi/internal/platform/metrics"
	"hrkpi/internal/transport/http/api"
	"hrkpi/internal/transport/http/middleware"
	"hrkpi/internal/transport/http/shared"
)

type managerScoreRequest struct {
	Score          float64 `json:"score" validate:"gte=0.01,lte=100"`
	Justification  string  `json:"justification" validate:"max=4000"`
	ManagerComment string  `json:"managerComment" validate:"max=4000"`
}

type selfScoreRequest struct {
	Score         float64 `json:"score" validate:"gte=0.01,lte=100"`
	Justification string  `json:"justification" validate:"max=4000"`
}

type commentRequest struct {
	Comment string `json:"comment" validate:"required,max=4000"`
}

type overrideRequest struct {
	Score float64 `json:"score" validate:"gte=0.01,lte=100"`
}

func (h *Handler) handleOpenAssessments(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	open, err := h.Service.OpenAssessments(r.Context(), actorFrom(user), r.URL.Query().Get("managerId"))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, open, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleOpenAssessmentsForUser(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	forms, err := h.Service.OpenAssessmentsForUser(r.Context(), actorFrom(user),
		chi.URLParam(r, "userID"), chi.URLParam(r, "periodID"), r.URL.Query().Get("category"))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, forms, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleManagerScore(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload managerScoreRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	record, err := h.Service.SubmitManagerScore(r.Context(), actorFrom(user), chi.URLParam(r, "recordID"),
		payload.Score, payload.Justification, payload.ManagerComment)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	h.scored(r, "assessment.manager_score", record)
	api.Success(w, record, requestID)
}

func (h *Handler) handleSelfScore(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload selfScoreRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	record, err := h.Service.SubmitSelfAssessmentScore(r.Context(), actorFrom(user), chi.URLParam(r, "recordID"),
		payload.Score, payload.Justification)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	h.scored(r, "assessment.self_score", record)
	api.Success(w, record, requestID)
}

func (h *Handler) handleComment(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload commentRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	record, err := h.Service.CommentAssessment(r.Context(), actorFrom(user), chi.URLParam(r, "recordID"), payload.Comment)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, user, "assessment.comment", "assessment_record", record.ID, nil, map[string]string{"comment": payload.Comment})
	api.Success(w, record, requestID)
}

func (h *Handler) handleChangeScore(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload overrideRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	record, err := h.Service.ChangeScore(r.Context(), actorFrom(user), chi.URLParam(r, "recordID"), payload.Score)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	h.scored(r, "assessment.score_override", record)
	api.Success(w, record, requestID)
}

// scored records the audit event, the counter and the assessee notification
// shared by every score mutation.
func (h *Handler) scored(r *http.Request, action string, record kpi.Record) {
	user, _ := middleware.GetUser(r.Context())
	h.Metrics.Inc(metrics.ScoresSubmitted)
	shared.RecordAudit(r, h.Audit, user, action, "assessment_record", record.ID, nil, map[string]any{"score": record.Score})
	if record.UserID == user.UserID || record.Score == nil {
		return
	}
	h.Notify.Notify(r.Context(), user.OrganizationID, record.UserID, notifications.TypeAssessmentScored,
		"Assessment scored", fmt.Sprintf("One of your assessments was scored %.2f.", *record.Score))
}
