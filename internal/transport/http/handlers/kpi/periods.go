package kpihandler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hrkpi/internal/domain/kpi"
	"hrkpi/internal/domain/notifications"
	"hrkpi/internal/platform/jobs"
	"hrkpi/internal/platform/metrics"
	"hrkpi/internal/transport/http/api"
	"hrkpi/internal/transport/http/middleware"
	"hrkpi/internal/transport/http/shared"
)

type periodRequest struct {
	PeriodLabel string `json:"periodLabel" validate:"required,max=100"`
	StartDate   string `json:"startDate" validate:"required"`
	DueDate     string `json:"dueDate" validate:"required"`
}

func (h *Handler) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	periods, err := h.Service.ListPeriods(r.Context(), actorFrom(user))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, periods, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetPeriod(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	period, err := h.Service.GetPeriod(r.Context(), actorFrom(user), chi.URLParam(r, "periodID"))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, period, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreatePeriod(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload periodRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	var issues shared.Issues
	start, due := issues.DateRange("startDate", payload.StartDate, "dueDate", payload.DueDate)
	if issues.Reject(w, requestID) {
		return
	}

	created, err := h.Service.CreatePeriod(r.Context(), actorFrom(user), payload.PeriodLabel, due, start)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	h.Metrics.Inc(metrics.PeriodsCreated)
	h.Metrics.Add(metrics.RecordsGenerated, len(created.Records))
	shared.RecordAudit(r, h.Audit, user, "period.create", "assessment_period", created.Period.ID, nil, map[string]any{
		"period":  created.Period,
		"records": len(created.Records),
	})

	h.announcePeriod(r.Context(), user.OrganizationID, created)
	api.Created(w, created, requestID)
}

// announcePeriod tells every member with a new record that the period is open.
// Delivery runs on the job worker; it falls back to the request when no worker
// accepts it.
func (h *Handler) announcePeriod(ctx context.Context, orgID string, created kpi.PeriodCreation) {
	if h.Notify == nil {
		return
	}
	seen := map[string]bool{}
	var recipients []string
	for _, record := range created.Records {
		if !seen[record.UserID] {
			seen[record.UserID] = true
			recipients = append(recipients, record.UserID)
		}
	}
	if len(recipients) == 0 {
		return
	}
	body := "The assessment period " + created.Period.Label + " is open until " + created.Period.DueDate.Format("2006-01-02") + "."
	send := func(ctx context.Context) (any, error) {
		for _, userID := range recipients {
			h.Notify.Notify(ctx, orgID, userID, notifications.TypePeriodOpened, "Assessment period opened", body)
		}
		return map[string]any{"periodId": created.Period.ID, "recipients": len(recipients)}, nil
	}
	if h.Jobs != nil && h.Jobs.Enqueue(jobs.JobPeriodNotify, send) {
		return
	}
	_, _ = send(ctx)
}
