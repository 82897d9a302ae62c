package audithandler

import (
	"encoding/csv"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"hrkpi/internal/domain/audit"
	"hrkpi/internal/domain/auth"
	"hrkpi/internal/transport/http/api"
	"hrkpi/internal/transport/http/middleware"
	"hrkpi/internal/transport/http/shared"
)

const exportLimit = 10000

var csvHeader = []string{"id", "actor_user_id", "action", "entity_type", "entity_id", "request_id", "ip", "created_at"}

type Handler struct {
	Service *audit.Service
	Perms   middleware.PermissionStore
}

func NewHandler(service *audit.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/audit", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermAuditRead, h.Perms))
		r.Get("/", h.handleList)
		r.Get("/export", h.handleExport)
		r.Get("/{entityType}/{entityID}", h.handleEntityHistory)
	})
}

func filterFrom(r *http.Request) audit.Filter {
	query := r.URL.Query()
	return audit.Filter{
		Action:     query.Get("action"),
		EntityType: query.Get("entityType"),
		EntityID:   query.Get("entityId"),
		ActorUser:  query.Get("actorUserId"),
	}
}

func (h *Handler) page(w http.ResponseWriter, r *http.Request, filter audit.Filter, includeDetails bool) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	page := shared.PageFrom(r)
	total, err := h.Service.Count(r.Context(), user.OrganizationID, filter)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	events, err := h.Service.List(r.Context(), user.OrganizationID, filter, includeDetails, page.Limit, page.Offset)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.WriteTotal(w, total)
	api.Success(w, events, requestID)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, filterFrom(r), r.URL.Query().Get("includeDetails") == "true")
}

// handleEntityHistory returns every recorded change of one entity with its
// before and after snapshots, e.g. the review history of a rubric.
func (h *Handler) handleEntityHistory(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, audit.Filter{
		EntityType: chi.URLParam(r, "entityType"),
		EntityID:   chi.URLParam(r, "entityID"),
	}, true)
}

func csvRow(evt audit.Event) []string {
	return []string{evt.ID, evt.ActorID, evt.Action, evt.EntityType, evt.EntityID, evt.RequestID, evt.IP, evt.CreatedAt.UTC().Format(time.RFC3339)}
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	events, err := h.Service.List(r.Context(), user.OrganizationID, filterFrom(r), false, exportLimit, 0)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=audit-events.csv")
	writer := csv.NewWriter(w)
	rows := make([][]string, 0, len(events)+1)
	rows = append(rows, csvHeader)
	for _, evt := range events {
		rows = append(rows, csvRow(evt))
	}
	if err := writer.WriteAll(rows); err != nil {
		slog.Warn("audit export failed", "requestId", requestID, "err", err)
	}
}
