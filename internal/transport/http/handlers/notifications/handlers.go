package notificationshandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"hrkpi/internal/domain/notifications"
	"hrkpi/internal/transport/http/api"
	"hrkpi/internal/transport/http/middleware"
	"hrkpi/internal/transport/http/shared"
)

// Handler serves the caller's own inbox. Every query is scoped to the
// authenticated user, so no permission beyond being signed in is needed.
type Handler struct {
	Service *notifications.Service
}

func NewHandler(service *notifications.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/", h.handleInbox)
		r.Get("/unread-count", h.handleUnreadCount)
		r.Post("/{notificationID}/read", h.handleMarkRead)
	})
}

func (h *Handler) handleInbox(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	page := shared.PageFrom(r)
	unreadOnly := r.URL.Query().Get("unread") == "true"
	total, err := h.Service.Count(r.Context(), user.OrganizationID, user.UserID, unreadOnly)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	items, err := h.Service.List(r.Context(), user.OrganizationID, user.UserID, unreadOnly, page.Limit, page.Offset)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.WriteTotal(w, total)
	api.Success(w, items, requestID)
}

func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	unread, err := h.Service.Count(r.Context(), user.OrganizationID, user.UserID, true)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, map[string]int{"unread": unread}, requestID)
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	if err := h.Service.MarkRead(r.Context(), user.OrganizationID, user.UserID, chi.URLParam(r, "notificationID")); err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, map[string]string{"status": "read"}, requestID)
}
