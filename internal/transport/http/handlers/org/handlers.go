package orghandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"hrkpi/internal/domain/audit"
	"hrkpi/internal/domain/auth"
	"hrkpi/internal/domain/org"
	"hrkpi/internal/transport/http/api"
	"hrkpi/internal/transport/http/middleware"
	"hrkpi/internal/transport/http/shared"
)

type Handler struct {
	Service *org.Service
	Perms   middleware.PermissionStore
	Audit   *audit.Service
}

func NewHandler(service *org.Service, perms middleware.PermissionStore, auditSvc *audit.Service) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermOrgRead, h.Perms)
	manage := middleware.RequirePermission(auth.PermOrgManage, h.Perms)

	r.With(read).Get("/organization", h.handleGetOrganization)
	r.With(manage).Put("/organization", h.handleUpdateOrganization)

	r.With(read).Get("/users", h.handleListUsers)
	r.With(middleware.RequirePermission(auth.PermUsersManage, h.Perms)).Put("/users/{userID}/role", h.handleUpdateRole)

	r.With(read).Get("/teams", h.handleListTeams)
	r.With(manage).Post("/teams", h.handleCreateTeam)
	r.With(read).Get("/teams/{teamID}", h.handleGetTeam)
	r.With(manage).Put("/teams/{teamID}", h.handleUpdateTeam)
	r.With(manage).Delete("/teams/{teamID}", h.handleDeleteTeam)
	r.With(read).Get("/teams/{teamID}/members", h.handleListMembers)
	r.With(manage).Post("/teams/{teamID}/members", h.handleAddMember)
	r.With(manage).Put("/teams/{teamID}/members/{userID}", h.handleSetMemberStatus)
}

type organizationRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

type roleRequest struct {
	Role string `json:"role" validate:"required,oneof=hrd manager employee"`
}

type teamRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	ManagerID   string `json:"managerId" validate:"required,uuid"`
}

type memberRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
}

type memberStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive"`
}

func (h *Handler) handleGetOrganization(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	organization, err := h.Service.GetOrganization(r.Context(), user.OrganizationID)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, organization, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateOrganization(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload organizationRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	before, err := h.Service.GetOrganization(r.Context(), user.OrganizationID)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	updated, err := h.Service.UpdateOrganization(r.Context(), user.OrganizationID, payload.Name, payload.Description)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, user, "organization.update", "organization", updated.ID, before, updated)
	api.Success(w, updated, requestID)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	page := shared.PageFrom(r)
	query := r.URL.Query()
	users, total, err := h.Service.ListUsers(r.Context(), user.OrganizationID, org.UserFilter{
		Role:   query.Get("role"),
		Status: query.Get("status"),
		Search: query.Get("q"),
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.WriteTotal(w, total)
	api.Success(w, users, requestID)
}

func (h *Handler) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload roleRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	userID := chi.URLParam(r, "userID")
	updated, err := h.Service.UpdateUserRole(r.Context(), user.OrganizationID, userID, payload.Role)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, user, "user.role_update", "user", updated.ID, nil, map[string]string{"role": updated.Role})
	api.Success(w, updated, requestID)
}

func (h *Handler) handleListTeams(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	teams, err := h.Service.ListTeams(r.Context(), user.OrganizationID)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, teams, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload teamRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	team, err := h.Service.CreateTeam(r.Context(), user.OrganizationID, org.TeamInput{
		Name:        payload.Name,
		Description: payload.Description,
		ManagerID:   payload.ManagerID,
	})
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, user, "team.create", "team", team.ID, nil, team)
	api.Created(w, team, requestID)
}

func (h *Handler) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	team, err := h.Service.GetTeam(r.Context(), user.OrganizationID, chi.URLParam(r, "teamID"))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, team, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateTeam(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload teamRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	teamID := chi.URLParam(r, "teamID")
	before, err := h.Service.GetTeam(r.Context(), user.OrganizationID, teamID)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	team, err := h.Service.UpdateTeam(r.Context(), user.OrganizationID, teamID, org.TeamInput{
		Name:        payload.Name,
		Description: payload.Description,
		ManagerID:   payload.ManagerID,
	})
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, user, "team.update", "team", team.ID, before, team)
	api.Success(w, team, requestID)
}

func (h *Handler) handleDeleteTeam(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	teamID := chi.URLParam(r, "teamID")
	if err := h.Service.DeleteTeam(r.Context(), user.OrganizationID, teamID); err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, user, "team.delete", "team", teamID, nil, nil)
	api.Success(w, map[string]string{"status": "deleted"}, requestID)
}

func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	members, err := h.Service.ListMembers(r.Context(), user.OrganizationID, chi.URLParam(r, "teamID"))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, members, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAddMember(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload memberRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	member, err := h.Service.AddMember(r.Context(), user.OrganizationID, chi.URLParam(r, "teamID"), payload.UserID)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, user, "team.member_add", "team", member.TeamID, nil, member)
	api.Created(w, member, requestID)
}

func (h *Handler) handleSetMemberStatus(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload memberStatusRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	member, err := h.Service.SetMemberStatus(r.Context(), user.OrganizationID, chi.URLParam(r, "teamID"), chi.URLParam(r, "userID"), payload.Status)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, user, "team.member_status", "team", member.TeamID, nil, member)
	api.Success(w, member, requestID)
}
