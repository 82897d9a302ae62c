package authhandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"hrkpi/internal/domain/apperr"
	"hrkpi/internal/domain/audit"
	"hrkpi/internal/domain/auth"
	"hrkpi/internal/platform/metrics"
	"hrkpi/internal/transport/http/api"
	"hrkpi/internal/transport/http/middleware"
	"hrkpi/internal/transport/http/shared"
)

type Handler struct {
	Service *auth.Service
	Perms   middleware.PermissionStore
	Audit   *audit.Service
	Metrics *metrics.Collector
}

func NewHandler(service *auth.Service, perms middleware.PermissionStore, auditSvc *audit.Service, collector *metrics.Collector) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditSvc, Metrics: collector}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.handleRegister)
		r.Post("/login", h.handleLogin)
		r.Post("/refresh", h.handleRefresh)
		r.Post("/request-reset", h.handleRequestReset)
		r.Post("/reset", h.handleReset)
		r.With(middleware.RequireAuth).Post("/logout", h.handleLogout)
		r.With(middleware.RequireAuth).Get("/me", h.handleMe)
		r.Route("/mfa", func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Post("/setup", h.handleMFASetup)
			r.Post("/enable", h.handleMFAEnable)
			r.Post("/disable", h.handleMFADisable)
		})
	})
	r.With(middleware.RequirePermission(auth.PermUsersManage, h.Perms)).Post("/users/invite", h.handleInvite)
}

type registerRequest struct {
	OrganizationName string `json:"organizationName" validate:"required,max=200"`
	Name             string `json:"name" validate:"required,max=200"`
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	MFACode  string `json:"mfaCode" validate:"omitempty,max=16"`
}

type mfaCodeRequest struct {
	Code string `json:"code" validate:"required,max=16"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type resetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

type inviteRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"omitempty,oneof=hrd manager employee"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload registerRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}

	session, err := h.Service.Register(r.Context(), auth.RegisterInput{
		OrganizationName: payload.OrganizationName,
		Name:             payload.Name,
		Email:            payload.Email,
		Password:         payload.Password,
	})
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	owner := auth.UserContext{UserID: session.User.ID, OrganizationID: session.User.OrganizationID, Role: session.User.Role}
	shared.RecordAudit(r, h.Audit, owner, "organization.register", "organization", session.User.OrganizationID, nil, map[string]string{"name": payload.OrganizationName})
	api.Created(w, session, requestID)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload loginRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}

	session, err := h.Service.Login(r.Context(), payload.Email, payload.Password, payload.MFACode)
	if err != nil {
		if apperr.IsKind(err, apperr.KindUnauthorized) {
			h.Metrics.Inc(metrics.LoginFailures)
		}
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, session, requestID)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload refreshRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}

	session, err := h.Service.Refresh(r.Context(), payload.RefreshToken)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, session, requestID)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	if err := h.Service.Logout(r.Context(), user); err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, map[string]string{"status": "logged_out"}, requestID)
}

func (h *Handler) handleRequestReset(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload resetRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	if err := h.Service.RequestPasswordReset(r.Context(), payload.Email); err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, map[string]string{"status": "reset_requested"}, requestID)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload resetPasswordRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}

	user, err := h.Service.ResetPassword(r.Context(), payload.Token, payload.NewPassword)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	actor := auth.UserContext{UserID: user.ID, OrganizationID: user.OrganizationID, Role: user.Role}
	shared.RecordAudit(r, h.Audit, actor, "auth.password_reset", "user", user.ID, nil, nil)
	api.Success(w, map[string]string{"status": "password_reset"}, requestID)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}

	me, err := h.Service.Me(r.Context(), user.UserID)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, map[string]any{
		"user":        me,
		"permissions": auth.RolePermissions[me.Role],
	}, requestID)
}

func (h *Handler) handleInvite(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}

	var payload inviteRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}

	invited, err := h.Service.InviteUser(r.Context(), user, auth.InviteInput{
		Name:  payload.Name,
		Email: payload.Email,
		Role:  payload.Role,
	})
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, user, "user.invite", "user", invited.ID, nil, invited)
	api.Created(w, invited, requestID)
}

func (h *Handler) handleMFASetup(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	setup, err := h.Service.SetupMFA(r.Context(), user.UserID)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, setup, requestID)
}

func (h *Handler) handleMFAEnable(w http.ResponseWriter, r *http.Request) {
	h.confirmMFA(w, r, true)
}

func (h *Handler) handleMFADisable(w http.ResponseWriter, r *http.Request) {
	h.confirmMFA(w, r, false)
}

func (h *Handler) confirmMFA(w http.ResponseWriter, r *http.Request, enable bool) {
	requestID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	var payload mfaCodeRequest
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	change, action := h.Service.DisableMFA, "user.mfa_disabled"
	if enable {
		change, action = h.Service.EnableMFA, "user.mfa_enabled"
	}
	if err := change(r.Context(), user.UserID, payload.Code); err != nil {
		api.FailError(w, err, requestID)
		return
	}
	shared.RecordAudit(r, h.Audit, user, action, "user", user.UserID, nil, map[string]bool{"mfaEnabled": enable})
	api.Success(w, map[string]bool{"mfaEnabled": enable}, requestID)
}
