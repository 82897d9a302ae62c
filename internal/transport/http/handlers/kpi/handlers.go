package kpihandler

import (
	"github.com/go-chi/chi/v5"

	"hrkpi/internal/domain/audit"
	"hrkpi/internal/domain/auth"
	"hrkpi/internal/domain/kpi"
	"hrkpi/internal/domain/notifications"
	"hrkpi/internal/domain/org"
	"hrkpi/internal/platform/jobs"
	"hrkpi/internal/platform/metrics"
	"hrkpi/internal/transport/http/middleware"
)

// Enqueuer runs work after the response is written. *jobs.Service satisfies it.
type Enqueuer interface {
	Enqueue(name string, fn jobs.Func) bool
}

type Handler struct {
	Service *kpi.Service
	Org     *org.Service
	Perms   middleware.PermissionStore
	Notify  *notifications.Service
	Audit   *audit.Service
	Metrics *metrics.Collector
	Jobs    Enqueuer
}

func NewHandler(service *kpi.Service, orgSvc *org.Service, perms middleware.PermissionStore, notify *notifications.Service, auditSvc *audit.Service, collector *metrics.Collector, background Enqueuer) *Handler {
	return &Handler{Service: service, Org: orgSvc, Perms: perms, Notify: notify, Audit: auditSvc, Metrics: collector, Jobs: background}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	require := func(perm string) chi.Router {
		return r.With(middleware.RequirePermission(perm, h.Perms))
	}
	rubricRead := require(auth.PermRubricRead)
	rubricWrite := require(auth.PermRubricWrite)
	rubricReview := require(auth.PermRubricReview)

	rubricRead.Get("/rubrics", h.handleListRubrics)
	rubricWrite.Post("/rubrics", h.handleCreateRubric)
	rubricReview.Get("/rubrics/pending", h.handleListPendingRubrics)
	rubricReview.Get("/rubrics/status", h.handleRubricStatus)
	rubricRead.Get("/rubrics/{rubricID}", h.handleGetRubric)
	rubricWrite.Put("/rubrics/{rubricID}", h.handleUpdateRubric)
	rubricWrite.Delete("/rubrics/{rubricID}", h.handleDeleteRubric)
	rubricReview.Post("/rubrics/{rubricID}/review", h.handleReviewRubric)
	rubricRead.Get("/teams/{teamID}/rubrics", h.handleListTeamRubrics)

	periodRead := require(auth.PermPeriodRead)
	periodRead.Get("/periods", h.handleListPeriods)
	require(auth.PermPeriodWrite).Post("/periods", h.handleCreatePeriod)
	periodRead.Get("/periods/{periodID}", h.handleGetPeriod)

	score := require(auth.PermAssessmentScore)
	score.Get("/assessments/open", h.handleOpenAssessments)
	score.Get("/assessments/open/{userID}/{periodID}", h.handleOpenAssessmentsForUser)
	score.Put("/assessments/{recordID}/manager-score", h.handleManagerScore)
	score.Put("/assessments/{recordID}/self-score", h.handleSelfScore)
	score.Put("/assessments/{recordID}/comment", h.handleComment)
	require(auth.PermAssessmentOverride).Put("/assessments/{recordID}/score", h.handleChangeScore)

	team := require(auth.PermDashboardTeam)
	team.Get("/dashboard/teams", h.handleTeamScores)
	team.Get("/dashboard/progress", h.handleProgress)
	team.Get("/dashboard/teams/{teamID}/members", h.handleMemberBreakdown)
	team.Get("/dashboard/teams/{teamID}/history", h.handleTeamHistory)
	require(auth.PermDashboardOrg).Get("/dashboard/organization", h.handleOrganizationScores)
	self := require(auth.PermDashboardSelf)
	self.Get("/dashboard/users/{userID}", h.handleEmployeePerformance)
	self.Get("/dashboard/users/{userID}/report.pdf", h.handlePerformanceReport)
}

func actorFrom(user auth.UserContext) kpi.Actor {
	return kpi.Actor{UserID: user.UserID, OrganizationID: user.OrganizationID, Admin: user.Admin()}
}
