package kpi

import (
	"context"
	"time"
)

// TeamScore reports, for each team the manager runs, the pooled weighted
// score of the team's latest period.
func (s *Service) TeamScore(ctx context.Context, actor Actor, managerID string) ([]TeamScore, error) {
	if managerID == "" {
		managerID = actor.UserID
	}
	if !actor.Admin && managerID != actor.UserID {
		return nil, ErrNotTeamManager
	}
	teams, err := s.store.ListTeams(ctx, TeamFilter{OrganizationID: actor.OrganizationID, ManagerID: managerID})
	if err != nil {
		return nil, err
	}
	if len(teams) == 0 {
		return []TeamScore{}, nil
	}
	rows, err := s.store.ListAssessments(ctx, AssessmentFilter{OrganizationID: actor.OrganizationID, ManagerID: managerID})
	if err != nil {
		return nil, err
	}
	return buildTeamScores(teams, rows), nil
}

func (s *Service) OrganizationAllTeamsScore(ctx context.Context, actor Actor) ([]TeamScore, error) {
	if !actor.Admin {
		return nil, ErrAdminOnly
	}
	teams, err := s.store.ListTeams(ctx, TeamFilter{OrganizationID: actor.OrganizationID})
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListAssessments(ctx, AssessmentFilter{OrganizationID: actor.OrganizationID})
	if err != nil {
		return nil, err
	}
	return buildTeamScores(teams, rows), nil
}

func (s *Service) TeamScoreHistory(ctx context.Context, actor Actor, teamID string) ([]TeamPeriodScore, error) {
	team, err := s.requireTeamAccess(ctx, actor, teamID)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListAssessments(ctx, AssessmentFilter{OrganizationID: actor.OrganizationID, TeamID: team.ID})
	if err != nil {
		return nil, err
	}
	return buildTeamHistory(rows), nil
}

// ActiveTeamProgress covers periods whose due date is still ahead of now.
func (s *Service) ActiveTeamProgress(ctx context.Context, actor Actor, managerID string, now time.Time) ([]TeamProgress, error) {
	if managerID == "" && !actor.Admin {
		managerID = actor.UserID
	}
	if !actor.Admin && managerID != actor.UserID {
		return nil, ErrNotTeamManager
	}
	if now.IsZero() {
		now = s.now()
	}
	rows, err := s.store.ListAssessments(ctx, AssessmentFilter{
		OrganizationID: actor.OrganizationID,
		ManagerID:      managerID,
		DueAfter:       &now,
	})
	if err != nil {
		return nil, err
	}
	progress := buildTeamProgress(rows)
	if progress == nil {
		progress = []TeamProgress{}
	}
	return progress, nil
}

// MemberBreakdown reports per active member completion and score for one
// period of the team, the latest one when periodID is empty.
func (s *Service) MemberBreakdown(ctx context.Context, actor Actor, teamID, periodID string) (TeamBreakdown, error) {
	team, err := s.requireTeamAccess(ctx, actor, teamID)
	if err != nil {
		return TeamBreakdown{}, err
	}
	members, err := s.store.ListActiveMembers(ctx, team.ID)
	if err != nil {
		return TeamBreakdown{}, err
	}
	rubrics, err := s.store.ListRubrics(ctx, RubricFilter{OrganizationID: actor.OrganizationID, TeamID: team.ID})
	if err != nil {
		return TeamBreakdown{}, err
	}

	out := TeamBreakdown{TeamID: team.ID, TeamName: team.Name}
	filter := AssessmentFilter{OrganizationID: actor.OrganizationID, TeamID: team.ID}
	if periodID != "" {
		period, err := s.store.GetPeriod(ctx, actor.OrganizationID, periodID)
		if err != nil {
			return TeamBreakdown{}, err
		}
		filter.PeriodID = period.ID
		due := period.DueDate
		out.PeriodID, out.PeriodLabel, out.DueDate = period.ID, period.Label, &due
	}
	rows, err := s.store.ListAssessments(ctx, filter)
	if err != nil {
		return TeamBreakdown{}, err
	}
	if periodID == "" {
		if latest, ok := latestPeriod(rows); ok {
			due := latest.due
			out.PeriodID, out.PeriodLabel, out.DueDate = latest.id, latest.label, &due
			rows = rowsForPeriod(rows, latest.id)
		}
	}
	out.Members = buildMemberBreakdown(members, len(rubrics), rows)
	return out, nil
}

// EmployeePerformance lists every period the user was assessed in, newest due
// date first, with overall and per-category scores.
func (s *Service) EmployeePerformance(ctx context.Context, actor Actor, userID string) ([]EmployeePeriodScore, error) {
	if err := s.requireUserAccess(ctx, actor, userID); err != nil {
		return nil, err
	}
	rows, err := s.store.ListAssessments(ctx, AssessmentFilter{OrganizationID: actor.OrganizationID, UserID: userID})
	if err != nil {
		return nil, err
	}
	return buildEmployeePerformance(rows), nil
}

func (s *Service) OpenAssessments(ctx context.Context, actor Actor, managerID string) ([]OpenSummary, error) {
	if managerID == "" {
		managerID = actor.UserID
	}
	if !actor.Admin && managerID != actor.UserID {
		return nil, ErrNotTeamManager
	}
	rows, err := s.store.ListAssessments(ctx, AssessmentFilter{OrganizationID: actor.OrganizationID, ManagerID: managerID})
	if err != nil {
		return nil, err
	}
	open := buildOpenSummaries(rows)
	if open == nil {
		open = []OpenSummary{}
	}
	return open, nil
}

// OpenAssessmentsForUser returns the user's unscored records of one period,
// grouped by rubric category, optionally narrowed to a single category.
func (s *Service) OpenAssessmentsForUser(ctx context.Context, actor Actor, userID, periodID, category string) ([]OpenCategory, error) {
	if err := s.requireUserAccess(ctx, actor, userID); err != nil {
		return nil, err
	}
	if _, err := s.store.GetPeriod(ctx, actor.OrganizationID, periodID); err != nil {
		return nil, err
	}
	rows, err := s.store.ListAssessments(ctx, AssessmentFilter{
		OrganizationID: actor.OrganizationID,
		UserID:         userID,
		PeriodID:       periodID,
	})
	if err != nil {
		return nil, err
	}
	return buildOpenCategories(rows, category), nil
}
