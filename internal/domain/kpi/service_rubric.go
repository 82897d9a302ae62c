package kpi

import (
	"context"
	"strings"

	"hrkpi/internal/domain/apperr"
)

func normalizeRubricInput(in RubricInput) RubricInput {
	in.TeamID = strings.TrimSpace(in.TeamID)
	in.Category = strings.TrimSpace(in.Category)
	in.Metric = strings.TrimSpace(in.Metric)
	in.Description = strings.TrimSpace(in.Description)
	in.Criteria = strings.TrimSpace(in.Criteria)
	in.ScoringMethod = strings.ToLower(strings.TrimSpace(in.ScoringMethod))
	in.DataSource = strings.TrimSpace(in.DataSource)
	return in
}

func validateRubricInput(in RubricInput) error {
	switch {
	case in.TeamID == "":
		return apperr.Validation("teamId", "is required")
	case in.Category == "":
		return apperr.Validation("category", "is required")
	case in.Metric == "":
		return apperr.Validation("metric", "is required")
	case !inCents(in.Weight, MinWeight, MaxWeight):
		return apperr.Validation("weight", "must be between 0.01 and 99999999.99 with at most 2 decimals")
	case in.ScoringMethod != ScoringManager && in.ScoringMethod != ScoringSelf:
		return apperr.Validation("scoringMethod", "must be manager or self")
	}
	return nil
}

func (s *Service) CreateRubric(ctx context.Context, actor Actor, in RubricInput) (Rubric, error) {
	in = normalizeRubricInput(in)
	if err := validateRubricInput(in); err != nil {
		return Rubric{}, err
	}
	if _, err := s.requireTeamAccess(ctx, actor, in.TeamID); err != nil {
		return Rubric{}, err
	}
	return s.store.CreateRubric(ctx, actor.UserID, in)
}

func (s *Service) GetRubric(ctx context.Context, actor Actor, rubricID string) (Rubric, error) {
	return s.store.GetRubric(ctx, actor.OrganizationID, rubricID)
}

// UpdateRubric edits a rubric that is not approved and sends it back for
// review.
func (s *Service) UpdateRubric(ctx context.Context, actor Actor, rubricID string, in RubricInput) (Rubric, error) {
	current, err := s.store.GetRubric(ctx, actor.OrganizationID, rubricID)
	if err != nil {
		return Rubric{}, err
	}
	in = normalizeRubricInput(in)
	if in.TeamID == "" {
		in.TeamID = current.TeamID
	}
	if in.TeamID != current.TeamID {
		return Rubric{}, apperr.Validation("teamId", "cannot move a rubric to another team")
	}
	if err := validateRubricInput(in); err != nil {
		return Rubric{}, err
	}
	if !actor.Admin && current.ManagerID != actor.UserID {
		return Rubric{}, ErrNotTeamManager
	}
	if current.StatusApproval == StatusApproved {
		return Rubric{}, ErrRubricApproved
	}
	return s.store.UpdateRubric(ctx, actor.OrganizationID, rubricID, in, StatusPending)
}

func (s *Service) DeleteRubric(ctx context.Context, actor Actor, rubricID string) error {
	current, err := s.store.GetRubric(ctx, actor.OrganizationID, rubricID)
	if err != nil {
		return err
	}
	if !actor.Admin && current.ManagerID != actor.UserID {
		return ErrNotTeamManager
	}
	count, err := s.store.CountRubricRecords(ctx, rubricID)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrRubricInUse
	}
	return s.store.DeleteRubric(ctx, actor.OrganizationID, rubricID)
}

// nextReviewStatus is the review transition table: unreviewed or pending
// rubrics take either decision, approved rubrics can only be revoked, and
// rejected rubrics must be edited before another review.
func nextReviewStatus(current ApprovalStatus, decision string) (ApprovalStatus, error) {
	switch decision {
	case DecisionApprove, DecisionReject:
	default:
		return "", apperr.Validation("decision", "must be approve or reject")
	}
	switch current {
	case StatusUnreviewed, StatusPending:
		return ApprovalStatus(decision), nil
	case StatusApproved:
		if decision == DecisionReject {
			return StatusRejected, nil
		}
		return "", ErrAlreadyApproved
	case StatusRejected:
		return "", ErrReviewNotAllowed
	}
	return "", apperr.Conflict("rubric has an unknown approval status")
}

func (s *Service) ReviewRubric(ctx context.Context, actor Actor, rubricID, comment, decision string) (Rubric, error) {
	if !actor.Admin {
		return Rubric{}, ErrAdminOnly
	}
	decision = strings.ToLower(strings.TrimSpace(decision))
	current, err := s.store.GetRubric(ctx, actor.OrganizationID, rubricID)
	if err != nil {
		return Rubric{}, err
	}
	next, err := nextReviewStatus(current.StatusApproval, decision)
	if err != nil {
		return Rubric{}, err
	}
	return s.store.SetRubricReview(ctx, actor.OrganizationID, rubricID, next, strings.TrimSpace(comment))
}

func (s *Service) ListRubricsByTeam(ctx context.Context, actor Actor, teamID string) ([]Rubric, error) {
	if _, err := s.store.TeamInOrganization(ctx, actor.OrganizationID, teamID); err != nil {
		return nil, err
	}
	return s.store.ListRubrics(ctx, RubricFilter{OrganizationID: actor.OrganizationID, TeamID: teamID})
}

func (s *Service) ListRubrics(ctx context.Context, actor Actor) ([]Rubric, error) {
	return s.store.ListRubrics(ctx, RubricFilter{OrganizationID: actor.OrganizationID})
}

func (s *Service) ListRubricsPendingReview(ctx context.Context, actor Actor) ([]Rubric, error) {
	return s.store.ListRubrics(ctx, RubricFilter{OrganizationID: actor.OrganizationID, PendingOnly: true})
}

func (s *Service) TeamRubricStatus(ctx context.Context, actor Actor) ([]RubricStatusSummary, error) {
	teams, err := s.store.ListTeams(ctx, TeamFilter{OrganizationID: actor.OrganizationID})
	if err != nil {
		return nil, err
	}
	rubrics, err := s.store.ListRubrics(ctx, RubricFilter{OrganizationID: actor.OrganizationID})
	if err != nil {
		return nil, err
	}
	return buildRubricStatus(teams, rubrics), nil
}
