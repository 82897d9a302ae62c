package org

import (
	"context"
	"strings"

	"hrkpi/internal/domain/apperr"
	"hrkpi/internal/domain/auth"
)

type Service struct {
	store StoreAPI
}

func NewService(store StoreAPI) *Service {
	return &Service{store: store}
}

func (s *Service) GetOrganization(ctx context.Context, orgID string) (Organization, error) {
	return s.store.GetOrganization(ctx, orgID)
}

func (s *Service) UpdateOrganization(ctx context.Context, orgID, name, description string) (Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Organization{}, apperr.Validation("name", "is required")
	}
	return s.store.UpdateOrganization(ctx, orgID, name, strings.TrimSpace(description))
}

// ListUsers returns one page of users and the total matching the filter.
func (s *Service) ListUsers(ctx context.Context, orgID string, filter UserFilter) ([]User, int, error) {
	filter.Role = strings.ToLower(strings.TrimSpace(filter.Role))
	filter.Search = strings.TrimSpace(filter.Search)
	users, err := s.store.ListUsers(ctx, orgID, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountUsers(ctx, orgID, filter)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (s *Service) UpdateUserRole(ctx context.Context, orgID, userID, role string) (User, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if !auth.ValidRole(role) {
		return User{}, auth.ErrInvalidRole
	}
	if role == auth.RoleOwner {
		return User{}, ErrOwnerAssignment
	}
	current, err := s.store.GetUser(ctx, orgID, userID)
	if err != nil {
		return User{}, err
	}
	if current.Role == auth.RoleOwner {
		return User{}, ErrOwnerRoleChange
	}
	return s.store.UpdateUserRole(ctx, orgID, userID, role)
}

func (s *Service) ListTeams(ctx context.Context, orgID string) ([]Team, error) {
	return s.store.ListTeams(ctx, orgID)
}

func (s *Service) GetTeam(ctx context.Context, orgID, teamID string) (Team, error) {
	return s.store.GetTeam(ctx, orgID, teamID)
}

func (s *Service) validateTeam(ctx context.Context, orgID string, in TeamInput) (TeamInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.ManagerID = strings.TrimSpace(in.ManagerID)
	if in.Name == "" {
		return in, apperr.Validation("name", "is required")
	}
	if in.ManagerID == "" {
		return in, apperr.Validation("managerId", "is required")
	}
	manager, err := s.store.GetUser(ctx, orgID, in.ManagerID)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return in, ErrInvalidManager
		}
		return in, err
	}
	if manager.Role == auth.RoleEmployee {
		return in, ErrInvalidManager
	}
	return in, nil
}

func (s *Service) CreateTeam(ctx context.Context, orgID string, in TeamInput) (Team, error) {
	in, err := s.validateTeam(ctx, orgID, in)
	if err != nil {
		return Team{}, err
	}
	return s.store.CreateTeam(ctx, orgID, in)
}

func (s *Service) UpdateTeam(ctx context.Context, orgID, teamID string, in TeamInput) (Team, error) {
	if _, err := s.store.GetTeam(ctx, orgID, teamID); err != nil {
		return Team{}, err
	}
	in, err := s.validateTeam(ctx, orgID, in)
	if err != nil {
		return Team{}, err
	}
	return s.store.UpdateTeam(ctx, orgID, teamID, in)
}

// DeleteTeam refuses teams that still own rubrics; their assessment history
// would otherwise lose its team.
func (s *Service) DeleteTeam(ctx context.Context, orgID, teamID string) error {
	team, err := s.store.GetTeam(ctx, orgID, teamID)
	if err != nil {
		return err
	}
	count, err := s.store.CountTeamRubrics(ctx, team.ID)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrTeamHasRubrics
	}
	return s.store.DeleteTeam(ctx, orgID, team.ID)
}

func (s *Service) ListMembers(ctx context.Context, orgID, teamID string) ([]Member, error) {
	team, err := s.store.GetTeam(ctx, orgID, teamID)
	if err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, team.ID)
}

func (s *Service) AddMember(ctx context.Context, orgID, teamID, userID string) (Member, error) {
	team, err := s.store.GetTeam(ctx, orgID, teamID)
	if err != nil {
		return Member{}, err
	}
	user, err := s.store.GetUser(ctx, orgID, strings.TrimSpace(userID))
	if err != nil {
		return Member{}, err
	}
	return s.store.AddMember(ctx, team.ID, user.ID)
}

func (s *Service) SetMemberStatus(ctx context.Context, orgID, teamID, userID, status string) (Member, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status != MemberActive && status != MemberInactive {
		return Member{}, ErrInvalidMemberStatus
	}
	team, err := s.store.GetTeam(ctx, orgID, teamID)
	if err != nil {
		return Member{}, err
	}
	return s.store.SetMemberStatus(ctx, team.ID, userID, status)
}
