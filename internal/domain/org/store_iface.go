package org

import "context"

type StoreAPI interface {
	GetOrganization(ctx context.Context, orgID string) (Organization, error)
	UpdateOrganization(ctx context.Context, orgID, name, description string) (Organization, error)

	ListUsers(ctx context.Context, orgID string, filter UserFilter) ([]User, error)
	CountUsers(ctx context.Context, orgID string, filter UserFilter) (int, error)
	GetUser(ctx context.Context, orgID, userID string) (User, error)
	UpdateUserRole(ctx context.Context, orgID, userID, role string) (User, error)

	ListTeams(ctx context.Context, orgID string) ([]Team, error)
	GetTeam(ctx context.Context, orgID, teamID string) (Team, error)
	CreateTeam(ctx context.Context, orgID string, in TeamInput) (Team, error)
	UpdateTeam(ctx context.Context, orgID, teamID string, in TeamInput) (Team, error)
	DeleteTeam(ctx context.Context, orgID, teamID string) error
	CountTeamRubrics(ctx context.Context, teamID string) (int, error)

	ListMembers(ctx context.Context, teamID string) ([]Member, error)
	AddMember(ctx context.Context, teamID, userID string) (Member, error)
	SetMemberStatus(ctx context.Context, teamID, userID, status string) (Member, error)
}
