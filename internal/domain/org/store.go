package org

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"hrkpi/internal/domain/apperr"
	"hrkpi/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) GetOrganization(ctx context.Context, orgID string) (Organization, error) {
	var o Organization
	err := s.DB.QueryRow(ctx, `
    SELECT id, name, description, COALESCE(owner_id::text, ''), created_at, updated_at
    FROM organizations
    WHERE id = $1
  `, orgID).Scan(&o.ID, &o.Name, &o.Description, &o.OwnerID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Organization{}, apperr.FromDB(err, ErrOrganizationNotFound.Message)
	}
	return o, nil
}

func (s *Store) UpdateOrganization(ctx context.Context, orgID, name, description string) (Organization, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE organizations SET name = $1, description = $2, updated_at = now() WHERE id = $3
  `, name, description, orgID)
	if err != nil {
		return Organization{}, err
	}
	if tag.RowsAffected() == 0 {
		return Organization{}, ErrOrganizationNotFound
	}
	return s.GetOrganization(ctx, orgID)
}

const userColumns = `id, name, email, organization_role, status, last_login, created_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Status, &u.LastLogin, &u.CreatedAt)
	return u, err
}

func userWhere(orgID string, filter UserFilter) (string, []any) {
	where := " WHERE organization_id = $1"
	args := []any{orgID}
	if filter.Role != "" {
		args = append(args, filter.Role)
		where += fmt.Sprintf(" AND organization_role = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where += fmt.Sprintf(" AND (name ILIKE $%d OR email ILIKE $%d)", len(args), len(args))
	}
	return where, args
}

func (s *Store) ListUsers(ctx context.Context, orgID string, filter UserFilter) ([]User, error) {
	where, args := userWhere(orgID, filter)
	query := "SELECT " + userColumns + " FROM users" + where + " ORDER BY name"
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) CountUsers(ctx context.Context, orgID string, filter UserFilter) (int, error) {
	where, args := userWhere(orgID, filter)
	var count int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM users"+where, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) GetUser(ctx context.Context, orgID, userID string) (User, error) {
	u, err := scanUser(s.DB.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE organization_id = $1 AND id = $2", orgID, userID))
	if err != nil {
		return User{}, apperr.FromDB(err, ErrUserNotFound.Message)
	}
	return u, nil
}

func (s *Store) UpdateUserRole(ctx context.Context, orgID, userID, role string) (User, error) {
	u, err := scanUser(s.DB.QueryRow(ctx, `
    UPDATE users SET organization_role = $1
    WHERE organization_id = $2 AND id = $3
    RETURNING `+userColumns, role, orgID, userID))
	if err != nil {
		return User{}, apperr.FromDB(err, ErrUserNotFound.Message)
	}
	return u, nil
}

const teamColumns = `
    t.id, t.organization_id, t.name, t.description, t.manager_id, COALESCE(u.name, ''),
    (SELECT COUNT(1) FROM team_members tm WHERE tm.team_id = t.id AND tm.status = 'active'),
    t.created_at, t.updated_at
  FROM teams t
  LEFT JOIN users u ON u.id = t.manager_id`

func scanTeam(row pgx.Row) (Team, error) {
	var t Team
	err := row.Scan(&t.ID, &t.OrganizationID, &t.Name, &t.Description, &t.ManagerID, &t.ManagerName,
		&t.ActiveMembers, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (s *Store) ListTeams(ctx context.Context, orgID string) ([]Team, error) {
	rows, err := s.DB.Query(ctx, "SELECT"+teamColumns+" WHERE t.organization_id = $1 ORDER BY t.name", orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) GetTeam(ctx context.Context, orgID, teamID string) (Team, error) {
	t, err := scanTeam(s.DB.QueryRow(ctx, "SELECT"+teamColumns+" WHERE t.organization_id = $1 AND t.id = $2", orgID, teamID))
	if err != nil {
		return Team{}, apperr.FromDB(err, ErrTeamNotFound.Message)
	}
	return t, nil
}

func (s *Store) CreateTeam(ctx context.Context, orgID string, in TeamInput) (Team, error) {
	var id string
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO teams (organization_id, name, description, manager_id)
    VALUES ($1, $2, $3, $4)
    RETURNING id
  `, orgID, in.Name, in.Description, in.ManagerID).Scan(&id); err != nil {
		return Team{}, apperr.FromDB(err, ErrTeamNotFound.Message)
	}
	return s.GetTeam(ctx, orgID, id)
}

func (s *Store) UpdateTeam(ctx context.Context, orgID, teamID string, in TeamInput) (Team, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE teams SET name = $1, description = $2, manager_id = $3, updated_at = now()
    WHERE organization_id = $4 AND id = $5
  `, in.Name, in.Description, in.ManagerID, orgID, teamID)
	if err != nil {
		return Team{}, apperr.FromDB(err, ErrTeamNotFound.Message)
	}
	if tag.RowsAffected() == 0 {
		return Team{}, ErrTeamNotFound
	}
	return s.GetTeam(ctx, orgID, teamID)
}

func (s *Store) DeleteTeam(ctx context.Context, orgID, teamID string) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM teams WHERE organization_id = $1 AND id = $2", orgID, teamID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTeamNotFound
	}
	return nil
}

func (s *Store) CountTeamRubrics(ctx context.Context, teamID string) (int, error) {
	var count int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM assessment_rubrics WHERE team_id = $1", teamID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

const memberColumns = `
    tm.team_id, tm.user_id, u.name, u.email, u.organization_role, tm.status, tm.joined_at
  FROM team_members tm
  JOIN users u ON u.id = tm.user_id`

func scanMember(row pgx.Row) (Member, error) {
	var m Member
	err := row.Scan(&m.TeamID, &m.UserID, &m.Name, &m.Email, &m.Role, &m.Status, &m.JoinedAt)
	return m, err
}

func (s *Store) ListMembers(ctx context.Context, teamID string) ([]Member, error) {
	rows, err := s.DB.Query(ctx, "SELECT"+memberColumns+" WHERE tm.team_id = $1 ORDER BY u.name", teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) getMember(ctx context.Context, teamID, userID string) (Member, error) {
	m, err := scanMember(s.DB.QueryRow(ctx, "SELECT"+memberColumns+" WHERE tm.team_id = $1 AND tm.user_id = $2", teamID, userID))
	if err != nil {
		return Member{}, apperr.FromDB(err, ErrMemberNotFound.Message)
	}
	return m, nil
}

func (s *Store) AddMember(ctx context.Context, teamID, userID string) (Member, error) {
	if _, err := s.DB.Exec(ctx, `
    INSERT INTO team_members (team_id, user_id, status) VALUES ($1, $2, 'active')
  `, teamID, userID); err != nil {
		return Member{}, apperr.FromDB(err, ErrMemberNotFound.Message)
	}
	return s.getMember(ctx, teamID, userID)
}

func (s *Store) SetMemberStatus(ctx context.Context, teamID, userID, status string) (Member, error) {
	tag, err := s.DB.Exec(ctx, "UPDATE team_members SET status = $1 WHERE team_id = $2 AND user_id = $3", status, teamID, userID)
	if err != nil {
		return Member{}, err
	}
	if tag.RowsAffected() == 0 {
		return Member{}, ErrMemberNotFound
	}
	return s.getMember(ctx, teamID, userID)
}
