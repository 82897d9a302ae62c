package kpi

import (
	"context"
	"fmt"
)

func (s *Store) ListTeams(ctx context.Context, filter TeamFilter) ([]TeamRef, error) {
	query := `
    SELECT t.id, t.organization_id, t.name, t.manager_id, COALESCE(u.name, ''),
      COUNT(tm.id) FILTER (WHERE tm.status = 'active')
    FROM teams t
    LEFT JOIN users u ON u.id = t.manager_id
    LEFT JOIN team_members tm ON tm.team_id = t.id
    WHERE t.organization_id = $1
  `
	args := []any{filter.OrganizationID}
	if filter.ManagerID != "" {
		query += fmt.Sprintf(" AND t.manager_id = $%d", len(args)+1)
		args = append(args, filter.ManagerID)
	}
	query += " GROUP BY t.id, u.name ORDER BY t.name"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TeamRef
	for rows.Next() {
		var team TeamRef
		if err := rows.Scan(&team.ID, &team.OrganizationID, &team.Name, &team.ManagerID, &team.ManagerName, &team.ActiveMembers); err != nil {
			return nil, err
		}
		out = append(out, team)
	}
	return out, rows.Err()
}

func (s *Store) ListActiveMembers(ctx context.Context, teamID string) ([]MemberRef, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT u.id, u.name
    FROM team_members tm
    JOIN users u ON u.id = tm.user_id
    WHERE tm.team_id = $1 AND tm.status = 'active'
    ORDER BY u.name
  `, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MemberRef
	for rows.Next() {
		var member MemberRef
		if err := rows.Scan(&member.UserID, &member.Name); err != nil {
			return nil, err
		}
		out = append(out, member)
	}
	return out, rows.Err()
}

func (s *Store) ManagesUser(ctx context.Context, orgID, managerID, userID string) (bool, error) {
	var ok bool
	if err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (
      SELECT 1
      FROM team_members tm
      JOIN teams t ON t.id = tm.team_id
      WHERE t.organization_id = $1 AND t.manager_id = $2 AND tm.user_id = $3
    )
  `, orgID, managerID, userID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}
