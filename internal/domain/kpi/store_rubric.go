package kpi

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"hrkpi/internal/domain/apperr"
)

const rubricColumns = `
    r.id, r.team_id, t.name, t.manager_id, COALESCE(u.name, ''),
    r.category, r.metric, r.description, r.criteria, r.weight, r.scoring_method, r.data_source,
    COALESCE(r.status_approval, ''), r.feedback, COALESCE(r.created_by::text, ''), r.created_at, r.updated_at
  FROM assessment_rubrics r
  JOIN teams t ON t.id = r.team_id
  LEFT JOIN users u ON u.id = t.manager_id`

func scanRubric(row pgx.Row) (Rubric, error) {
	var r Rubric
	var status string
	err := row.Scan(&r.ID, &r.TeamID, &r.TeamName, &r.ManagerID, &r.ManagerName,
		&r.Category, &r.Metric, &r.Description, &r.Criteria, &r.Weight, &r.ScoringMethod, &r.DataSource,
		&status, &r.Feedback, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt)
	r.StatusApproval = ApprovalStatus(status)
	return r, err
}

func (s *Store) TeamInOrganization(ctx context.Context, orgID, teamID string) (TeamRef, error) {
	var team TeamRef
	err := s.DB.QueryRow(ctx, `
    SELECT t.id, t.organization_id, t.name, t.manager_id, COALESCE(u.name, ''),
      (SELECT COUNT(1) FROM team_members tm WHERE tm.team_id = t.id AND tm.status = 'active')
    FROM teams t
    LEFT JOIN users u ON u.id = t.manager_id
    WHERE t.organization_id = $1 AND t.id = $2
  `, orgID, teamID).Scan(&team.ID, &team.OrganizationID, &team.Name, &team.ManagerID, &team.ManagerName, &team.ActiveMembers)
	if err != nil {
		return TeamRef{}, apperr.FromDB(err, ErrTeamNotFound.Message)
	}
	return team, nil
}

func (s *Store) CreateRubric(ctx context.Context, createdBy string, in RubricInput) (Rubric, error) {
	var id string
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO assessment_rubrics (team_id, category, metric, description, criteria, weight, scoring_method, data_source, created_by)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    RETURNING id
  `, in.TeamID, in.Category, in.Metric, in.Description, in.Criteria, in.Weight, in.ScoringMethod, in.DataSource, nullIfEmpty(createdBy)).Scan(&id); err != nil {
		return Rubric{}, apperr.FromDB(err, ErrTeamNotFound.Message)
	}
	return scanRubric(s.DB.QueryRow(ctx, "SELECT"+rubricColumns+" WHERE r.id = $1", id))
}

func (s *Store) GetRubric(ctx context.Context, orgID, rubricID string) (Rubric, error) {
	rubric, err := scanRubric(s.DB.QueryRow(ctx, "SELECT"+rubricColumns+" WHERE t.organization_id = $1 AND r.id = $2", orgID, rubricID))
	if err != nil {
		return Rubric{}, apperr.FromDB(err, ErrRubricNotFound.Message)
	}
	return rubric, nil
}

func (s *Store) UpdateRubric(ctx context.Context, orgID, rubricID string, in RubricInput, status ApprovalStatus) (Rubric, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE assessment_rubrics r
    SET category = $1, metric = $2, description = $3, criteria = $4, weight = $5,
        scoring_method = $6, data_source = $7, status_approval = $8, updated_at = now()
    FROM teams t
    WHERE t.id = r.team_id AND t.organization_id = $9 AND r.id = $10
  `, in.Category, in.Metric, in.Description, in.Criteria, in.Weight, in.ScoringMethod, in.DataSource,
		nullIfEmpty(string(status)), orgID, rubricID)
	if err != nil {
		return Rubric{}, apperr.FromDB(err, ErrRubricNotFound.Message)
	}
	if tag.RowsAffected() == 0 {
		return Rubric{}, ErrRubricNotFound
	}
	return s.GetRubric(ctx, orgID, rubricID)
}

func (s *Store) SetRubricReview(ctx context.Context, orgID, rubricID string, status ApprovalStatus, feedback string) (Rubric, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE assessment_rubrics r
    SET status_approval = $1, feedback = $2, updated_at = now()
    FROM teams t
    WHERE t.id = r.team_id AND t.organization_id = $3 AND r.id = $4
  `, nullIfEmpty(string(status)), feedback, orgID, rubricID)
	if err != nil {
		return Rubric{}, err
	}
	if tag.RowsAffected() == 0 {
		return Rubric{}, ErrRubricNotFound
	}
	return s.GetRubric(ctx, orgID, rubricID)
}

func (s *Store) DeleteRubric(ctx context.Context, orgID, rubricID string) error {
	tag, err := s.DB.Exec(ctx, `
    DELETE FROM assessment_rubrics r
    USING teams t
    WHERE t.id = r.team_id AND t.organization_id = $1 AND r.id = $2
  `, orgID, rubricID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRubricNotFound
	}
	return nil
}

func (s *Store) CountRubricRecords(ctx context.Context, rubricID string) (int, error) {
	var count int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM assessment_records WHERE rubric_id = $1", rubricID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) ListRubrics(ctx context.Context, filter RubricFilter) ([]Rubric, error) {
	query := "SELECT" + rubricColumns + " WHERE t.organization_id = $1"
	args := []any{filter.OrganizationID}
	if filter.TeamID != "" {
		query += fmt.Sprintf(" AND r.team_id = $%d", len(args)+1)
		args = append(args, filter.TeamID)
	}
	if filter.PendingOnly {
		query += " AND (r.status_approval IS NULL OR r.status_approval = 'pending')"
	}
	query += " ORDER BY t.name, r.category, r.metric"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rubric
	for rows.Next() {
		rubric, err := scanRubric(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rubric)
	}
	return out, rows.Err()
}
