package kpi

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"hrkpi/internal/domain/apperr"
)

const recordReturning = `id, period_id, rubric_id, user_id, score, justification, manager_comment,
    COALESCE(scored_by::text, ''), scored_at, created_at`

func scanRecord(row pgx.Row) (Record, error) {
	var r Record
	err := row.Scan(&r.ID, &r.PeriodID, &r.RubricID, &r.UserID, &r.Score, &r.Justification, &r.ManagerComment,
		&r.ScoredBy, &r.ScoredAt, &r.CreatedAt)
	return r, err
}

// ListSnapshotPairs selects every active member paired with each approved
// rubric of the team they are active in.
func (s *Store) ListSnapshotPairs(ctx context.Context, orgID string) ([]SnapshotPair, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT DISTINCT tm.user_id, r.id
    FROM team_members tm
    JOIN teams t ON t.id = tm.team_id
    JOIN assessment_rubrics r ON r.team_id = tm.team_id
    WHERE t.organization_id = $1
      AND tm.status = $2
      AND r.status_approval = $3
    ORDER BY tm.user_id, r.id
  `, orgID, MemberStatusActive, string(StatusApproved))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotPair
	for rows.Next() {
		var pair SnapshotPair
		if err := rows.Scan(&pair.UserID, &pair.RubricID); err != nil {
			return nil, err
		}
		out = append(out, pair)
	}
	return out, rows.Err()
}

func (s *Store) InsertRecords(ctx context.Context, periodID string, pairs []SnapshotPair) ([]Record, error) {
	if len(pairs) == 0 {
		return []Record{}, nil
	}
	userIDs := make([]string, len(pairs))
	rubricIDs := make([]string, len(pairs))
	for i, pair := range pairs {
		userIDs[i] = pair.UserID
		rubricIDs[i] = pair.RubricID
	}

	rows, err := s.DB.Query(ctx, `
    INSERT INTO assessment_records (period_id, rubric_id, user_id)
    SELECT $1, p.rubric_id, p.user_id
    FROM unnest($2::uuid[], $3::uuid[]) AS p(user_id, rubric_id)
    RETURNING `+recordReturning, periodID, userIDs, rubricIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Record, 0, len(pairs))
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) != len(pairs) {
		return nil, fmt.Errorf("inserted %d assessment records, expected %d", len(out), len(pairs))
	}
	return out, nil
}

func (s *Store) GetRecordContext(ctx context.Context, recordID string) (RecordContext, error) {
	var rc RecordContext
	err := s.DB.QueryRow(ctx, `
    SELECT a.id, t.organization_id, a.period_id, a.user_id, a.rubric_id, r.team_id, t.manager_id, r.scoring_method, a.score
    FROM assessment_records a
    JOIN assessment_rubrics r ON r.id = a.rubric_id
    JOIN teams t ON t.id = r.team_id
    WHERE a.id = $1
  `, recordID).Scan(&rc.RecordID, &rc.OrganizationID, &rc.PeriodID, &rc.UserID, &rc.RubricID, &rc.TeamID, &rc.ManagerID, &rc.ScoringMethod, &rc.Score)
	if err != nil {
		return RecordContext{}, apperr.FromDB(err, ErrRecordNotFound.Message)
	}
	return rc, nil
}

func (s *Store) UpdateScore(ctx context.Context, recordID string, update ScoreUpdate) (Record, error) {
	record, err := scanRecord(s.DB.QueryRow(ctx, `
    UPDATE assessment_records
    SET score = $1,
        justification = COALESCE($2::text, justification),
        manager_comment = COALESCE($3::text, manager_comment),
        scored_by = $4,
        scored_at = $5
    WHERE id = $6
    RETURNING `+recordReturning,
		update.Score, update.Justification, update.ManagerComment, nullIfEmpty(update.ScoredBy), update.ScoredAt, recordID))
	if err != nil {
		return Record{}, apperr.FromDB(err, ErrRecordNotFound.Message)
	}
	return record, nil
}

func (s *Store) UpdateManagerComment(ctx context.Context, recordID, comment string) (Record, error) {
	record, err := scanRecord(s.DB.QueryRow(ctx, `
    UPDATE assessment_records SET manager_comment = $1 WHERE id = $2
    RETURNING `+recordReturning, comment, recordID))
	if err != nil {
		return Record{}, apperr.FromDB(err, ErrRecordNotFound.Message)
	}
	return record, nil
}

func (s *Store) ListAssessments(ctx context.Context, filter AssessmentFilter) ([]AssessmentRow, error) {
	query := `
    SELECT a.id, p.id, p.period_label, p.start_date, p.due_date, t.id, t.name, u.id, u.name,
      r.id, r.category, r.metric, r.description, r.criteria, r.data_source, r.weight, r.scoring_method,
      a.score, a.justification, a.manager_comment
    FROM assessment_records a
    JOIN assessment_periods p ON p.id = a.period_id
    JOIN assessment_rubrics r ON r.id = a.rubric_id
    JOIN teams t ON t.id = r.team_id
    JOIN users u ON u.id = a.user_id
    WHERE p.organization_id = $1
  `
	args := []any{filter.OrganizationID}
	if filter.ManagerID != "" {
		query += fmt.Sprintf(" AND t.manager_id = $%d", len(args)+1)
		args = append(args, filter.ManagerID)
	}
	if filter.TeamID != "" {
		query += fmt.Sprintf(" AND t.id = $%d", len(args)+1)
		args = append(args, filter.TeamID)
	}
	if filter.UserID != "" {
		query += fmt.Sprintf(" AND a.user_id = $%d", len(args)+1)
		args = append(args, filter.UserID)
	}
	if filter.PeriodID != "" {
		query += fmt.Sprintf(" AND p.id = $%d", len(args)+1)
		args = append(args, filter.PeriodID)
	}
	if filter.DueAfter != nil {
		query += fmt.Sprintf(" AND p.due_date > $%d", len(args)+1)
		args = append(args, *filter.DueAfter)
	}
	query += " ORDER BY p.due_date DESC, t.name, u.name, r.category, r.metric"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AssessmentRow
	for rows.Next() {
		var row AssessmentRow
		if err := rows.Scan(&row.RecordID, &row.PeriodID, &row.PeriodLabel, &row.StartDate, &row.DueDate,
			&row.TeamID, &row.TeamName, &row.UserID, &row.UserName,
			&row.RubricID, &row.Category, &row.Metric, &row.Description, &row.Criteria, &row.DataSource, &row.Weight, &row.ScoringMethod,
			&row.Score, &row.Justification, &row.ManagerComment); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
