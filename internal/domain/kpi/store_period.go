package kpi

import (
	"context"

	"github.com/jackc/pgx/v5"

	"hrkpi/internal/domain/apperr"
)

// periodColumns follows the field order of Period so rows map by position.
const periodColumns = `id, organization_id, period_label, start_date, due_date, COALESCE(created_by::text, ''), created_at`

// PeriodLabelExists compares labels case-insensitively.
func (s *Store) PeriodLabelExists(ctx context.Context, orgID, label string) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (
      SELECT 1 FROM assessment_periods
      WHERE organization_id = @org AND lower(period_label) = lower(@label)
    )`, pgx.NamedArgs{"org": orgID, "label": label}).Scan(&exists)
	return exists, err
}

func (s *Store) InsertPeriod(ctx context.Context, period Period) (Period, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO assessment_periods (organization_id, period_label, start_date, due_date, created_by)
    VALUES (@org, @label, @start, @due, @createdBy)
    RETURNING id, created_at
  `, pgx.NamedArgs{
		"org":       period.OrganizationID,
		"label":     period.Label,
		"start":     period.StartDate,
		"due":       period.DueDate,
		"createdBy": nullIfEmpty(period.CreatedBy),
	}).Scan(&period.ID, &period.CreatedAt)
	if err != nil {
		return Period{}, err
	}
	return period, nil
}

func (s *Store) GetPeriod(ctx context.Context, orgID, periodID string) (Period, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+periodColumns+` FROM assessment_periods WHERE organization_id = @org AND id = @id`,
		pgx.NamedArgs{"org": orgID, "id": periodID})
	if err != nil {
		return Period{}, apperr.FromDB(err, ErrPeriodNotFound.Message)
	}
	p, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Period])
	if err != nil {
		return Period{}, apperr.FromDB(err, ErrPeriodNotFound.Message)
	}
	return p, nil
}

// ListPeriods returns the newest due date first.
func (s *Store) ListPeriods(ctx context.Context, orgID string) ([]Period, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+periodColumns+`
    FROM assessment_periods
    WHERE organization_id = @org
    ORDER BY due_date DESC, period_label
  `, pgx.NamedArgs{"org": orgID})
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Period])
}
