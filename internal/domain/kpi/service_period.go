package kpi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hrkpi/internal/domain/apperr"
)

// CreatePeriod opens an assessment period and snapshots one record per active
// member and approved rubric of their team. The period and its records are
// written in one transaction.
func (s *Service) CreatePeriod(ctx context.Context, actor Actor, label string, dueDate, startDate time.Time) (PeriodCreation, error) {
	if !actor.Admin {
		return PeriodCreation{}, ErrAdminOnly
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return PeriodCreation{}, apperr.Validation("periodLabel", "is required")
	}
	if startDate.IsZero() {
		return PeriodCreation{}, apperr.Validation("startDate", "is required")
	}
	if dueDate.IsZero() {
		return PeriodCreation{}, apperr.Validation("dueDate", "is required")
	}
	if !startDate.Before(dueDate) {
		return PeriodCreation{}, apperr.Validation("dueDate", "must be after startDate")
	}

	var out PeriodCreation
	err := s.store.WithTx(ctx, func(tx StoreAPI) error {
		exists, err := tx.PeriodLabelExists(ctx, actor.OrganizationID, label)
		if err != nil {
			return fmt.Errorf("check period label: %w", err)
		}
		if exists {
			return ErrDuplicatePeriod
		}
		period, err := tx.InsertPeriod(ctx, Period{
			OrganizationID: actor.OrganizationID,
			Label:          label,
			StartDate:      startDate,
			DueDate:        dueDate,
			CreatedBy:      actor.UserID,
		})
		if err != nil {
			return fmt.Errorf("insert period: %w", err)
		}
		pairs, err := tx.ListSnapshotPairs(ctx, actor.OrganizationID)
		if err != nil {
			return fmt.Errorf("select snapshot pairs: %w", err)
		}
		records, err := tx.InsertRecords(ctx, period.ID, pairs)
		if err != nil {
			return fmt.Errorf("insert assessment records: %w", err)
		}
		out = PeriodCreation{Period: period, Records: records}
		return nil
	})
	if err != nil {
		if apperr.IsUniqueViolation(err) {
			return PeriodCreation{}, ErrDuplicatePeriod
		}
		if _, ok := apperr.KindOf(err); ok {
			return PeriodCreation{}, err
		}
		return PeriodCreation{}, apperr.Transaction("create assessment period", err)
	}
	return out, nil
}

func (s *Service) GetPeriod(ctx context.Context, actor Actor, periodID string) (Period, error) {
	return s.store.GetPeriod(ctx, actor.OrganizationID, periodID)
}

func (s *Service) ListPeriods(ctx context.Context, actor Actor) ([]Period, error) {
	return s.store.ListPeriods(ctx, actor.OrganizationID)
}
