package kpi

import (
	"context"
)

type RubricStore interface {
	TeamInOrganization(ctx context.Context, orgID, teamID string) (TeamRef, error)
	CreateRubric(ctx context.Context, createdBy string, in RubricInput) (Rubric, error)
	GetRubric(ctx context.Context, orgID, rubricID string) (Rubric, error)
	UpdateRubric(ctx context.Context, orgID, rubricID string, in RubricInput, status ApprovalStatus) (Rubric, error)
	SetRubricReview(ctx context.Context, orgID, rubricID string, status ApprovalStatus, feedback string) (Rubric, error)
	DeleteRubric(ctx context.Context, orgID, rubricID string) error
	CountRubricRecords(ctx context.Context, rubricID string) (int, error)
	ListRubrics(ctx context.Context, filter RubricFilter) ([]Rubric, error)
}

type PeriodStore interface {
	PeriodLabelExists(ctx context.Context, orgID, label string) (bool, error)
	InsertPeriod(ctx context.Context, period Period) (Period, error)
	GetPeriod(ctx context.Context, orgID, periodID string) (Period, error)
	ListPeriods(ctx context.Context, orgID string) ([]Period, error)
}

type AssessmentStore interface {
	ListSnapshotPairs(ctx context.Context, orgID string) ([]SnapshotPair, error)
	InsertRecords(ctx context.Context, periodID string, pairs []SnapshotPair) ([]Record, error)
	GetRecordContext(ctx context.Context, recordID string) (RecordContext, error)
	UpdateScore(ctx context.Context, recordID string, update ScoreUpdate) (Record, error)
	UpdateManagerComment(ctx context.Context, recordID, comment string) (Record, error)
	ListAssessments(ctx context.Context, filter AssessmentFilter) ([]AssessmentRow, error)
}

type DirectoryStore interface {
	ListTeams(ctx context.Context, filter TeamFilter) ([]TeamRef, error)
	ListActiveMembers(ctx context.Context, teamID string) ([]MemberRef, error)
	ManagesUser(ctx context.Context, orgID, managerID, userID string) (bool, error)
}

type StoreAPI interface {
	RubricStore
	PeriodStore
	AssessmentStore
	DirectoryStore
	// WithTx runs fn against a store bound to one transaction; the
	// transaction commits only when fn returns nil.
	WithTx(ctx context.Context, fn func(StoreAPI) error) error
}
