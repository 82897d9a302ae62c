package kpi

import (
	"encoding/json"
	"time"
)

// ApprovalStatus is a rubric's status_approval; the empty value is the
// unreviewed (NULL) state and encodes as JSON null.
type ApprovalStatus string

func (s ApprovalStatus) MarshalJSON() ([]byte, error) {
	if s == StatusUnreviewed {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

// Actor is the authenticated caller as seen by the service. Admin is true for
// the owner and hrd roles.
type Actor struct {
	UserID         string
	OrganizationID string
	Admin          bool
}

type Rubric struct {
	ID             string         `json:"id"`
	TeamID         string         `json:"teamId"`
	TeamName       string         `json:"teamName,omitempty"`
	ManagerID      string         `json:"managerId,omitempty"`
	ManagerName    string         `json:"managerName,omitempty"`
	Category       string         `json:"category"`
	Metric         string         `json:"metric"`
	Description    string         `json:"description"`
	Criteria       string         `json:"criteria"`
	Weight         float64        `json:"weight"`
	ScoringMethod  string         `json:"scoringMethod"`
	DataSource     string         `json:"dataSource"`
	StatusApproval ApprovalStatus `json:"statusApproval"`
	Feedback       string         `json:"feedback"`
	CreatedBy      string         `json:"createdBy,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

type RubricInput struct {
	TeamID        string
	Category      string
	Metric        string
	Description   string
	Criteria      string
	Weight        float64
	ScoringMethod string
	DataSource    string
}

type RubricFilter struct {
	OrganizationID string
	TeamID         string
	PendingOnly    bool
}

type RubricStatusSummary struct {
	TeamID      string `json:"teamId"`
	TeamName    string `json:"teamName"`
	ManagerName string `json:"managerName"`
	Total       int    `json:"total"`
	Approved    int    `json:"approved"`
	Pending     int    `json:"pending"`
	Rejected    int    `json:"rejected"`
	Status      string `json:"status"`
}

type Period struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Label          string    `json:"periodLabel"`
	StartDate      time.Time `json:"startDate"`
	DueDate        time.Time `json:"dueDate"`
	CreatedBy      string    `json:"createdBy,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type PeriodCreation struct {
	Period  Period   `json:"period"`
	Records []Record `json:"records"`
}

type Record struct {
	ID             string     `json:"id"`
	PeriodID       string     `json:"periodId"`
	RubricID       string     `json:"rubricId"`
	UserID         string     `json:"userId"`
	Score          *float64   `json:"score"`
	Justification  string     `json:"justification"`
	ManagerComment string     `json:"managerComment"`
	ScoredBy       string     `json:"scoredBy,omitempty"`
	ScoredAt       *time.Time `json:"scoredAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// SnapshotPair is one (active member, approved rubric) combination selected
// when a period is opened.
type SnapshotPair struct {
	UserID   string
	RubricID string
}

// RecordContext carries what the score mutations need to authorize a change.
type RecordContext struct {
	RecordID       string
	OrganizationID string
	PeriodID       string
	UserID         string
	RubricID       string
	TeamID         string
	ManagerID      string
	ScoringMethod  string
	Score          *float64
}

type ScoreUpdate struct {
	Score          float64
	Justification  *string
	ManagerComment *string
	ScoredBy       string
	ScoredAt       time.Time
}

// AssessmentRow is the flattened record + rubric + period + team + user view
// the aggregations are computed from.
type AssessmentRow struct {
	RecordID       string
	PeriodID       string
	PeriodLabel    string
	StartDate      time.Time
	DueDate        time.Time
	TeamID         string
	TeamName       string
	UserID         string
	UserName       string
	RubricID       string
	Category       string
	Metric         string
	Description    string
	Criteria       string
	DataSource     string
	Weight         float64
	ScoringMethod  string
	Score          *float64
	Justification  string
	ManagerComment string
}

type AssessmentFilter struct {
	OrganizationID string
	ManagerID      string
	TeamID         string
	UserID         string
	PeriodID       string
	DueAfter       *time.Time
}

type TeamRef struct {
	ID             string
	OrganizationID string
	Name           string
	ManagerID      string
	ManagerName    string
	ActiveMembers  int
}

type TeamFilter struct {
	OrganizationID string
	ManagerID      string
}

type MemberRef struct {
	UserID string
	Name   string
}

type TeamScore struct {
	TeamID          string     `json:"teamId"`
	TeamName        string     `json:"teamName"`
	ManagerName     string     `json:"managerName"`
	MemberCount     int        `json:"memberCount"`
	MembersAssessed int        `json:"membersAssessed"`
	PeriodID        string     `json:"periodId,omitempty"`
	PeriodLabel     string     `json:"periodLabel,omitempty"`
	DueDate         *time.Time `json:"dueDate"`
	FinalScore      *float64   `json:"finalScore"`
}

type TeamPeriodScore struct {
	PeriodID        string    `json:"periodId"`
	PeriodLabel     string    `json:"periodLabel"`
	StartDate       time.Time `json:"startDate"`
	DueDate         time.Time `json:"dueDate"`
	MembersAssessed int       `json:"membersAssessed"`
	RecordsTotal    int       `json:"recordsTotal"`
	RecordsScored   int       `json:"recordsScored"`
	FinalScore      *float64  `json:"finalScore"`
}

type TeamProgress struct {
	TeamID         string    `json:"teamId"`
	TeamName       string    `json:"teamName"`
	PeriodID       string    `json:"periodId"`
	PeriodLabel    string    `json:"periodLabel"`
	DueDate        time.Time `json:"dueDate"`
	RecordsTotal   int       `json:"recordsTotal"`
	RecordsScored  int       `json:"recordsScored"`
	CompletionRate float64   `json:"completionRate"`
}

type MemberBreakdown struct {
	UserID            string   `json:"userId"`
	Name              string   `json:"name"`
	RubricsDefined    int      `json:"rubricsDefined"`
	AssessmentsTotal  int      `json:"assessmentsTotal"`
	AssessmentsScored int      `json:"assessmentsScored"`
	FinalScore        *float64 `json:"finalScore"`
}

type TeamBreakdown struct {
	TeamID      string            `json:"teamId"`
	TeamName    string            `json:"teamName"`
	PeriodID    string            `json:"periodId,omitempty"`
	PeriodLabel string            `json:"periodLabel,omitempty"`
	DueDate     *time.Time        `json:"dueDate"`
	Members     []MemberBreakdown `json:"members"`
}

type CategoryScore struct {
	Category   string   `json:"category"`
	Scored     int      `json:"scored"`
	Total      int      `json:"total"`
	FinalScore *float64 `json:"finalScore"`
}

type EmployeePeriodScore struct {
	PeriodID    string          `json:"periodId"`
	PeriodLabel string          `json:"periodLabel"`
	StartDate   time.Time       `json:"startDate"`
	DueDate     time.Time       `json:"dueDate"`
	Scored      int             `json:"scored"`
	Total       int             `json:"total"`
	FinalScore  *float64        `json:"finalScore"`
	Categories  []CategoryScore `json:"categories"`
}

type OpenSummary struct {
	UserID      string    `json:"userId"`
	UserName    string    `json:"userName"`
	TeamID      string    `json:"teamId"`
	TeamName    string    `json:"teamName"`
	PeriodID    string    `json:"periodId"`
	PeriodLabel string    `json:"periodLabel"`
	DueDate     time.Time `json:"dueDate"`
	Rubrics     int       `json:"rubrics"`
	Scored      int       `json:"scored"`
	Pending     int       `json:"pending"`
}

type AssessmentForm struct {
	RecordID      string   `json:"id"`
	RubricID      string   `json:"rubricId"`
	Metric        string   `json:"metric"`
	Description   string   `json:"description"`
	Criteria      string   `json:"criteria"`
	DataSource    string   `json:"dataSource"`
	Weight        float64  `json:"weight"`
	ScoringMethod string   `json:"scoringMethod"`
	Score         *float64 `json:"score"`
	Justification string   `json:"justification"`
}

type OpenCategory struct {
	Category string           `json:"category"`
	Items    []AssessmentForm `json:"items"`
}
