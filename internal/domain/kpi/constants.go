package kpi

const (
	StatusUnreviewed ApprovalStatus = ""
	StatusPending    ApprovalStatus = "pending"
	StatusApproved   ApprovalStatus = "approve"
	StatusRejected   ApprovalStatus = "reject"
)

const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

const (
	ScoringManager = "manager"
	ScoringSelf    = "self"
)

// Scores and weights are stored as NUMERIC with two decimals. Scores are
// accepted in [MinScore, MaxScore]; zero is reserved for "not assessed".
const (
	MinScore  = 0.01
	MaxScore  = 100.0
	MinWeight = 0.01
	MaxWeight = 99999999.99
)

const (
	RubricSummaryNoData   = "No Data"
	RubricSummaryApproved = "Approved"
	RubricSummaryOngoing  = "Ongoing"
)

const MemberStatusActive = "active"
