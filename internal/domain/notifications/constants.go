package notifications

const (
	TypeRubricSubmitted  = "rubric_submitted"
	TypeRubricReviewed   = "rubric_reviewed"
	TypePeriodOpened     = "period_opened"
	TypeAssessmentScored = "assessment_scored"
	TypeTaskAssigned     = "task_assigned"
	TypeTaskReplied      = "task_replied"
	TypeTaskApproved     = "task_approved"
	TypeTaskRevision     = "task_revision"
)
