package kpi

import "hrkpi/internal/domain/apperr"

var (
	ErrRubricNotFound     = apperr.NotFound("rubric not found")
	ErrTeamNotFound       = apperr.NotFound("team not found")
	ErrPeriodNotFound     = apperr.NotFound("assessment period not found")
	ErrRecordNotFound     = apperr.NotFound("assessment not found")
	ErrDuplicatePeriod    = apperr.Conflict("assessment period label already exists")
	ErrRubricApproved     = apperr.Conflict("approved rubrics cannot be changed")
	ErrRubricInUse        = apperr.Conflict("rubric has assessment records")
	ErrReviewNotAllowed   = apperr.Conflict("rubric must be resubmitted before it can be approved")
	ErrAlreadyApproved    = apperr.Conflict("rubric is already approved")
	ErrNotTeamManager     = apperr.Forbidden("only the team manager can do this")
	ErrNotRecordOwner     = apperr.Forbidden("assessment belongs to another user")
	ErrAdminOnly          = apperr.Forbidden("only owner or hrd can do this")
	ErrScoringManagerOnly = apperr.Validation("scoringMethod", "rubric is scored by the manager")
	ErrScoringSelfOnly    = apperr.Validation("scoringMethod", "rubric is self assessed")
	ErrScoreOutOfRange    = apperr.Validation("score", "must be between 0.01 and 100 with at most 2 decimals")
)
