package task

import "hrkpi/internal/domain/apperr"

var (
	ErrTaskNotFound      = apperr.NotFound("task not found")
	ErrTeamNotFound      = apperr.NotFound("team not found")
	ErrFileNotFound      = apperr.NotFound("task file not found")
	ErrInvalidTransition = apperr.Conflict("task status does not allow this action")
	ErrNotEditable       = apperr.Conflict("task can only be changed before it is started")
	ErrNotCreator        = apperr.Forbidden("only the task creator can do this")
	ErrNotAssignee       = apperr.Forbidden("task is assigned to another user")
	ErrNotTeamManager    = apperr.Forbidden("only the team manager can do this")
	ErrNotTeamMember     = apperr.Validation("assigneeId", "must be an active member of the team")
	ErrInvalidKind       = apperr.Validation("kind", "must be personal or team")
	ErrEmptyReply        = apperr.Validation("message", "is required")
	ErrFileTooLarge      = apperr.Validation("file", "exceeds the upload limit")
)
