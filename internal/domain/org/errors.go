package org

import "hrkpi/internal/domain/apperr"

var (
	ErrOrganizationNotFound = apperr.NotFound("organization not found")
	ErrTeamNotFound         = apperr.NotFound("team not found")
	ErrUserNotFound         = apperr.NotFound("user not found")
	ErrMemberNotFound       = apperr.NotFound("team member not found")
	ErrTeamHasRubrics       = apperr.Conflict("team still has rubrics")
	ErrInvalidManager       = apperr.Validation("managerId", "must be a manager, hrd or owner of the organization")
	ErrInvalidMemberStatus  = apperr.Validation("status", "must be active or inactive")
	ErrOwnerRoleChange      = apperr.Forbidden("the owner's role cannot be changed")
	ErrOwnerAssignment      = apperr.Validation("role", "ownership cannot be assigned")
)
