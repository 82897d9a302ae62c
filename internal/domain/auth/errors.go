package auth

import "hrkpi/internal/domain/apperr"

var (
	ErrInvalidCredentials  = apperr.Unauthorized("invalid credentials")
	ErrInvalidRefreshToken = apperr.Unauthorized("invalid or expired refresh token")
	ErrInvalidResetToken   = apperr.Validation("token", "invalid or expired token")
	ErrSignupDisabled      = apperr.Forbidden("self signup is disabled")
	ErrUserNotFound        = apperr.NotFound("user not found")
	ErrInvalidRole         = apperr.Validation("role", "must be one of owner, hrd, manager, employee")
	ErrWeakPassword        = apperr.Validation("password", "must be at least 8 characters")
	ErrOwnerInvite         = apperr.Validation("role", "owners cannot be invited")

	ErrMFARequired       = apperr.Coded(apperr.KindUnauthorized, "mfa_required", "mfa code required")
	ErrMFAInvalid        = apperr.Coded(apperr.KindUnauthorized, "mfa_invalid", "invalid mfa code")
	ErrMFACodeMismatch   = apperr.Coded(apperr.KindValidation, "mfa_invalid", "invalid mfa code")
	ErrMFAUnavailable    = apperr.Coded(apperr.KindValidation, "mfa_unavailable", "mfa requires an encryption key")
	ErrMFANotSetUp       = apperr.Coded(apperr.KindValidation, "mfa_missing", "mfa setup required")
	ErrMFAAlreadyEnabled = apperr.Coded(apperr.KindConflict, "mfa_enabled", "mfa is already enabled")
)
