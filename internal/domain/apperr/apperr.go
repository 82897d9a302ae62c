// Package apperr carries the error taxonomy shared by the domain services:
// every failure that reaches the HTTP boundary is classified by Kind.
package apperr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindTransaction  Kind = "transaction"
)

const (
	pgUniqueViolation   = "23505"
	pgCheckViolation    = "23514"
	pgNumericOutOfRange = "22003"
	pgInvalidTextFormat = "22P02"
)

type Error struct {
	Kind    Kind
	Message string
	Field   string
	// Code replaces the kind's default response code when set.
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind, and on message when the target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// Coded is an error whose response code is more specific than its kind.
func Coded(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Transaction(message string, err error) *Error {
	return &Error{Kind: KindTransaction, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind, true
	}
	return "", false
}

func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// FromDB classifies driver errors: no rows and malformed ids become NotFound
// with the given message, unique violations become Conflict, and check or
// numeric range failures become Validation. Anything else is returned as is.
func FromDB(err error, notFoundMessage string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &Error{Kind: KindNotFound, Message: notFoundMessage, Err: err}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return &Error{Kind: KindConflict, Message: "duplicate " + constraintSubject(pgErr.ConstraintName), Err: err}
		case pgInvalidTextFormat:
			return &Error{Kind: KindNotFound, Message: notFoundMessage, Err: err}
		case pgCheckViolation, pgNumericOutOfRange:
			return &Error{Kind: KindValidation, Field: pgErr.ColumnName, Message: "value out of range", Err: err}
		}
	}
	return err
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func constraintSubject(constraint string) string {
	switch constraint {
	case "users_email_key":
		return "email"
	case "assessment_periods_organization_id_period_label_key":
		return "period label"
	case "teams_organization_id_name_key":
		return "team name"
	case "team_members_team_id_user_id_key":
		return "team member"
	case "":
		return "record"
	default:
		return constraint
	}
}
