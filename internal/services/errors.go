package services

import "errors"

type ErrorCode string

const (
	ErrorInvalid      ErrorCode = "invalid"
	ErrorForbidden    ErrorCode = "forbidden"
	ErrorNotFound     ErrorCode = "not_found"
	ErrorConflict     ErrorCode = "conflict"
	ErrorUnauthorized ErrorCode = "unauthorized"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
}

func (e *ServiceError) Error() string { return e.Message }

func NewInvalidError(msg string) error   { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewForbiddenError(msg string) error { return &ServiceError{Code: ErrorForbidden, Message: msg} }
func NewNotFoundError(msg string) error  { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewConflictError(msg string) error  { return &ServiceError{Code: ErrorConflict, Message: msg} }
func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsNotFound reports whether err carries the not_found code.
func IsNotFound(err error) bool {
	se, ok := AsServiceError(err)
	return ok && se.Code == ErrorNotFound
}

var (
	ErrTeamNotFound       = NewNotFoundError("team not found")
	ErrUserNotFound       = NewNotFoundError("user not found")
	ErrResultNotFound     = NewNotFoundError("result not found")
	ErrInviteNotFound     = NewNotFoundError("invite not found")
	ErrAssessmentNotFound = NewNotFoundError("assessment not found")
	ErrNoActiveAssessment = NewNotFoundError("no active assessment")
	ErrOwnerRemoval       = NewForbiddenError("the team owner cannot be removed")
	ErrOwnerLeave         = NewForbiddenError("the team owner cannot leave the team")
	ErrInvalidJoinToken   = NewInvalidError("invalid join token")
)
