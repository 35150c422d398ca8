package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalid      ErrorCode = "INVALID"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal     ErrorCode = "INTERNAL"
	ErrCodeStorage      ErrorCode = "STORAGE"

	ErrCodeLastLeader           ErrorCode = "LAST_LEADER_CANNOT_BE_REMOVED"
	ErrCodeCannotRemoveSelf     ErrorCode = "CANNOT_REMOVE_SELF"
	ErrCodeNoLeader             ErrorCode = "NO_LEADER_IN_PROJECT"
	ErrCodeInvalidQualification ErrorCode = "INVALID_QUALIFICATION"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// StorageError classifies a persistence failure. Errors that already carry a
// domain classification pass through unchanged.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var dErr *Error
	if errors.As(err, &dErr) {
		return err
	}
	return WrapError(ErrCodeStorage, op, err)
}

// Common domain errors.
var (
	ErrUserNotFound       = NewError(ErrCodeNotFound, "user not found")
	ErrProjectNotFound    = NewError(ErrCodeNotFound, "project not found")
	ErrMembershipNotFound = NewError(ErrCodeNotFound, "member not found in this project")
	ErrUnauthorized       = NewError(ErrCodeUnauthorized, "unauthorized")
	ErrForbidden          = NewError(ErrCodeForbidden, "only project leaders or admins can modify this project")
	ErrInvalidPayload     = NewError(ErrCodeInvalid, "invalid payload")
	ErrEmailTaken         = NewError(ErrCodeConflict, "email already registered")
	ErrIdentityNotCached  = NewError(ErrCodeNotFound, "identity not cached")

	ErrLastLeader           = NewError(ErrCodeLastLeader, "cannot remove the last leader from project")
	ErrCannotRemoveSelf     = NewError(ErrCodeCannotRemoveSelf, "cannot remove yourself from the project")
	ErrNoLeader             = NewError(ErrCodeNoLeader, "at least one leader is required when creating a project")
	ErrInvalidQualification = NewError(ErrCodeInvalidQualification, "cannot approve user to pending status")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// Invalid builds an INVALID error with a formatted message.
func Invalid(format string, args ...any) *Error {
	return NewError(ErrCodeInvalid, fmt.Sprintf(format, args...))
}

// Forbidden builds a FORBIDDEN error with the given message.
func Forbidden(message string) *Error {
	return NewError(ErrCodeForbidden, message)
}
