package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// Reason narrows an error code down to the business rule that was violated
type Reason string

// AppError represents an application error
type AppError struct {
	Code    ErrorCode              `json:"code"`
	Reason  Reason                 `json:"reason,omitempty"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error code to an HTTP status
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrBadRequest:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrInvalidState:
		return http.StatusUnprocessableEntity
	case ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (e *AppError) WithReason(reason Reason) *AppError {
	e.Reason = reason
	return e
}

// WithDetail attaches a key/value pair the caller can act on
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrInvalidState
	ErrConflict
)

// Business rule reasons
const (
	ReasonPastDateTime      Reason = "PAST_DATE_TIME"
	ReasonNotScheduled      Reason = "NOT_SCHEDULED"
	ReasonAlreadyCompleted  Reason = "ALREADY_COMPLETED"
	ReasonAlreadyCancelled  Reason = "ALREADY_CANCELLED"
	ReasonSchedulingOverlap Reason = "SCHEDULING_OVERLAP"
	ReasonScheduleLocked    Reason = "SCHEDULE_LOCKED"
	ReasonWrongRole         Reason = "WRONG_ROLE"
)

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func NewInvalidState(reason Reason, message string) *AppError {
	return &AppError{
		Code:    ErrInvalidState,
		Reason:  reason,
		Message: message,
	}
}

func NewConflict(reason Reason, message string, err error) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Reason:  reason,
		Message: message,
		Err:     err,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or ErrInternal
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// ReasonOf returns the reason of the first AppError in err's chain
func ReasonOf(err error) Reason {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Reason
	}
	return ""
}

// Is reports whether err carries the given code
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}
