package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a Time Capsule error code.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"   // 400
	ErrValidation      ErrorCode = "VALIDATION_FAILED" // 400
	ErrInvalidSchedule ErrorCode = "INVALID_SCHEDULE"  // 400
	ErrNotFound        ErrorCode = "NOT_FOUND"         // 404
	ErrFileNotFound    ErrorCode = "FILE_NOT_FOUND"    // 404
	ErrNotDue          ErrorCode = "NOT_DUE"           // 409
	ErrConflict        ErrorCode = "CONFLICT"          // 409
	ErrMessageTooLarge ErrorCode = "MESSAGE_TOO_LARGE" // 413
	ErrCancelled       ErrorCode = "CANCELLED"         // 499
	ErrInternal        ErrorCode = "INTERNAL"          // 500
)

// CapsuleError represents a structured error with code, status, and details.
type CapsuleError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *CapsuleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *CapsuleError {
	return &CapsuleError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewValidation creates a 400 error listing the required fields that were left empty.
func NewValidation(missing []string) *CapsuleError {
	return &CapsuleError{
		Code:    ErrValidation,
		Status:  400,
		Message: fmt.Sprintf("please fill in all fields (missing: %s)", strings.Join(missing, ", ")),
		Details: map[string]any{"missing_fields": missing},
	}
}

// NewInvalidSchedule creates a 400 error when the date or time cannot be parsed.
func NewInvalidSchedule(date, clock string, err error) *CapsuleError {
	msg := fmt.Sprintf("invalid schedule %q %q", date, clock)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &CapsuleError{
		Code:    ErrInvalidSchedule,
		Status:  400,
		Message: msg,
		Details: map[string]any{"scheduled_date": date, "scheduled_time": clock},
	}
}

// NewNotFound creates a 404 error for when a capsule cannot be found.
func NewNotFound(id string) *CapsuleError {
	return &CapsuleError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("capsule not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewFileNotFound creates a 404 error for a missing file.
func NewFileNotFound(path string) *CapsuleError {
	return &CapsuleError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewNotDue creates a 409 error when dispatch is attempted before the capsule is due.
func NewNotDue(id string) *CapsuleError {
	return &CapsuleError{
		Code:    ErrNotDue,
		Status:  409,
		Message: fmt.Sprintf("capsule %s is not due yet", id),
		Details: map[string]any{"id": id},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *CapsuleError {
	return &CapsuleError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewMessageTooLarge creates a 413 error when the message exceeds the size limit.
func NewMessageTooLarge(max, actual int) *CapsuleError {
	return &CapsuleError{
		Code:    ErrMessageTooLarge,
		Status:  413,
		Message: fmt.Sprintf("message exceeds maximum size: %d chars (max %d)", actual, max),
		Details: map[string]any{"max_chars": max, "actual_chars": actual},
	}
}

// NewCancelled creates a 499 error when an operation is cancelled by its context.
func NewCancelled(op string) *CapsuleError {
	return &CapsuleError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *CapsuleError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &CapsuleError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if err (or anything it wraps) is a CapsuleError with the given code.
func Is(err error, code ErrorCode) bool {
	var cErr *CapsuleError
	if stderrors.As(err, &cErr) {
		return cErr.Code == code
	}
	return false
}

// As returns err as a *CapsuleError, wrapping unknown errors as INTERNAL.
func As(err error) *CapsuleError {
	var cErr *CapsuleError
	if stderrors.As(err, &cErr) {
		return cErr
	}
	return NewInternal(err)
}
