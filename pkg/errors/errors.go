package errors

import (
	"errors"
	"fmt"
)

// ErrorCode classifies an AppError for HTTP-status mapping and caller logic.
type ErrorCode string

const (
	CodeInvalidInput   ErrorCode = "INVALID_INPUT"
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeAlreadyExists  ErrorCode = "ALREADY_EXISTS"
	CodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	CodeForbidden      ErrorCode = "FORBIDDEN"
	CodeSafety         ErrorCode = "SAFETY_VIOLATION"
	CodeConflict       ErrorCode = "CONFLICT"
	CodeRateLimited    ErrorCode = "RATE_LIMITED"
	CodeTimeout        ErrorCode = "TIMEOUT"
	CodeUpstream       ErrorCode = "UPSTREAM_ERROR"
	CodeInternal       ErrorCode = "INTERNAL_ERROR"
	CodeServiceUnavail ErrorCode = "SERVICE_UNAVAILABLE"
)

// AppError is the error type surfaced across package boundaries in the core.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewInvalidInputError(message string) *AppError {
	return &AppError{Code: CodeInvalidInput, Message: message}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Code: CodeNotFound, Message: message}
}

func NewAlreadyExistsError(message string) *AppError {
	return &AppError{Code: CodeAlreadyExists, Message: message}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{Code: CodeUnauthorized, Message: message}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{Code: CodeForbidden, Message: message}
}

func NewSafetyError(message string) *AppError {
	return &AppError{Code: CodeSafety, Message: message}
}

func NewConflictError(message string) *AppError {
	return &AppError{Code: CodeConflict, Message: message}
}

func NewRateLimitedError(message string) *AppError {
	return &AppError{Code: CodeRateLimited, Message: message}
}

func NewTimeoutError(message string) *AppError {
	return &AppError{Code: CodeTimeout, Message: message}
}

func NewUpstreamError(message string, cause error) *AppError {
	return &AppError{Code: CodeUpstream, Message: message, Err: cause}
}

func NewInternalError(message string) *AppError {
	return &AppError{Code: CodeInternal, Message: message}
}

func NewInternalErrorWithCause(message string, cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Err: cause}
}

func codeOf(err error) (ErrorCode, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code, true
	}
	return "", false
}

func IsNotFound(err error) bool {
	c, ok := codeOf(err)
	return ok && c == CodeNotFound
}

func IsInvalidInput(err error) bool {
	c, ok := codeOf(err)
	return ok && c == CodeInvalidInput
}

func IsConflict(err error) bool {
	c, ok := codeOf(err)
	return ok && c == CodeConflict
}

func IsForbidden(err error) bool {
	c, ok := codeOf(err)
	return ok && c == CodeForbidden
}

func IsUnauthorized(err error) bool {
	c, ok := codeOf(err)
	return ok && c == CodeUnauthorized
}

func IsTimeout(err error) bool {
	c, ok := codeOf(err)
	return ok && c == CodeTimeout
}

func IsRateLimited(err error) bool {
	c, ok := codeOf(err)
	return ok && c == CodeRateLimited
}

func IsSafety(err error) bool {
	c, ok := codeOf(err)
	return ok && c == CodeSafety
}

// HTTPStatus maps an AppError to the HTTP status class an external
// transport should use. The core never imports net/http;
// this is a pure function a transport can call.
func HTTPStatus(err error) int {
	if err == nil {
		return 200
	}
	c, ok := codeOf(err)
	if !ok {
		return 500
	}
	switch c {
	case CodeInvalidInput, CodeSafety:
		return 400
	case CodeUnauthorized:
		return 401
	case CodeForbidden:
		return 403
	case CodeConflict:
		return 409
	case CodeRateLimited:
		return 429
	case CodeTimeout:
		return 504
	default:
		return 500
	}
}
