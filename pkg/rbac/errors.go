package rbac

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies domain failures for transport mapping.
type ErrorCode string

const (
	CodeNotFound         ErrorCode = "not_found"
	CodeInvalidParameter ErrorCode = "invalid_parameter"
	CodeForbidden        ErrorCode = "forbidden"
	CodeConflict         ErrorCode = "conflict"
	CodeUpstreamFailure  ErrorCode = "upstream_failure"
)

// Error is a domain error with enough information to render an API response.
type Error struct {
	Code   ErrorCode
	Detail string
	// Status overrides the default code mapping. Only upstream failures
	// set it, to pass the gateway's status through untranslated.
	Status int
	Source string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Detail, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus returns the status the error renders as. Guard rejections
// deliberately surface as 400 rather than 403; callers treat them as
// validation failures on the target resource.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusBadRequest
	case CodeUpstreamFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// NewNotFound builds a not-found error.
func NewNotFound(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Detail: fmt.Sprintf(format, args...)}
}

// NewInvalidParameter builds a validation error.
func NewInvalidParameter(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidParameter, Detail: fmt.Sprintf(format, args...)}
}

// NewForbidden builds a guard rejection.
func NewForbidden(format string, args ...any) *Error {
	return &Error{Code: CodeForbidden, Detail: fmt.Sprintf(format, args...)}
}

// NewConflict builds a uniqueness violation error.
func NewConflict(format string, args ...any) *Error {
	return &Error{Code: CodeConflict, Detail: fmt.Sprintf(format, args...)}
}

// NewUpstream wraps a gateway failure, preserving the upstream status and
// error source so the response passes through unchanged.
func NewUpstream(status int, source, detail string, cause error) *Error {
	return &Error{Code: CodeUpstreamFailure, Detail: detail, Status: status, Source: source, cause: cause}
}

// AsError extracts a domain error from err, if one is present.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// IsNotFound reports whether err is a domain not-found error.
func IsNotFound(err error) bool {
	de, ok := AsError(err)
	return ok && de.Code == CodeNotFound
}
