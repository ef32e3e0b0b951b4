package aggregates

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies why a write or read in the admissions core failed. Transport
// layers map codes, never messages.
type ErrorCode string

const (
	CodeValidation          ErrorCode = "validation"
	CodeNotFound            ErrorCode = "not_found"
	CodeInsufficientBalance ErrorCode = "insufficient_balance"
	CodeConflict            ErrorCode = "conflict"
	CodeInvariantViolation  ErrorCode = "invariant_violation"
	CodePreconditionFailed  ErrorCode = "precondition_failed"
	CodeStaleData           ErrorCode = "stale_data"
	CodeRetryable           ErrorCode = "retryable"
	CodeInternal            ErrorCode = "internal"
)

// Transient codes describe failures that may clear without the caller changing its
// request: a store hiccup, or reference data that could not be refreshed yet.
func (c ErrorCode) Transient() bool {
	return c == CodeRetryable || c == CodeStaleData
}

// Exposed reports whether the error message may be shown to API clients.
func (c ErrorCode) Exposed() bool {
	return c != "" && c != CodeInternal
}

type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
	}
	if e.Message != "" {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Message)
	}
	if b.Len() == 0 {
		return string(e.Code)
	}
	return fmt.Sprintf("%s [%s]", b.String(), e.Code)
}

func (e *Error) Unwrap() error { return e.Cause }

func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Wrap tags err with code, keeping err as the cause. A nil err stays nil.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code && code != ""
}

// IsTransient reports whether err carries a transient code.
func IsTransient(err error) bool { return CodeOf(err).Transient() }

// CodeOf returns the outermost aggregate code on err, or "" when there is none.
func CodeOf(err error) ErrorCode {
	var aggErr *Error
	if !errors.As(err, &aggErr) {
		return ""
	}
	return aggErr.Code
}
