package core

import (
	"errors"
	"fmt"
)

// ErrorCode classifies failures so callers can pick a recovery path.
type ErrorCode string

const (
	CodeAuth             ErrorCode = "AUTH_FAILURE"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeNetwork          ErrorCode = "NETWORK_FAILURE"
	CodeImageDecode      ErrorCode = "IMAGE_DECODE_FAILURE"
	CodeBackendMissing   ErrorCode = "BACKEND_UNAVAILABLE"
	CodeBackendExecution ErrorCode = "BACKEND_EXECUTION_FAILURE"
	CodeStore            ErrorCode = "STORE_FAILURE"
)

// ErrNothingToCompile is returned when the page store holds no pages.
var ErrNothingToCompile = errors.New("nothing to compile: page store is empty")

// Error is a classified failure. Page is zero when the failure is not tied
// to a single page.
type Error struct {
	Code  ErrorCode
	Op    string
	Page  int
	Cause error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Page > 0 {
		msg += fmt.Sprintf(" (page %d)", e.Page)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds a classified error.
func NewError(code ErrorCode, op string, page int, cause error) *Error {
	return &Error{Code: code, Op: op, Page: page, Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
