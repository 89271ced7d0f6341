package engine

import (
	"errors"
	"fmt"
)

// ExecError represents a failure executing one statement.
type ExecError struct {
	// Code identifies the error category.
	Code ExecErrorCode

	// Model is the root model of the failed statement.
	Model string

	// QueryID identifies the statement in logs. Empty for compile errors.
	QueryID string

	// Err is the underlying cause.
	Err error
}

// ExecErrorCode categorizes execution errors.
type ExecErrorCode string

const (
	// ErrCodeCompile indicates the select could not be compiled.
	ErrCodeCompile ExecErrorCode = "COMPILE_FAILED"

	// ErrCodeQuery indicates the database rejected or failed the statement.
	ErrCodeQuery ExecErrorCode = "QUERY_FAILED"

	// ErrCodeDecode indicates a result value could not be decoded.
	ErrCodeDecode ExecErrorCode = "DECODE_FAILED"
)

// Error implements the error interface.
func (e *ExecError) Error() string {
	if e.QueryID != "" {
		return fmt.Sprintf("%s: %s: %v (query=%s)", e.Code, e.Model, e.Err, e.QueryID)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Model, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ExecError) Unwrap() error {
	return e.Err
}

// IsCompileError returns true if the error is a compile failure.
// Uses errors.As to handle wrapped errors.
func IsCompileError(err error) bool {
	return hasCode(err, ErrCodeCompile)
}

// IsQueryError returns true if the error is a database failure.
func IsQueryError(err error) bool {
	return hasCode(err, ErrCodeQuery)
}

// IsDecodeError returns true if the error is a decode failure.
func IsDecodeError(err error) bool {
	return hasCode(err, ErrCodeDecode)
}

func hasCode(err error, code ExecErrorCode) bool {
	var ee *ExecError
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}
