package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a specific error type for insight pipeline operations.
type ErrorCode string

const (
	// ErrCodeProviderFailure indicates an embedding or LLM provider failure
	// (network, auth, quota, or a malformed provider response).
	ErrCodeProviderFailure ErrorCode = "PROVIDER_FAILURE"
	// ErrCodeInvalidInput indicates input that was rejected before any
	// provider call, such as text that is empty after normalization.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeDimensionMismatch indicates vectors of differing length reached
	// the similarity matcher. This is a store invariant violation.
	ErrCodeDimensionMismatch ErrorCode = "DIMENSION_MISMATCH"
	// ErrCodePlanParse indicates the planner model returned output that failed
	// schema validation. Always recovered locally with the fallback plan.
	ErrCodePlanParse ErrorCode = "PLAN_PARSE"
	// ErrCodeTimeout indicates a provider call exceeded its deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeStoreFailure indicates a record store read or write failure.
	ErrCodeStoreFailure ErrorCode = "STORE_FAILURE"
)

// InsightError represents a structured error for pipeline operations.
type InsightError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *InsightError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *InsightError) Unwrap() error {
	return e.Cause
}

// GetCode returns the error code.
func (e *InsightError) GetCode() ErrorCode {
	return e.Code
}

// Convenience constructors for common error types.

// ProviderFailure creates a provider failure error.
func ProviderFailure(msg string, cause error) *InsightError {
	return &InsightError{Code: ErrCodeProviderFailure, Message: msg, Cause: cause}
}

// InvalidInput creates an invalid input error.
func InvalidInput(msg string) *InsightError {
	return &InsightError{Code: ErrCodeInvalidInput, Message: msg}
}

// DimensionMismatch creates a dimension mismatch error.
func DimensionMismatch(wantDim, gotDim int) *InsightError {
	return &InsightError{
		Code:    ErrCodeDimensionMismatch,
		Message: fmt.Sprintf("vector dimension mismatch: %d vs %d", wantDim, gotDim),
	}
}

// PlanParse creates a plan parse error.
func PlanParse(msg string, cause error) *InsightError {
	return &InsightError{Code: ErrCodePlanParse, Message: msg, Cause: cause}
}

// Timeout creates a timeout error.
func Timeout(msg string, cause error) *InsightError {
	return &InsightError{Code: ErrCodeTimeout, Message: msg, Cause: cause}
}

// StoreFailure creates a store failure error.
func StoreFailure(msg string, cause error) *InsightError {
	return &InsightError{Code: ErrCodeStoreFailure, Message: msg, Cause: cause}
}

// Wrap wraps an existing error with a code and message.
func Wrap(cause error, code ErrorCode, msg string) *InsightError {
	return &InsightError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error (or any error in its chain) carries the code.
func IsCode(err error, code ErrorCode) bool {
	var insightErr *InsightError
	if errors.As(err, &insightErr) {
		return insightErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not an InsightError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	var insightErr *InsightError
	if errors.As(err, &insightErr) {
		return insightErr.Code
	}
	return defaultCode
}
