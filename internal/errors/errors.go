package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Recap error code.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"   // 400
	ErrNotFound        ErrorCode = "NOT_FOUND"         // 404
	ErrFileNotFound    ErrorCode = "FILE_NOT_FOUND"    // 404
	ErrNoCaptionsFound ErrorCode = "NO_CAPTIONS_FOUND" // 404
	ErrFileTooLarge    ErrorCode = "FILE_TOO_LARGE"    // 413
	ErrQuotaExceeded   ErrorCode = "QUOTA_EXCEEDED"    // 429
	ErrCancelled       ErrorCode = "CANCELLED"         // 499
	ErrInternal        ErrorCode = "INTERNAL"          // 500
	ErrFetchFailed     ErrorCode = "FETCH_FAILED"      // 502
	ErrAIAPI           ErrorCode = "AI_API_ERROR"      // 502
	ErrTimeout         ErrorCode = "TIMEOUT"           // 504
)

// RecapError represents a structured error with code, status, and details.
type RecapError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *RecapError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *RecapError {
	return &RecapError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a summary cannot be found.
func NewNotFound(identifier string) *RecapError {
	return &RecapError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("summary not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a missing import/restore file.
func NewFileNotFound(path string) *RecapError {
	return &RecapError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewNoCaptionsFound creates a 404 error when neither caption strategy produced a source.
func NewNoCaptionsFound(reason string) *RecapError {
	msg := "no transcript available"
	if reason != "" {
		msg = fmt.Sprintf("no transcript available: %s", reason)
	}
	return &RecapError{
		Code:    ErrNoCaptionsFound,
		Status:  404,
		Message: msg,
	}
}

// NewFileTooLarge creates a 413 error when a restore file exceeds the size limit.
func NewFileTooLarge(max, actual int64) *RecapError {
	return &RecapError{
		Code:    ErrFileTooLarge,
		Status:  413,
		Message: fmt.Sprintf("file exceeds maximum size: %d bytes (max %d)", actual, max),
		Details: map[string]any{"max_bytes": max, "actual_bytes": actual},
	}
}

// NewQuotaExceeded creates a 429 error when the daily free quota is used up.
func NewQuotaExceeded(limit int) *RecapError {
	return &RecapError{
		Code:    ErrQuotaExceeded,
		Status:  429,
		Message: fmt.Sprintf("daily limit reached: all %d free summaries used today; upgrade to Pro for unlimited access", limit),
		Details: map[string]any{"limit": limit},
	}
}

// NewCancelled creates a 499 error when an operation is cancelled by the caller.
func NewCancelled(op string) *RecapError {
	return &RecapError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *RecapError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &RecapError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// NewFetchFailed creates a 502 error for a failed caption fetch.
// status is the upstream HTTP status, or 0 when no response was received.
func NewFetchFailed(status int, cause error) *RecapError {
	msg := fmt.Sprintf("caption fetch failed with HTTP %d", status)
	if status == 0 && cause != nil {
		msg = fmt.Sprintf("caption fetch failed: %v", cause)
	}
	return &RecapError{
		Code:    ErrFetchFailed,
		Status:  502,
		Message: msg,
		Details: map[string]any{"status": status},
	}
}

// NewAIAPI creates a 502 error for a failed summarization call.
func NewAIAPI(msg string) *RecapError {
	return &RecapError{
		Code:    ErrAIAPI,
		Status:  502,
		Message: fmt.Sprintf("AI API error: %s", msg),
	}
}

// NewTimeout creates a 504 error when an upstream call exceeds its deadline.
func NewTimeout(op string, after string) *RecapError {
	return &RecapError{
		Code:    ErrTimeout,
		Status:  504,
		Message: fmt.Sprintf("%s timed out after %s", op, after),
		Details: map[string]any{"after": after},
	}
}

// Is checks if an error is a RecapError with the given code.
// Wrapped errors are unwrapped.
func Is(err error, code ErrorCode) bool {
	var rErr *RecapError
	if stderrors.As(err, &rErr) {
		return rErr.Code == code
	}
	return false
}

// As returns the RecapError in err's chain, if any.
func As(err error) (*RecapError, bool) {
	var rErr *RecapError
	if stderrors.As(err, &rErr) {
		return rErr, true
	}
	return nil, false
}
