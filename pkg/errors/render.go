package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// ErrorCode represents a classified render error.
type ErrorCode string

const (
	ErrCodeNoteNotFound      ErrorCode = "note_not_found"
	ErrCodeNoteDisabled      ErrorCode = "note_disabled"
	ErrCodeSettingsInvalid   ErrorCode = "settings_invalid"
	ErrCodeUnsupportedFormat ErrorCode = "unsupported_format"
	ErrCodeValidation        ErrorCode = "validation"
	ErrCodeCacheUnavailable  ErrorCode = "cache_unavailable"
	ErrCodeContextCancelled  ErrorCode = "context_cancelled"
	ErrCodeTimeout           ErrorCode = "timeout"
	ErrCodeRenderFailed      ErrorCode = "render_failed"
)

// RenderError is a structured error for failures while loading or rendering a note.
type RenderError struct {
	Code    ErrorCode
	Stage   string
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// ClassifyError inspects an error and returns a *RenderError with the appropriate code.
// Errors matching no known condition are classified as ErrCodeRenderFailed.
func ClassifyError(err error, stage string) *RenderError {
	if err == nil {
		return nil
	}

	re := &RenderError{
		Stage:   stage,
		Message: err.Error(),
		Cause:   err,
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		re.Code = ErrCodeTimeout
		re.Message = "operation timed out"
	case errors.Is(err, context.Canceled):
		re.Code = ErrCodeContextCancelled
		re.Message = "operation cancelled"
	case errors.Is(err, ErrNotFound), errors.Is(err, fs.ErrNotExist):
		re.Code = ErrCodeNoteNotFound
	case errors.Is(err, ErrDisabled):
		re.Code = ErrCodeNoteDisabled
	case errors.Is(err, ErrUnsupportedFormat):
		re.Code = ErrCodeUnsupportedFormat
	case errors.Is(err, ErrValidation):
		re.Code = ErrCodeValidation
	case stage == "settings":
		re.Code = ErrCodeSettingsInvalid
	default:
		lower := strings.ToLower(err.Error())
		if strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host") || strings.Contains(lower, "i/o timeout") {
			re.Code = ErrCodeCacheUnavailable
		} else {
			re.Code = ErrCodeRenderFailed
		}
	}

	return re
}

// CodeOf returns the classified code of err, or "" when err is nil.
func CodeOf(err error) ErrorCode {
	var re *RenderError
	if errors.As(err, &re) {
		return re.Code
	}
	if err == nil {
		return ""
	}
	return ClassifyError(err, "").Code
}

// IsErrorRetryable returns true if the error is likely transient and worth retrying.
func IsErrorRetryable(err error) bool {
	var re *RenderError
	if errors.As(err, &re) {
		return IsRetryable(re.Code)
	}
	return false
}
