package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		stage string
		want  ErrorCode
	}{
		{"not found sentinel", fmt.Errorf("note: %w", ErrNotFound), "load", ErrCodeNoteNotFound},
		{"missing file", fmt.Errorf("open: %w", fs.ErrNotExist), "load", ErrCodeNoteNotFound},
		{"disabled", fmt.Errorf("meeting.md: %w", ErrDisabled), "render", ErrCodeNoteDisabled},
		{"unsupported format", ErrUnsupportedFormat, "output", ErrCodeUnsupportedFormat},
		{"validation", ErrValidation, "args", ErrCodeValidation},
		{"deadline", context.DeadlineExceeded, "render", ErrCodeTimeout},
		{"cancelled", fmt.Errorf("wrapped: %w", context.Canceled), "render", ErrCodeContextCancelled},
		{"settings stage", errors.New("yaml: line 1: did not find expected node"), "settings", ErrCodeSettingsInvalid},
		{"redis down", errors.New("dial tcp 127.0.0.1:6379: connect: connection refused"), "cache", ErrCodeCacheUnavailable},
		{"anything else", errors.New("boom"), "render", ErrCodeRenderFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re := ClassifyError(tt.err, tt.stage)
			require.NotNil(t, re)
			assert.Equal(t, tt.want, re.Code)
			assert.Equal(t, tt.stage, re.Stage)
			assert.ErrorIs(t, re, tt.err)
		})
	}
}

func TestClassifyError_Nil(t *testing.T) {
	assert.Nil(t, ClassifyError(nil, "render"))
}

func TestRenderError_Error(t *testing.T) {
	re := &RenderError{Code: ErrCodeNoteDisabled, Stage: "render", Message: "not tagged"}
	assert.Equal(t, "note_disabled: render: not tagged", re.Error())

	re.Stage = ""
	assert.Equal(t, "note_disabled: not tagged", re.Error())
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
	assert.Equal(t, ErrCodeNoteDisabled, CodeOf(ErrDisabled))

	wrapped := fmt.Errorf("serve: %w", &RenderError{Code: ErrCodeTimeout, Message: "slow"})
	assert.Equal(t, ErrCodeTimeout, CodeOf(wrapped))
}

func TestIsErrorRetryable(t *testing.T) {
	assert.True(t, IsErrorRetryable(ClassifyError(context.DeadlineExceeded, "render")))
	assert.False(t, IsErrorRetryable(ClassifyError(ErrDisabled, "render")))
	assert.False(t, IsErrorRetryable(errors.New("plain")))
}
