package errors

import "net/http"

// ErrorCodeInfo contains metadata about an error code.
type ErrorCodeInfo struct {
	Code            ErrorCode
	Retryable       bool
	HTTPStatus      int
	Description     string
	SuggestedAction string
}

// ErrorCodeRegistry maps error codes to their metadata.
var ErrorCodeRegistry = map[ErrorCode]ErrorCodeInfo{
	ErrCodeNoteNotFound: {
		Code:            ErrCodeNoteNotFound,
		HTTPStatus:      http.StatusNotFound,
		Description:     "Note file does not exist",
		SuggestedAction: "Check the path, or the --root directory when serving",
	},
	ErrCodeNoteDisabled: {
		Code:            ErrCodeNoteDisabled,
		HTTPStatus:      http.StatusForbidden,
		Description:     "Note is not tagged for speech bubbles",
		SuggestedAction: "Add 'transcript' to the note's frontmatter tags, or pass --force",
	},
	ErrCodeSettingsInvalid: {
		Code:            ErrCodeSettingsInvalid,
		HTTPStatus:      http.StatusInternalServerError,
		Description:     "Settings file could not be parsed",
		SuggestedAction: "Inspect it with: speech-bubbles settings show, or recreate with: speech-bubbles settings init --overwrite",
	},
	ErrCodeUnsupportedFormat: {
		Code:            ErrCodeUnsupportedFormat,
		HTTPStatus:      http.StatusUnsupportedMediaType,
		Description:     "Unknown file or output format",
		SuggestedAction: "Use .yaml, .toml or .json settings files and html, terminal, json or yaml output",
	},
	ErrCodeValidation: {
		Code:            ErrCodeValidation,
		HTTPStatus:      http.StatusBadRequest,
		Description:     "Invalid input",
		SuggestedAction: "Run the command with --help to see accepted values",
	},
	ErrCodeCacheUnavailable: {
		Code:            ErrCodeCacheUnavailable,
		Retryable:       true,
		HTTPStatus:      http.StatusServiceUnavailable,
		Description:     "Render cache backend unreachable",
		SuggestedAction: "Check redis_addr in the config, or unset it to use the in-memory cache",
	},
	ErrCodeContextCancelled: {
		Code:            ErrCodeContextCancelled,
		HTTPStatus:      499,
		Description:     "Operation cancelled by user or client",
		SuggestedAction: "Check if cancellation was intentional",
	},
	ErrCodeTimeout: {
		Code:            ErrCodeTimeout,
		Retryable:       true,
		HTTPStatus:      http.StatusGatewayTimeout,
		Description:     "Operation exceeded time limit",
		SuggestedAction: "Retry, or raise the timeout in the config file",
	},
	ErrCodeRenderFailed: {
		Code:            ErrCodeRenderFailed,
		HTTPStatus:      http.StatusInternalServerError,
		Description:     "Rendering failed",
		SuggestedAction: "Re-run with --debug for render pass details",
	},
}

// IsRetryable returns true if the given error code represents a transient, retryable error.
func IsRetryable(code ErrorCode) bool {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Retryable
	}
	return false
}

// GetSuggestedAction returns the suggested action for the given error code.
func GetSuggestedAction(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.SuggestedAction
	}
	return "Re-run with --debug for more details"
}

// GetDescription returns the human-readable description for the given error code.
func GetDescription(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Description
	}
	return "Unknown error"
}

// HTTPStatus returns the HTTP status used when the code is reported by the preview server.
func HTTPStatus(code ErrorCode) int {
	if info, ok := ErrorCodeRegistry[code]; ok && info.HTTPStatus != 0 {
		return info.HTTPStatus
	}
	return http.StatusInternalServerError
}
