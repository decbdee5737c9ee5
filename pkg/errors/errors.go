// Package errors provides common domain error types for speech-bubbles.
//
// This package defines sentinel errors for conditions like "not found" or
// "disabled" that are shared by the CLI, the preview server and the render
// pass. Using typed errors enables consistent handling with errors.Is().
//
// Usage:
//
//	import pferrors "github.com/otherjamesbrown/speech-bubbles/pkg/errors"
//
//	// Return a domain error
//	return nil, fmt.Errorf("note %s: %w", path, pferrors.ErrDisabled)
//
//	// Check for domain errors
//	if pferrors.IsDisabled(err) {
//	    // tell the user to tag the note
//	}
package errors

import "errors"

// Domain errors - common sentinel errors for domain conditions.
var (
	// ErrNotFound indicates the requested note or file was not found.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates invalid input or validation failure.
	ErrValidation = errors.New("validation error")

	// ErrDisabled indicates the note is not enabled for bubble rendering.
	ErrDisabled = errors.New("speech bubbles not enabled for note")

	// ErrUnsupportedFormat indicates an unknown file or output format.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrCacheMiss indicates a render cache lookup found nothing.
	ErrCacheMiss = errors.New("cache miss")
)

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsDisabled reports whether any error in err's chain is ErrDisabled.
func IsDisabled(err error) bool {
	return errors.Is(err, ErrDisabled)
}

// IsUnsupportedFormat reports whether any error in err's chain is ErrUnsupportedFormat.
func IsUnsupportedFormat(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat)
}

// IsCacheMiss reports whether any error in err's chain is ErrCacheMiss.
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}
