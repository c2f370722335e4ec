package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned when there is no text to send to the model.
	ErrEmptyInput = errors.New("empty input text")
	// ErrMalformedOutput marks a model reply that is not the expected JSON.
	ErrMalformedOutput = errors.New("malformed model output")
	// ErrExtractionFailed is returned when an extraction cannot produce a record.
	ErrExtractionFailed = errors.New("structured extraction failed")
)

// ExtractionError describes a failed extraction. It matches ErrExtractionFailed
// and unwraps to the last underlying cause.
type ExtractionError struct {
	Template Template
	Attempts int
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s extraction failed after %d attempt(s): %v", e.Template, e.Attempts, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtractionFailed
}
