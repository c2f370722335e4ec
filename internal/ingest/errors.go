package ingest

import (
	"errors"
	"strings"
)

var (
	ErrValidation        = errors.New("invalid structured record")
	ErrUserNotFound      = errors.New("user not found")
	ErrCandidateNotFound = errors.New("candidate not found")
	ErrRecruiterNotFound = errors.New("recruiter not found")
)

// ValidationError lists the record fields that are missing or malformed.
type ValidationError struct {
	Fields []string
	Err    error
}

func (e *ValidationError) Error() string {
	msg := ErrValidation.Error()
	if len(e.Fields) > 0 {
		msg += ": " + strings.Join(e.Fields, ", ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
