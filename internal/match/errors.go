package match

import "errors"

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrCandidateNotFound = errors.New("candidate not found")
	ErrInvalidScore      = errors.New("invalid match score")
	ErrJobClosed         = errors.New("job is closed")
	ErrAlreadyApplied    = errors.New("candidate already applied")
	ErrJobOpen           = errors.New("job is still open")
)
