package util

import "errors"

var (
	ErrGenerationFailed        = errors.New("generation failed")
	ErrPersistenceFailed       = errors.New("persistence failed")
	ErrNotFound                = errors.New("not found")
	ErrDeletionFailed          = errors.New("deletion failed")
	ErrMalformedSubmission     = errors.New("malformed submission")
	ErrMalformedProviderOutput = errors.New("malformed provider output")
	ErrProviderUnavailable     = errors.New("content provider unavailable")
	ErrInvalidInput            = errors.New("invalid input")
	ErrManualQuestionsLocked   = errors.New("auto-graded section not submitted yet")
	ErrPermissionDenied        = errors.New("permission denied")
	ErrLockTimeout             = errors.New("timed out waiting for student lock")
)
