package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrNotFound indicates a required record was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnsupported indicates a file format or operation is not supported
	ErrUnsupported = errors.New("unsupported")

	// ErrMalformedResponse indicates an AI service response that violates
	// its documented shape; callers treat this as "no actionable result"
	ErrMalformedResponse = errors.New("malformed response")

	// ErrNoClassifier indicates no local classifier is available
	ErrNoClassifier = errors.New("no local classifier loaded")

	// ErrInvalidTransition indicates a disallowed alert status transition
	ErrInvalidTransition = errors.New("invalid status transition")
)
