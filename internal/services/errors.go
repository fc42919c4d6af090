package services

import "errors"

var (
	// ErrNotFound is returned when no row matches the requested id.
	ErrNotFound = errors.New("not found")
	// ErrValidation wraps every input rejection made by the services.
	ErrValidation = errors.New("validation failed")
	// ErrLLMUnavailable means no language model is configured.
	ErrLLMUnavailable = errors.New("language model not configured")
)
