package models

import "errors"

// Error kinds used across components. Callers classify with errors.Is.
var (
	// ErrDataUnavailable means the dataset file is missing or malformed.
	// This is the only fatal failure: nothing can be served without data.
	ErrDataUnavailable = errors.New("dataset unavailable")

	// ErrInvalidPredicate means the predicate could not be evaluated
	// against the dataset schema. The previous selection stays active.
	ErrInvalidPredicate = errors.New("invalid predicate")

	// ErrNoSelection means a chat turn or export was requested before
	// any predicate produced a selection.
	ErrNoSelection = errors.New("no active selection")

	// ErrNotConfigured means no assistant API key is configured. Returned
	// before any network I/O is attempted.
	ErrNotConfigured = errors.New("assistant API key not configured")

	// ErrGatewayFailure covers transport errors, non-2xx statuses and
	// malformed bodies from the assistant service.
	ErrGatewayFailure = errors.New("assistant gateway failure")
)
