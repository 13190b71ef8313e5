package core

import "errors"

var (
	// ErrEmptyQuestion rejects blank questions before any processing.
	ErrEmptyQuestion = errors.New("empty question")
	// ErrNoMatch marks an empty candidate set after filtering or retrieval.
	ErrNoMatch = errors.New("no matching records")
	// ErrCapabilityUnavailable marks a missing external resource
	// (vector index, metadata sidecar, report tables, model credentials).
	ErrCapabilityUnavailable = errors.New("capability unavailable")

	ErrInvalidMonth     = errors.New("invalid month")
	ErrBudgetNotFound   = errors.New("budget not found")
	ErrEmptyCategory    = errors.New("empty category")
	ErrInvalidLimit     = errors.New("invalid monthly limit")
	ErrInvalidThreshold = errors.New("invalid alert threshold")
)
