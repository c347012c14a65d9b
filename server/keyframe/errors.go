package keyframe

import "errors"

// The store's error taxonomy. Callers (i.e. the HTTP layer) match with
// errors.Is and map onto status codes.
var (
	// ErrInvalidInput is a malformed code, side, time range or bounding box.
	// It is always raised before any mutation, so no backup is taken.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound covers a missing document, a missing backup, and a
	// reference timestamp with no detection on any requested side.
	ErrNotFound = errors.New("not found")

	// ErrCorrupt means the document file exists but cannot be parsed.
	ErrCorrupt = errors.New("corrupt keyframe document")

	// ErrPersistence means a save failed after the snapshot was taken.
	// The store restores the prior file state before surfacing this.
	ErrPersistence = errors.New("persistence failure")
)
