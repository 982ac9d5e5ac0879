package domain

import "errors"

var (
	// ErrInvalidEntry is returned when an entry breaks a persistence invariant.
	ErrInvalidEntry = errors.New("invalid entry")

	// ErrStorageUnavailable wraps any failure of the durable store.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrNotFound is returned by lookups for a timestamp with no entry.
	ErrNotFound = errors.New("entry not found")

	// ErrClassification wraps transport, timeout, status and decode failures of the classifier.
	ErrClassification = errors.New("classification failed")

	// ErrEmptyClassification means the classifier answered but no label mapped to the vocabulary.
	ErrEmptyClassification = errors.New("classification produced no emotion")
)
