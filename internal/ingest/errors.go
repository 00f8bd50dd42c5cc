package ingest

import "errors"

var (
	// ErrInProgress is returned when an ingestion run is started while
	// another one holds the writer lock.
	ErrInProgress = errors.New("ingestion already in progress")

	// ErrEmptyCorpus is returned when the loader finds no documents.
	ErrEmptyCorpus = errors.New("corpus contains no documents")
)
