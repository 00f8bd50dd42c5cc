package storage

import "errors"

var (
	ErrUnreachable       = errors.New("vector store unreachable")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrModelVersionMismatch means the index holds vectors from a
	// different embedding model than the query. Fatal until the corpus
	// is re-ingested; never silently ignored.
	ErrModelVersionMismatch = errors.New("index model version mismatch, re-ingestion required")
)
