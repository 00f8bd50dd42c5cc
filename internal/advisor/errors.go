package advisor

import "errors"

var (
	// ErrEmptyQuery rejects queries that are empty or whitespace only.
	// Nothing is recorded in history for a rejected query.
	ErrEmptyQuery = errors.New("query text must not be empty")

	// ErrInvalidTopK rejects a top_k outside the allowed range.
	ErrInvalidTopK = errors.New("top_k out of range")

	// ErrRetrievalFailed is the generic failure surfaced when retrieval
	// breaks. Details go to the log, not to the caller.
	ErrRetrievalFailed = errors.New("retrieval failed")

	// ErrGenerationFailed is the generic failure surfaced when answer
	// generation breaks after retrieval succeeded.
	ErrGenerationFailed = errors.New("answer generation failed")
)
