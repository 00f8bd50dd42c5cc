package embedding

import "errors"

var (
	// ErrUnavailable means the embedding service could not be reached
	// within the retry budget. Transient; callers may retry the whole
	// operation later.
	ErrUnavailable = errors.New("embedding service unavailable")

	// ErrMalformed means the service answered with vectors of the wrong
	// dimension or count. Not retryable.
	ErrMalformed = errors.New("malformed embedding response")
)
