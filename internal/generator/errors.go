package generator

import "errors"

var (
	// ErrUnavailable means the chat model could not be reached after the
	// retry budget was spent.
	ErrUnavailable = errors.New("chat model unavailable")

	// ErrTimeout means a single generation exceeded its time ceiling.
	ErrTimeout = errors.New("answer generation timed out")

	// ErrEmptyCompletion means the model returned no choices.
	ErrEmptyCompletion = errors.New("chat model returned empty completion")
)
