package llm

import "errors"

var (
	// ErrEmptyInput is returned when a caller asks to embed empty or
	// whitespace-only text. Rejected before any network call is made.
	ErrEmptyInput = errors.New("empty input")

	// ErrEmbeddingUnavailable is returned when the embedding service is
	// unreachable or returns an error status.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrGenerationUnavailable is returned when the completion service is
	// unreachable or returns an error status.
	ErrGenerationUnavailable = errors.New("generation service unavailable")
)
