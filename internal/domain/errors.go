package domain

import "errors"

var (
	// ErrConfiguration signals invalid pipeline parameters (e.g. chunk overlap >= chunk size).
	ErrConfiguration = errors.New("configuration error")
	// ErrInvalidRequest signals a malformed client request.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrTokenBudgetExceeded signals that the provider token budget for the current period is spent.
	ErrTokenBudgetExceeded = errors.New("token budget exceeded")
	// ErrIndexWrite signals a failed upsert into the vector index.
	ErrIndexWrite = errors.New("index write failed")
	// ErrIndexQuery signals a failed similarity query against the vector index.
	ErrIndexQuery = errors.New("index query failed")

	// ErrRetrieval wraps any failure of the retrieval stage (embedding the query or querying the index).
	ErrRetrieval = errors.New("retrieval failed")
	// ErrGeneration signals a failed generative model call.
	ErrGeneration = errors.New("generation failed")

	// ErrDocumentEmpty signals a source document without extractable text.
	ErrDocumentEmpty = errors.New("document has no text")
)
