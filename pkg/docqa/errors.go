package docqa

import "github.com/kailas-cloud/docqa/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrConfiguration          = domain.ErrConfiguration
	ErrInvalidRequest         = domain.ErrInvalidRequest
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrIndexWrite             = domain.ErrIndexWrite
	ErrIndexQuery             = domain.ErrIndexQuery
	ErrRetrieval              = domain.ErrRetrieval
	ErrGeneration             = domain.ErrGeneration
	ErrDocumentEmpty          = domain.ErrDocumentEmpty
)
