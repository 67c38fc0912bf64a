package chat

import (
	"context"

	"github.com/kailas-cloud/docqa/internal/domain"
)

// Retriever returns the chunks closest to a query vector.
type Retriever interface {
	Query(ctx context.Context, vector []float32, k int) ([]domain.ScoredChunk, error)
}

// Embedder vectorizes the standalone query.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Generator produces text from a list of chat messages.
type Generator interface {
	Generate(ctx context.Context, messages []domain.Message) (domain.GenerationResult, error)
}
