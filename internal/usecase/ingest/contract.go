package ingest

import (
	"context"

	"github.com/kailas-cloud/docqa/internal/domain"
)

// DocumentLoader reads a source document.
type DocumentLoader interface {
	Load(path string) (domain.Document, error)
}

// Splitter cuts a document into chunks.
type Splitter interface {
	SplitDocument(doc domain.Document) []domain.Chunk
}

// Index is the write side of the vector index.
type Index interface {
	Name() string
	EnsureIndex(ctx context.Context, dim int) error
	Upsert(ctx context.Context, records []domain.IndexRecord) error
	// PruneFrom removes the chunks of source whose index is from or higher.
	PruneFrom(ctx context.Context, source string, from int) (int, error)
	Drop(ctx context.Context) error
}
