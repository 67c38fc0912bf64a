package chunk

import (
	"github.com/kailas-cloud/docqa/internal/db"
	"github.com/kailas-cloud/docqa/internal/domain"
)

func indexName(name string) string {
	return domain.KeyPrefix + name + ":idx"
}

func chunkPrefix(name string) string {
	return domain.KeyPrefix + name + ":chunk:"
}

func chunkKey(name string, c domain.Chunk) string {
	return chunkPrefix(name) + c.Key()
}

// buildIndex describes the chunk hash layout: searchable text and
// provenance next to a cosine HNSW vector queried as @vector.
func buildIndex(name string, dim int, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	return db.NewIndex(indexName(name)).
		Prefix(chunkPrefix(name)).
		Text(fieldText).
		Tag(fieldSource).
		Numeric(fieldPage).
		Numeric(fieldIndex).
		VectorHNSW(fieldVector, "vector", dim, db.DistanceCosine, hnsw.M, hnsw.EFConstruct).
		Build()
}
