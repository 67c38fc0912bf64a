// Package chunk is the vector index gateway: it stores embedded chunks as
// Redis hashes under an HNSW FT index and answers KNN queries over them.
package chunk

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/docqa/internal/db"
	"github.com/kailas-cloud/docqa/internal/domain"
)

// store is the consumer interface for the chunk index (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index string) (int, error)
}

// HNSWConfig holds HNSW index parameters. Zero values keep the server defaults.
type HNSWConfig struct {
	M           int
	EFConstruct int
	EFRuntime   int
}

// Repo implements the ingestion and retrieval index ports over one named index.
type Repo struct {
	store store
	name  string
	hnsw  HNSWConfig
}

// New creates a repository for the index called name.
func New(s store, name string) *Repo {
	return &Repo{store: s, name: name, hnsw: HNSWConfig{M: 16, EFConstruct: 200}}
}

// WithHNSW overrides HNSW parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	if cfg.EFRuntime > 0 {
		r.hnsw.EFRuntime = cfg.EFRuntime
	}
	return r
}

// Name returns the logical index name.
func (r *Repo) Name() string { return r.name }

// EnsureIndex creates the FT index for vectors of dim dimensions unless it already exists.
func (r *Repo) EnsureIndex(ctx context.Context, dim int) error {
	exists, err := r.store.IndexExists(ctx, indexName(r.name))
	if err != nil {
		return fmt.Errorf("check index %s: %w", r.name, err)
	}
	if exists {
		return nil
	}

	def, err := buildIndex(r.name, dim, r.hnsw)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", r.name, err)
	}
	return nil
}

// Upsert writes records keyed by chunk identity, so writing the same chunk
// twice overwrites instead of duplicating.
func (r *Repo) Upsert(ctx context.Context, records []domain.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, len(records))
	for i, rec := range records {
		if len(rec.Vector) == 0 {
			return fmt.Errorf("%w: chunk %d has no vector", domain.ErrIndexWrite, rec.Chunk.Index)
		}
		items[i] = db.HashSetItem{
			Key:    chunkKey(r.name, rec.Chunk),
			Fields: recordToHash(rec),
		}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIndexWrite, err)
	}
	return nil
}

// PruneFrom deletes the stored chunks of source whose index is from or higher and
// returns how many were removed. Chunks of one source are written under consecutive
// indexes, so the walk stops at the first missing record.
func (r *Repo) PruneFrom(ctx context.Context, source string, from int) (int, error) {
	removed := 0
	for i := from; ; i++ {
		key := chunkKey(r.name, domain.Chunk{Source: source, Index: i})
		fields, err := r.store.HGetAll(ctx, key)
		if err != nil {
			return removed, fmt.Errorf("%w: read %s: %w", domain.ErrIndexWrite, key, err)
		}
		if len(fields) == 0 {
			return removed, nil
		}
		if err := r.store.Del(ctx, key); err != nil {
			return removed, fmt.Errorf("%w: delete %s: %w", domain.ErrIndexWrite, key, err)
		}
		removed++
	}
}

// Query returns up to k chunks nearest to vector, most similar first.
// A missing or empty index yields no chunks and no error.
func (r *Repo) Query(ctx context.Context, vector []float32, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}

	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    indexName(r.name),
		Vector:       vector,
		K:            k,
		ReturnFields: returnFields,
		EFRuntime:    r.hnsw.EFRuntime,
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexQuery, err)
	}

	return parseKNNResults(sr, k), nil
}

// Count returns the number of stored chunks; zero when the index does not exist.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, indexName(r.name))
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %w", domain.ErrIndexQuery, err)
	}
	return n, nil
}

// Drop removes the index together with every stored chunk. Dropping a missing index is not an error.
func (r *Repo) Drop(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, indexName(r.name), true); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", r.name, err)
	}
	return nil
}

func parseKNNResults(sr *db.SearchResult, k int) []domain.ScoredChunk {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}
	entries := sr.Entries
	if len(entries) > k {
		entries = entries[:k]
	}
	out := make([]domain.ScoredChunk, 0, len(entries))
	for _, e := range entries {
		out = append(out, domain.ScoredChunk{Chunk: hashToChunk(e.Fields), Score: e.Score})
	}
	return out
}
