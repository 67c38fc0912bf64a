package chunk

import (
	"cmp"
	"context"
	"encoding/binary"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/kailas-cloud/docqa/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetMultiFn   func(ctx context.Context, items []db.HashSetItem) error
	hgetAllFn     func(ctx context.Context, key string) (map[string]string, error)
	delFn         func(ctx context.Context, key string) error
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	dropIndexFn   func(ctx context.Context, name string, deleteDocs bool) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)
	searchKNNFn   func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchCountFn func(ctx context.Context, index string) (int, error)
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string, deleteDocs bool) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name, deleteDocs)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchCount(ctx context.Context, index string) (int, error) {
	if m.searchCountFn != nil {
		return m.searchCountFn(ctx, index)
	}
	return 0, nil
}

// memStore is a brute-force cosine KNN over hashes written with HSetMulti,
// ordered the way the Redis driver orders results.
type memStore struct {
	mockStore
	prefix string
	hashes map[string]map[string]string
}

func newMemStore(name string) *memStore {
	m := &memStore{prefix: chunkPrefix(name), hashes: map[string]map[string]string{}}
	m.hsetMultiFn = func(_ context.Context, items []db.HashSetItem) error {
		for _, it := range items {
			m.hashes[it.Key] = it.Fields
		}
		return nil
	}
	m.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		var entries []db.SearchEntry
		for key, h := range m.hashes {
			if !strings.HasPrefix(key, m.prefix) {
				continue
			}
			entries = append(entries, db.SearchEntry{
				Key:    key,
				Score:  max(0, cosine(q.Vector, bytesToVector(h[fieldVector]))),
				Fields: h,
			})
		}
		slices.SortFunc(entries, func(a, b db.SearchEntry) int {
			if c := cmp.Compare(b.Score, a.Score); c != 0 {
				return c
			}
			return cmp.Compare(a.Key, b.Key)
		})
		if len(entries) > q.K {
			entries = entries[:q.K]
		}
		return &db.SearchResult{Total: len(entries), Entries: entries}, nil
	}
	m.hgetAllFn = func(_ context.Context, key string) (map[string]string, error) {
		if h, ok := m.hashes[key]; ok {
			return h, nil
		}
		return map[string]string{}, nil
	}
	m.delFn = func(_ context.Context, key string) error {
		delete(m.hashes, key)
		return nil
	}
	m.searchCountFn = func(context.Context, string) (int, error) { return len(m.hashes), nil }
	return m
}

func bytesToVector(s string) []float32 {
	v := make([]float32, len(s)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32([]byte(s[i*4:])))
	}
	return v
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, "test-idx"), ms
}
