package domain

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Page is the text of a single source page. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// Document is a loaded source document with its page structure.
// It lives only for the duration of an ingestion run.
type Document struct {
	Source string
	Pages  []Page
}

// Text returns the full document text with pages joined by newlines.
func (d Document) Text() string {
	parts := make([]string, len(d.Pages))
	for i, p := range d.Pages {
		parts[i] = p.Text
	}
	return strings.Join(parts, "\n")
}

// Chunk is a bounded span of document text used as a retrieval unit.
// Offset is the rune offset of the chunk within its page, Index the
// position of the chunk within the whole document.
type Chunk struct {
	Source string
	Page   int
	Offset int
	Index  int
	Text   string
}

// chunkNamespace scopes record IDs so the same (source, index) pair always maps to the same key.
var chunkNamespace = uuid.MustParse("6f1c9a52-4c1e-4bf4-9a0e-2d0a3c6b7e11")

// Key returns the stable record identity of the chunk. Re-ingesting the same
// source overwrites the same records instead of appending duplicates; the source
// path is cleaned first, so "./data/x.pdf" and "data/x.pdf" are one source.
func (c Chunk) Key() string {
	src := filepath.Clean(c.Source)
	return uuid.NewSHA1(chunkNamespace, []byte(src+"#"+strconv.Itoa(c.Index))).String()
}

// IndexRecord is a chunk together with its embedding, as stored in the vector index.
type IndexRecord struct {
	Chunk  Chunk
	Vector []float32
}

// ScoredChunk is a retrieval hit. Score is a similarity in [0,1], higher is closer.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}
