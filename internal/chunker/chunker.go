// Package chunker splits document text into fixed-size overlapping windows.
package chunker

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/docqa/internal/domain"
)

// Chunker cuts text into windows of at most size runes, each window starting
// size-overlap runes after the previous one. The last window may be shorter.
type Chunker struct {
	size    int
	overlap int
}

// New validates the window parameters. overlap must be strictly less than size.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrConfiguration, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap must not be negative, got %d", domain.ErrConfiguration, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap %d must be less than chunk size %d",
			domain.ErrConfiguration, overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the maximum chunk length in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the number of runes shared by consecutive chunks.
func (c *Chunker) Overlap() int { return c.overlap }

// Span is a window of the input: Text starts at rune Offset.
type Span struct {
	Offset int
	Text   string
}

// Split returns the windows covering text with no gaps. Empty text yields no windows.
func (c *Chunker) Split(text string) []Span {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	stride := c.size - c.overlap
	spans := make([]Span, 0, Count(len(runes), c.size, c.overlap))
	for start := 0; ; start += stride {
		end := min(start+c.size, len(runes))
		spans = append(spans, Span{Offset: start, Text: string(runes[start:end])})
		if end == len(runes) {
			break
		}
	}
	return spans
}

// SplitDocument applies the window policy page by page. Blank pages produce no chunks.
// Chunk indexes are consecutive across the whole document.
func (c *Chunker) SplitDocument(doc domain.Document) []domain.Chunk {
	var chunks []domain.Chunk
	for _, page := range doc.Pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		for _, s := range c.Split(page.Text) {
			chunks = append(chunks, domain.Chunk{
				Source: doc.Source,
				Page:   page.Number,
				Offset: s.Offset,
				Index:  len(chunks),
				Text:   s.Text,
			})
		}
	}
	return chunks
}

// Count returns how many windows Split produces for a text of length runes.
func Count(length, size, overlap int) int {
	if length <= 0 {
		return 0
	}
	if length <= size {
		return 1
	}
	stride := size - overlap
	return (length - overlap + stride - 1) / stride
}

// Join reverses Split: it concatenates spans after dropping each span's leading overlap.
func Join(spans []Span, overlap int) string {
	var b strings.Builder
	for i, s := range spans {
		if i == 0 {
			b.WriteString(s.Text)
			continue
		}
		b.WriteString(string([]rune(s.Text)[overlap:]))
	}
	return b.String()
}
