package chunk

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/kailas-cloud/docqa/internal/domain"
)

const (
	fieldText   = "text"
	fieldSource = "source"
	fieldPage   = "page"
	fieldOffset = "offset"
	fieldIndex  = "chunk_index"
	fieldVector = "__vector"
)

var returnFields = []string{fieldText, fieldSource, fieldPage, fieldOffset, fieldIndex}

func recordToHash(rec domain.IndexRecord) map[string]string {
	return map[string]string{
		fieldText:   rec.Chunk.Text,
		fieldSource: rec.Chunk.Source,
		fieldPage:   strconv.Itoa(rec.Chunk.Page),
		fieldOffset: strconv.Itoa(rec.Chunk.Offset),
		fieldIndex:  strconv.Itoa(rec.Chunk.Index),
		fieldVector: vectorToBytes(rec.Vector),
	}
}

// hashToChunk restores a chunk from search fields. Unparseable numbers read as zero.
func hashToChunk(m map[string]string) domain.Chunk {
	page, _ := strconv.Atoi(m[fieldPage])
	offset, _ := strconv.Atoi(m[fieldOffset])
	index, _ := strconv.Atoi(m[fieldIndex])
	return domain.Chunk{
		Source: m[fieldSource],
		Page:   page,
		Offset: offset,
		Index:  index,
		Text:   m[fieldText],
	}
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
