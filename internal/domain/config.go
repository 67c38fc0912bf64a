package domain

// KeyPrefix is prepended to every key the service writes to the database.
const KeyPrefix = "docqa:"

// Pipeline defaults shared by ingestion and query.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
	DefaultTopK         = 4
)

// VectorConfig holds vectorization settings shared by ingestion and query time.
// Both sides must use the same model and metric or retrieval quality silently degrades.
type VectorConfig struct {
	Model          string
	Dimensions     int
	DistanceMetric string
	Algorithm      string
}

// DefaultVectorConfig returns the default configuration tuned for gemini-embedding-001.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:          "gemini-embedding-001",
		Dimensions:     768,
		DistanceMetric: "cosine",
		Algorithm:      "hnsw",
	}
}
