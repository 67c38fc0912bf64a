package docqa

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	addrs    []string
	password string

	embedder  Embedder
	generator Generator

	geminiKey      string
	baseURL        string
	embeddingModel string
	chatModel      string

	index        string
	chunkSize    int
	chunkOverlap int
	topK         int
	hnswM        int
	hnswEF       int

	pdfLicenseKey string

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithRedis configures the Redis (or Valkey) instance holding the index.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithGemini uses Google Gemini through its OpenAI-compatible endpoint for both
// embeddings and answers. Ignored for whichever of WithEmbedder and WithGenerator is set.
func WithGemini(apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.geminiKey = apiKey
	})
}

// WithBaseURL points the built-in provider at another OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return optionFunc(func(c *clientConfig) {
		c.baseURL = url
	})
}

// WithModels overrides the embedding and chat model names of the built-in provider.
// Empty values keep the defaults.
func WithModels(embedding, chat string) Option {
	return optionFunc(func(c *clientConfig) {
		if embedding != "" {
			c.embeddingModel = embedding
		}
		if chat != "" {
			c.chatModel = chat
		}
	})
}

// WithEmbedder sets a custom text embedding provider.
// The same embedder must be used for ingestion and questions.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithGenerator sets a custom answer generator.
func WithGenerator(g Generator) Option {
	return optionFunc(func(c *clientConfig) {
		c.generator = g
	})
}

// WithIndex sets the index name. Default: "docqa".
func WithIndex(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.index = name
	})
}

// WithChunking sets chunk size and overlap in characters. Default: 1000 and 100.
func WithChunking(size, overlap int) Option {
	return optionFunc(func(c *clientConfig) {
		c.chunkSize = size
		c.chunkOverlap = overlap
	})
}

// WithTopK sets how many chunks are placed into the answer context. Default: 4.
func WithTopK(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = k
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction).
// Defaults: M=16, EFConstruct=200.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEF = efConstruct
	})
}

// WithPDFLicense activates a metered UniPDF license for PDF extraction.
func WithPDFLicense(key string) Option {
	return optionFunc(func(c *clientConfig) {
		c.pdfLicenseKey = key
	})
}

// WithLogger enables structured logging for client operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
