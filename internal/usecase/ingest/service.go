package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/metrics"
)

// DefaultBatchSize is the number of chunks embedded and upserted per round trip.
const DefaultBatchSize = 100

// Request describes one ingestion run.
type Request struct {
	Source string
	// Reset drops the index and its records before loading.
	Reset bool
}

// Report summarizes a finished run.
type Report struct {
	Source     string
	Index      string
	Pages      int
	Chunks     int
	// Pruned counts chunks left over from a longer earlier version of the source.
	Pruned     int
	Dimensions int
	Duration   time.Duration
}

// Service runs the load, split, embed and upsert pipeline.
type Service struct {
	loader    DocumentLoader
	splitter  Splitter
	embed     domain.Embedder
	index     Index
	batchSize int
	logger    *zap.Logger
}

// New creates an ingestion service. batchSize <= 0 falls back to DefaultBatchSize.
func New(
	loader DocumentLoader, splitter Splitter, embed domain.Embedder, index Index,
	batchSize int, logger *zap.Logger,
) *Service {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Service{
		loader:    loader,
		splitter:  splitter,
		embed:     embed,
		index:     index,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run ingests req.Source into the index. The run either stores every chunk or returns an error;
// records written before a failure stay in the index and are overwritten by the next run.
func (s *Service) Run(ctx context.Context, req Request) (Report, error) {
	start := time.Now()
	rep, err := s.run(ctx, req)
	rep.Duration = time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.IngestDuration.WithLabelValues(s.index.Name(), status).Observe(rep.Duration.Seconds())
	return rep, err
}

func (s *Service) run(ctx context.Context, req Request) (Report, error) {
	rep := Report{Source: req.Source, Index: s.index.Name()}

	doc, err := s.loader.Load(req.Source)
	if err != nil {
		return rep, fmt.Errorf("load document: %w", err)
	}
	rep.Pages = len(doc.Pages)

	chunks := s.splitter.SplitDocument(doc)
	if len(chunks) == 0 {
		return rep, fmt.Errorf("%s: %w", req.Source, domain.ErrDocumentEmpty)
	}

	if req.Reset {
		if err = s.index.Drop(ctx); err != nil {
			return rep, fmt.Errorf("reset index: %w", err)
		}
		s.logger.Info("Index dropped", zap.String("index", rep.Index))
	}

	for lo := 0; lo < len(chunks); lo += s.batchSize {
		hi := min(lo+s.batchSize, len(chunks))
		dim, err := s.storeBatch(ctx, chunks[lo:hi], rep.Dimensions)
		if err != nil {
			return rep, fmt.Errorf("chunks [%d:%d]: %w", lo, hi, err)
		}
		rep.Dimensions = dim
		rep.Chunks = hi
		metrics.IngestedChunksTotal.WithLabelValues(rep.Index).Add(float64(hi - lo))

		s.logger.Debug("Batch stored", zap.Int("stored", hi), zap.Int("total", len(chunks)))
	}

	if !req.Reset {
		if rep.Pruned, err = s.index.PruneFrom(ctx, req.Source, len(chunks)); err != nil {
			return rep, fmt.Errorf("prune stale chunks: %w", err)
		}
	}

	s.logger.Info("Document ingested",
		zap.String("source", req.Source),
		zap.String("index", rep.Index),
		zap.Int("pages", rep.Pages),
		zap.Int("chunks", rep.Chunks),
		zap.Int("pruned", rep.Pruned),
	)
	return rep, nil
}

// storeBatch embeds and upserts one batch. The index is created lazily from the
// first vector's dimension; every later vector must match it.
func (s *Service) storeBatch(ctx context.Context, chunks []domain.Chunk, dim int) (int, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	res, err := domain.BatchEmbedWith(ctx, s.embed, texts)
	if err != nil {
		return dim, fmt.Errorf("embed: %w", err)
	}
	if len(res.Embeddings) != len(chunks) {
		return dim, fmt.Errorf("%w: got %d vectors for %d chunks",
			domain.ErrEmbeddingProviderError, len(res.Embeddings), len(chunks))
	}

	records := make([]domain.IndexRecord, len(chunks))
	for i, c := range chunks {
		vec := res.Embeddings[i]
		if dim == 0 {
			dim = len(vec)
			if err = s.index.EnsureIndex(ctx, dim); err != nil {
				return 0, fmt.Errorf("ensure index: %w", err)
			}
		}
		if len(vec) != dim {
			return dim, fmt.Errorf("%w: vector %d has dimension %d, index expects %d",
				domain.ErrEmbeddingProviderError, c.Index, len(vec), dim)
		}
		records[i] = domain.IndexRecord{Chunk: c, Vector: vec}
	}

	if err = s.index.Upsert(ctx, records); err != nil {
		return dim, fmt.Errorf("upsert: %w", err)
	}
	return dim, nil
}
