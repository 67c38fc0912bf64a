package docqa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/chunker"
	"github.com/kailas-cloud/docqa/internal/db"
	dbRedis "github.com/kailas-cloud/docqa/internal/db/redis"
	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/loader"
	"github.com/kailas-cloud/docqa/internal/repository/chunk"
	openaiTransport "github.com/kailas-cloud/docqa/internal/transport/openai"
	chatuc "github.com/kailas-cloud/docqa/internal/usecase/chat"
	embeddinguc "github.com/kailas-cloud/docqa/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/docqa/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/docqa/internal/usecase/ingest"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultIndex            = "docqa"
	defaultEmbeddingModel   = "gemini-embedding-001"
	defaultChatModel        = "gemini-2.5-flash"
)

// Internal interfaces for substitution in tests.
type askUseCase interface {
	Ask(ctx context.Context, question string, history domain.ChatHistory) (domain.QueryResult, error)
}

type ingestUseCase interface {
	Run(ctx context.Context, req ingestuc.Request) (ingestuc.Report, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

type indexUseCase interface {
	Count(ctx context.Context) (int, error)
	Drop(ctx context.Context) error
}

// Client is the docqa entry point.
type Client struct {
	store     db.Store
	chatSvc   askUseCase
	ingestSvc ingestUseCase
	healthSvc healthUseCase
	index     indexUseCase
	obs       *observer
}

// New creates a Client and connects to the database.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		index:          defaultIndex,
		chunkSize:      domain.DefaultChunkSize,
		chunkOverlap:   domain.DefaultChunkOverlap,
		topK:           domain.DefaultTopK,
		embeddingModel: defaultEmbeddingModel,
		chatModel:      defaultChatModel,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("docqa: database address required (use WithRedis)")
	}
	if cfg.geminiKey == "" && (cfg.embedder == nil || cfg.generator == nil) {
		return nil, errors.New("docqa: model provider required (use WithGemini or WithEmbedder and WithGenerator)")
	}
	if !db.IsValidIdentifier(cfg.index) {
		return nil, fmt.Errorf("docqa: invalid index name %q", cfg.index)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("docqa: create redis store: %w", err)
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("docqa: database not ready: %w", err)
	}

	c, err := wireClient(store, cfg, obs)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

func wireClient(store db.Store, cfg *clientConfig, obs *observer) (*Client, error) {
	split, err := chunker.New(cfg.chunkSize, cfg.chunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("docqa: %w", err)
	}
	docs, err := loader.New(cfg.pdfLicenseKey, zap.NewNop())
	if err != nil {
		return nil, fmt.Errorf("docqa: %w", err)
	}

	provider := "custom"
	var (
		emb        domain.Embedder
		gen        chatuc.Generator
		embChecker healthuc.ProviderChecker
		genChecker healthuc.ProviderChecker
	)
	if cfg.embedder != nil {
		emb = adaptEmbedder(cfg.embedder)
	} else {
		provider = "gemini"
		base := openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:   cfg.geminiKey,
			BaseURL:  cfg.baseURL,
			Model:    cfg.embeddingModel,
			Provider: provider,
			Logger:   zap.NewNop(),
		})
		emb, embChecker = base, base
	}
	if cfg.generator != nil {
		gen = &generatorAdapter{inner: cfg.generator}
	} else {
		g := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
			APIKey:   cfg.geminiKey,
			BaseURL:  cfg.baseURL,
			Model:    cfg.chatModel,
			Provider: "gemini",
			Logger:   zap.NewNop(),
		})
		gen, genChecker = g, g
	}
	emb = embeddinguc.NewInstrumentedEmbedder(emb, provider, cfg.embeddingModel, 0, nil, zap.NewNop())

	index := chunk.New(store, cfg.index).WithHNSW(chunk.HNSWConfig{M: cfg.hnswM, EFConstruct: cfg.hnswEF})

	return &Client{
		store:     store,
		chatSvc:   chatuc.New(index, emb, gen, cfg.topK),
		ingestSvc: ingestuc.New(docs, split, emb, index, 0, zap.NewNop()),
		healthSvc: healthuc.New(store, index, embChecker, genChecker),
		index:     index,
		obs:       obs,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ingest loads the document at path and stores its chunks. Re-ingesting the same path overwrites its chunks.
func (c *Client) Ingest(ctx context.Context, path string) (rep IngestReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ingest", start, err, "source", path, "chunks", rep.Chunks) }()

	r, err := c.ingestSvc.Run(ctx, ingestuc.Request{Source: path})
	if err != nil {
		return reportFromIngest(r), fmt.Errorf("ingest %s: %w", path, err)
	}
	return reportFromIngest(r), nil
}

// Ask answers question from the indexed documents. history holds prior turns, oldest first.
func (c *Client) Ask(ctx context.Context, question string, history []Turn) (ans Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ask", start, err, "history_turns", len(history)) }()

	res, err := c.chatSvc.Ask(ctx, question, historyToDomain(history))
	if err != nil {
		return Answer{}, fmt.Errorf("ask: %w", err)
	}
	return answerFromDomain(res), nil
}

// Count returns the number of indexed chunks.
func (c *Client) Count(ctx context.Context) (n int, err error) {
	start := time.Now()
	defer func() { c.obs.observe("count", start, err) }()

	if n, err = c.index.Count(ctx); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Reset drops the index together with all stored chunks.
func (c *Client) Reset(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("reset", start, err) }()

	if err = c.index.Drop(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}
