// Package app wires the shared components of the API server and the ingestion CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/config"
	dbRedis "github.com/kailas-cloud/docqa/internal/db/redis"
	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/metrics"
	budgetrepo "github.com/kailas-cloud/docqa/internal/repository/budget"
	"github.com/kailas-cloud/docqa/internal/repository/chunk"
	"github.com/kailas-cloud/docqa/internal/repository/embcache"
	openaiTransport "github.com/kailas-cloud/docqa/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/docqa/internal/usecase/embedding"
)

// Components are the long-lived clients built once per process.
type Components struct {
	Store     *dbRedis.Store
	Index     *chunk.Repo
	Embedder  domain.Embedder
	Provider  *openaiTransport.Embedder
	Generator *openaiTransport.Generator
	// Budget is nil when no token limit is configured.
	Budget *embeddinguc.BudgetTracker
}

// Build connects to the database and assembles the embedder chain, the generator and the chunk index.
// indexName overrides cfg.Index.Name when non-empty.
func Build(ctx context.Context, cfg config.Config, indexName string, logger *zap.Logger) (*Components, error) {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create database store: %w", err)
	}

	if err = store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database", zap.Strings("addrs", cfg.Database.Addrs))

	if indexName == "" {
		indexName = cfg.Index.Name
	}

	provider := NewProvider(cfg, logger)
	var cache embcache.Store
	if cfg.Embedding.CacheOn() {
		cache = store
	}

	tracker := NewBudget(ctx, store, cfg, logger)
	// A typed nil *BudgetTracker inside the interface would not compare equal to nil.
	var budget embeddinguc.BudgetChecker
	if tracker != nil {
		budget = tracker
	}

	return &Components{
		Store:     store,
		Index:     NewIndex(store, cfg, indexName),
		Embedder:  BuildEmbedder(provider, cache, budget, cfg, logger),
		Provider:  provider,
		Generator: NewGenerator(cfg, logger),
		Budget:    tracker,
	}, nil
}

// Close releases the database connection.
func (c *Components) Close() {
	c.Store.Close()
}

// NewProvider creates the OpenAI-compatible embedding transport.
func NewProvider(cfg config.Config, logger *zap.Logger) *openaiTransport.Embedder {
	return openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Provider.APIKey,
		BaseURL:    cfg.Provider.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Provider.Name,
		Logger:     logger,
	})
}

// NewGenerator creates the chat model transport. Temperature is pinned to zero.
func NewGenerator(cfg config.Config, logger *zap.Logger) *openaiTransport.Generator {
	return openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:    cfg.Provider.APIKey,
		BaseURL:   cfg.Provider.BaseURL,
		Model:     cfg.Generation.Model,
		MaxTokens: cfg.Generation.MaxTokens,
		Provider:  cfg.Provider.Name,
		Logger:    logger,
	})
}

// NewBudget creates the embedding token budget backed by Redis counters, or nil when no limit is set.
func NewBudget(ctx context.Context, store *dbRedis.Store, cfg config.Config, logger *zap.Logger) *embeddinguc.BudgetTracker {
	b := cfg.Embedding.Budget
	if !b.Enabled() {
		return nil
	}
	action := embeddinguc.BudgetActionWarn
	if b.Action == string(embeddinguc.BudgetActionReject) {
		action = embeddinguc.BudgetActionReject
	}
	return embeddinguc.NewBudgetTracker(
		cfg.Provider.Name, b.DailyTokenLimit, b.MonthlyTokenLimit, action, logger,
	).WithStore(ctx, budgetrepo.New(store, budgetrepo.DefaultDailyTTL, budgetrepo.DefaultMonthlyTTL))
}

// BuildEmbedder assembles the decorator chain: transport -> cache -> instrumented.
// A nil cache skips the caching layer; a nil budget leaves embedding unlimited.
func BuildEmbedder(
	base domain.Embedder, cache embcache.Store, budget embeddinguc.BudgetChecker,
	cfg config.Config, logger *zap.Logger,
) domain.Embedder {
	embedder := base
	if cache != nil {
		embedder = embcache.New(
			base, cache, cfg.Embedding.Model,
			time.Duration(cfg.Embedding.CacheTTLSec)*time.Second,
			metrics.EmbeddingCacheTotal, logger,
		).WithDimensions(cfg.Embedding.Dimensions)
	}

	return embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Provider.Name, cfg.Embedding.Model, cfg.Embedding.MaxBatchSize, budget, logger,
	)
}

// NewIndex creates the chunk repository for indexName with the configured HNSW parameters.
func NewIndex(store *dbRedis.Store, cfg config.Config, indexName string) *chunk.Repo {
	return chunk.New(store, indexName).WithHNSW(chunk.HNSWConfig{
		M:           cfg.Index.HNSWM,
		EFConstruct: cfg.Index.HNSWEFConstruct,
		EFRuntime:   cfg.Retrieval.EFRuntime,
	})
}
