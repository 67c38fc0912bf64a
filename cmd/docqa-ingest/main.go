package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/app"
	"github.com/kailas-cloud/docqa/internal/chunker"
	"github.com/kailas-cloud/docqa/internal/config"
	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/loader"
	logpkg "github.com/kailas-cloud/docqa/internal/logger"
	"github.com/kailas-cloud/docqa/internal/metrics"
	ingestuc "github.com/kailas-cloud/docqa/internal/usecase/ingest"
	"github.com/kailas-cloud/docqa/internal/version"
)

const defaultSource = "data/impact_of_generativeAI.pdf"

type ingestOptions struct {
	source       string
	index        string
	chunkSize    int
	chunkOverlap int
	batchSize    int
	reset        bool
	json         bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return buildRootCmd(&ingestOptions{})
}

// buildRootCmd binds the command line flags to opts.
func buildRootCmd(opts *ingestOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docqa-ingest",
		Short: "Load a document into the vector index",
		Long: `Loads a PDF (or plain text) document, splits it into overlapping chunks,
embeds every chunk and upserts the records into the vector index.
Re-running on the same source overwrites its records.`,
		Version:      version.Version,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.source, "source", "s", defaultSource, "path of the document to ingest")
	f.StringVar(&opts.index, "index", "", "index name (default: INDEX_NAME from config)")
	f.IntVar(&opts.chunkSize, "chunk-size", domain.DefaultChunkSize, "maximum chunk length in characters")
	f.IntVar(&opts.chunkOverlap, "chunk-overlap", domain.DefaultChunkOverlap, "characters shared by consecutive chunks")
	f.IntVar(&opts.batchSize, "batch-size", ingestuc.DefaultBatchSize, "chunks embedded and stored per round trip")
	f.BoolVar(&opts.reset, "reset", false, "drop the index and its records before ingesting")
	f.BoolVar(&opts.json, "json", false, "print the report as JSON")

	return cmd
}

// resolve fills options the user did not set on the command line from the config file.
func (o *ingestOptions) resolve(cmd *cobra.Command, cfg config.Config) {
	f := cmd.Flags()
	if !f.Changed("source") && cfg.Loader.Source != "" {
		o.source = cfg.Loader.Source
	}
	if !f.Changed("chunk-size") {
		o.chunkSize = cfg.Chunking.Size
	}
	if !f.Changed("chunk-overlap") {
		o.chunkOverlap = cfg.Chunking.Overlap
	}
	if !f.Changed("batch-size") {
		o.batchSize = cfg.Chunking.BatchSize
	}
	if o.index == "" {
		o.index = cfg.Index.Name
	}
}

func runIngest(cmd *cobra.Command, opts *ingestOptions) error {
	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	opts.resolve(cmd, cfg)

	// Reject bad window parameters before touching the network.
	split, err := chunker.New(opts.chunkSize, opts.chunkOverlap)
	if err != nil {
		return err
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	docs, err := loader.New(cfg.Loader.PDFLicenseKey, logger)
	if err != nil {
		return err
	}
	if err := docs.Check(opts.source); err != nil {
		if errors.Is(err, loader.ErrPDFLicenseRequired) {
			return fmt.Errorf("%w: set UNIPDF_LICENSE_KEY (loader.pdf_license_key) or ingest a .txt/.md source", err)
		}
		return err
	}

	ctx := cmd.Context()
	components, err := app.Build(ctx, cfg, opts.index, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	svc := ingestuc.New(docs, split, components.Embedder, components.Index, opts.batchSize, logger)
	logger.Info("Ingesting document",
		zap.String("source", opts.source),
		zap.String("index", opts.index),
		zap.Int("chunk_size", opts.chunkSize),
		zap.Int("chunk_overlap", opts.chunkOverlap),
		zap.Bool("reset", opts.reset),
	)

	rep, err := svc.Run(ctx, ingestuc.Request{Source: opts.source, Reset: opts.reset})
	if err != nil {
		logger.Error("Ingestion failed", zap.Error(err), zap.Int("stored_chunks", rep.Chunks))
		return err
	}
	if components.Budget != nil {
		logger.Info("Embedding budget after ingestion",
			zap.Int64("daily_remaining", components.Budget.RemainingDaily()),
			zap.Int64("monthly_remaining", components.Budget.RemainingMonthly()),
		)
	}

	return printReport(cmd, rep, opts.json)
}

func printReport(cmd *cobra.Command, rep ingestuc.Report, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"source":      rep.Source,
			"index":       rep.Index,
			"pages":       rep.Pages,
			"chunks":      rep.Chunks,
			"pruned":      rep.Pruned,
			"dimensions":  rep.Dimensions,
			"duration_ms": rep.Duration.Milliseconds(),
		})
	}
	_, err := fmt.Fprintf(out, "created %d chunks from %s (%d pages) into index %q in %s\n",
		rep.Chunks, rep.Source, rep.Pages, rep.Index, rep.Duration.Round(time.Millisecond))
	if err == nil && rep.Pruned > 0 {
		_, err = fmt.Fprintf(out, "removed %d stale chunks from a previous version\n", rep.Pruned)
	}
	return err
}
