// Package main provides the advisor CLI for corpus ingestion and
// index inspection.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/advisor-rag/internal/chunker"
	"github.com/bull/advisor-rag/internal/config"
	"github.com/bull/advisor-rag/internal/corpus"
	"github.com/bull/advisor-rag/internal/embedding"
	"github.com/bull/advisor-rag/internal/history"
	"github.com/bull/advisor-rag/internal/ingest"
	"github.com/bull/advisor-rag/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "advisor",
	Short: "Corpus ingestion and index management for the advisor service",
	Long:  "CLI tool for ingesting documents into the vector index and inspecting its state",
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest the corpus into the vector index",
	Long: `Loads the corpus, chunks and embeds every document and upserts the
vectors into Qdrant. Re-running against an unchanged corpus is a no-op.

Environment variables:
  QDRANT_HOST         Qdrant hostname (default: localhost)
  QDRANT_PORT         Qdrant gRPC port (default: 6334)
  OPENAI_API_KEY      OpenAI API key for embeddings (required)
  DATA_DIR            Local corpus directory (default: data)
  GITHUB_CORPUS_REPO  Optional owner/repo to ingest instead of DATA_DIR`,
	RunE: runIngest,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current state of the vector index",
	RunE:  runStatus,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show query history statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(statsCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	client, err := embedding.NewClient(cfg.OpenAIAPIKey)
	if err != nil {
		return err
	}
	embedder := embedding.NewOpenAIEmbedder(client, cfg.EmbeddingModel, 0, 0)

	fmt.Printf("Connecting to Qdrant at %s:%d...\n", cfg.QdrantHost, cfg.QdrantPort)
	index, err := storage.NewQdrantIndex(cfg.QdrantHost, cfg.QdrantPort, embedder.Dimension())
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	defer index.Close()

	if err := index.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("failed to ensure collection: %w", err)
	}

	var loader corpus.Loader
	if cfg.GitHubRepo != "" {
		fmt.Printf("Corpus source: github.com/%s/%s\n", cfg.GitHubRepo, cfg.GitHubBasePath)
		loader, err = corpus.NewGitHubLoader(cfg.GitHubRepo, cfg.GitHubBasePath, cfg.GitHubToken, logger)
		if err != nil {
			return err
		}
	} else {
		fmt.Printf("Corpus source: %s\n", cfg.DataDir)
		loader = corpus.NewDirLoader(cfg.DataDir, logger)
	}

	pipeline := ingest.NewPipeline(loader,
		chunker.New(cfg.ChunkSize, cfg.ChunkOverlap), embedder, index, logger)

	start := time.Now()
	result, err := pipeline.Run(ctx)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Println()
	if result.SkippedUnchanged {
		fmt.Println("Corpus unchanged, nothing to do.")
		return nil
	}
	fmt.Printf("Ingested %d/%d documents, %d chunks in %s\n",
		result.SuccessfulDocs, result.TotalDocs, result.TotalChunks,
		time.Since(start).Round(time.Millisecond))
	for _, failed := range result.FailedDocs {
		fmt.Printf("  failed: %s (%s)\n", failed.FileName, failed.Reason)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	client, err := embedding.NewClient(cfg.OpenAIAPIKey)
	if err != nil {
		return err
	}
	embedder := embedding.NewOpenAIEmbedder(client, cfg.EmbeddingModel, 0, 0)

	index, err := storage.NewQdrantIndex(cfg.QdrantHost, cfg.QdrantPort, embedder.Dimension())
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	defer index.Close()

	count, err := index.Count(ctx)
	if err != nil {
		return err
	}
	names, err := index.FileNames(ctx)
	if err != nil {
		return err
	}
	fingerprint, modelVersion, err := index.Fingerprint(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Chunks indexed: %d\n", count)
	fmt.Printf("Documents:      %d\n", len(names))
	for _, name := range names {
		fmt.Printf("  %s\n", name)
	}
	if modelVersion != "" {
		fmt.Printf("Model:          %s\n", modelVersion)
	}
	if fingerprint != "" {
		fmt.Printf("Fingerprint:    %s\n", fingerprint[:12])
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	historyDir := os.Getenv("HISTORY_DIR")
	if historyDir == "" {
		historyDir = "data"
	}

	store, err := history.NewStore(historyDir)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Statistics(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Total queries:      %d\n", stats.TotalQueries)
	fmt.Printf("Successful queries: %d\n", stats.SuccessfulQueries)
	fmt.Printf("Success rate:       %.1f%%\n", stats.SuccessRatePercent)
	if stats.AvgResponseTimeMS != nil {
		fmt.Printf("Avg response time:  %.0f ms\n", *stats.AvgResponseTimeMS)
	}
	return nil
}
