// Package main provides the HTTP and MCP server entry point for the
// advisor service.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bull/advisor-rag/internal/advisor"
	"github.com/bull/advisor-rag/internal/chunker"
	"github.com/bull/advisor-rag/internal/config"
	"github.com/bull/advisor-rag/internal/corpus"
	"github.com/bull/advisor-rag/internal/embedding"
	"github.com/bull/advisor-rag/internal/generator"
	"github.com/bull/advisor-rag/internal/history"
	"github.com/bull/advisor-rag/internal/ingest"
	mcpserver "github.com/bull/advisor-rag/internal/mcp"
	"github.com/bull/advisor-rag/internal/retriever"
	"github.com/bull/advisor-rag/internal/server"
	"github.com/bull/advisor-rag/internal/storage"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	client, err := embedding.NewClient(cfg.OpenAIAPIKey)
	if err != nil {
		log.Fatalf("failed to create OpenAI client: %v", err)
	}
	embedder := embedding.NewOpenAIEmbedder(client, cfg.EmbeddingModel, 0, 0)

	index, err := storage.NewQdrantIndex(cfg.QdrantHost, cfg.QdrantPort, embedder.Dimension())
	if err != nil {
		log.Fatalf("failed to connect to Qdrant: %v", err)
	}
	defer index.Close()

	if err := index.EnsureCollection(ctx); err != nil {
		log.Fatalf("failed to ensure collection: %v", err)
	}

	loader, err := newLoader(cfg, logger)
	if err != nil {
		log.Fatalf("failed to create corpus loader: %v", err)
	}

	pipeline := ingest.NewPipeline(loader,
		chunker.New(cfg.ChunkSize, cfg.ChunkOverlap), embedder, index, logger)

	hist, err := history.NewStore(cfg.HistoryDir)
	if err != nil {
		log.Fatalf("failed to open history store: %v", err)
	}
	defer hist.Close()

	gen := generator.NewOpenAIGenerator(client.Client(), cfg.ChatModel, logger)
	ret := retriever.NewRetriever(embedder, index, cfg.MaxTopK, logger)
	service := advisor.NewService(ret, gen, hist, cfg.DefaultTopK, logger)

	health := &server.HealthChecker{
		VectorStore:    server.PingFunc(index.Health),
		EmbeddingModel: server.PingFunc(client.Ping),
		ChatModel:      server.PingFunc(gen.Ping),
	}

	httpServer := server.NewServer(service, hist, pipeline, health, logger)

	mcpSrv := mcpserver.NewServer(&mcpserver.Config{
		Service:    service,
		Statistics: hist,
		Index:      index,
		Ingest:     pipeline,
	})

	mux := http.NewServeMux()
	mux.Handle("/", httpServer.Handler())
	mux.Handle("/mcp", mcpserver.NewHTTPHandler(mcpSrv, nil))

	srv := &http.Server{
		Addr:    "0.0.0.0:" + cfg.Port,
		Handler: mux,
	}

	go func() {
		logger.Info("Starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", "error", err)
	}
}

// newLoader picks the corpus source: a GitHub repository when one is
// configured, the local data directory otherwise.
func newLoader(cfg *config.Config, logger *slog.Logger) (corpus.Loader, error) {
	if cfg.GitHubRepo != "" {
		return corpus.NewGitHubLoader(cfg.GitHubRepo, cfg.GitHubBasePath, cfg.GitHubToken, logger)
	}
	return corpus.NewDirLoader(cfg.DataDir, logger), nil
}
