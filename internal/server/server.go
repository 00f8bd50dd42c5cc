// Package server exposes the advisor over HTTP with JSON bodies.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bull/advisor-rag/internal/advisor"
	"github.com/bull/advisor-rag/internal/history"
	"github.com/bull/advisor-rag/internal/ingest"
)

// HistoryReader is the read side of the audit log.
type HistoryReader interface {
	Get(ctx context.Context, id string) (*history.Record, []history.Source, error)
	List(ctx context.Context, limit, offset int) ([]history.Record, int, error)
	Statistics(ctx context.Context) (*history.Statistics, error)
}

// Ingester triggers and reports on ingestion runs.
type Ingester interface {
	Run(ctx context.Context) (*ingest.Result, error)
	State() ingest.State
	LastResult() *ingest.Result
}

// Server routes HTTP requests to the advisor service.
type Server struct {
	service  *advisor.Service
	history  HistoryReader
	ingester Ingester
	health   *HealthChecker
	logger   *slog.Logger
}

// NewServer creates the HTTP server around its dependencies.
func NewServer(service *advisor.Service, hist HistoryReader, ing Ingester, health *HealthChecker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		service:  service,
		history:  hist,
		ingester: ing,
		health:   health,
		logger:   logger,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("GET /history", s.handleHistoryList)
	mux.HandleFunc("GET /history/{id}", s.handleHistoryGet)
	mux.HandleFunc("GET /statistics", s.handleStatistics)
	mux.HandleFunc("POST /ingest", s.handleIngest)
	mux.HandleFunc("GET /ingest/status", s.handleIngestStatus)
	mux.HandleFunc("GET /health", s.health.Handle)
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
