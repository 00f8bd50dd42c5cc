// Package advisor orchestrates one query end to end: validate,
// retrieve, generate, record.
package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bull/advisor-rag/internal/history"
	"github.com/bull/advisor-rag/internal/retriever"
)

// NoInformationMessage is the fixed answer returned when retrieval
// finds nothing. The chat model is never called in that case.
const NoInformationMessage = "No information available in the indexed corpus to answer this question."

// Retriever finds the passages most similar to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]retriever.Result, error)
	MaxK() int
}

// Generator produces an answer from a query and its passages.
type Generator interface {
	Generate(ctx context.Context, query string, passages []retriever.Result) (string, error)
}

// Recorder persists finished queries for audit.
type Recorder interface {
	Record(ctx context.Context, entry history.Entry) (string, error)
}

// Answer is the outcome of one orchestrated query.
type Answer struct {
	AnswerText string
	Sources    []retriever.Result
	QueryID    string

	// HistoryRecorded is false when the answer was produced but the
	// audit write failed. The caller gets the answer plus a warning.
	HistoryRecorded bool
}

// Service runs the query pipeline. Stateless between requests; any
// number of queries may run concurrently, each isolated from the rest.
type Service struct {
	retriever   Retriever
	generator   Generator
	recorder    Recorder
	defaultTopK int
	logger      *slog.Logger
}

// NewService wires the orchestrator.
func NewService(r Retriever, g Generator, rec Recorder, defaultTopK int, logger *slog.Logger) *Service {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		retriever:   r,
		generator:   g,
		recorder:    rec,
		defaultTopK: defaultTopK,
		logger:      logger,
	}
}

// Query answers one question. topK of 0 means the default; a negative
// topK or one above the retriever's ceiling is a validation error.
//
// Every query that passes validation ends up in history exactly once,
// whether it succeeded or failed. Only a broken history store itself
// breaks that guarantee, and then the answer still goes out with
// HistoryRecorded set to false.
func (s *Service) Query(ctx context.Context, queryText string, topK int) (*Answer, error) {
	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		return nil, ErrEmptyQuery
	}
	if topK == 0 {
		topK = s.defaultTopK
	}
	if topK < 1 || topK > s.retriever.MaxK() {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidTopK, topK, s.retriever.MaxK())
	}

	start := time.Now()

	sources, err := s.retriever.Retrieve(ctx, queryText, topK)
	if err != nil {
		s.logger.Error("Retrieval failed", "error", err)
		s.record(ctx, history.Entry{
			QueryText:      queryText,
			TopK:           topK,
			ResponseTimeMS: elapsedMS(start),
			Success:        false,
			ErrorMessage:   err.Error(),
		})
		return nil, ErrRetrievalFailed
	}

	if len(sources) == 0 {
		// A clean "nothing indexed matches" is a successful outcome.
		answer := &Answer{AnswerText: NoInformationMessage, Sources: []retriever.Result{}}
		answer.QueryID, answer.HistoryRecorded = s.record(ctx, history.Entry{
			QueryText:      queryText,
			AnswerText:     NoInformationMessage,
			TopK:           topK,
			ResponseTimeMS: elapsedMS(start),
			Success:        true,
		})
		return answer, nil
	}

	answerText, err := s.generator.Generate(ctx, queryText, sources)
	if err != nil {
		s.logger.Error("Generation failed", "error", err)
		s.record(ctx, history.Entry{
			QueryText:      queryText,
			TopK:           topK,
			ResponseTimeMS: elapsedMS(start),
			Success:        false,
			ErrorMessage:   err.Error(),
			Sources:        toSourceEntries(sources),
		})
		return nil, ErrGenerationFailed
	}

	answer := &Answer{AnswerText: answerText, Sources: sources}
	answer.QueryID, answer.HistoryRecorded = s.record(ctx, history.Entry{
		QueryText:      queryText,
		AnswerText:     answerText,
		TopK:           topK,
		ResponseTimeMS: elapsedMS(start),
		Success:        true,
		Sources:        toSourceEntries(sources),
	})

	s.logger.Info("Answered query",
		"top_k", topK,
		"sources", len(sources),
		"elapsed", time.Since(start),
		"history_recorded", answer.HistoryRecorded,
	)
	return answer, nil
}

// record writes the audit entry. The write survives the request being
// canceled; a query that produced an answer is recorded even if the
// client went away.
func (s *Service) record(ctx context.Context, entry history.Entry) (string, bool) {
	id, err := s.recorder.Record(context.WithoutCancel(ctx), entry)
	if err != nil {
		s.logger.Warn("Failed to record query history", "error", err)
		return "", false
	}
	return id, true
}

func toSourceEntries(sources []retriever.Result) []history.SourceEntry {
	entries := make([]history.SourceEntry, len(sources))
	for i, src := range sources {
		entries[i] = history.SourceEntry{
			Content:         src.Text,
			SimilarityScore: src.Score,
			FileName:        src.Metadata.FileName,
			Page:            src.Metadata.Page,
		}
	}
	return entries
}

func elapsedMS(start time.Time) *int64 {
	ms := time.Since(start).Milliseconds()
	return &ms
}
