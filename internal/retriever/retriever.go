// Package retriever answers similarity queries against the vector index.
package retriever

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bull/advisor-rag/internal/corpus"
	"github.com/bull/advisor-rag/internal/embedding"
	"github.com/bull/advisor-rag/internal/storage"
)

// Result is one retrieved passage with its relevance to the query.
// Score is cosine similarity clamped to [0, 1].
type Result struct {
	Text     string
	Score    float64
	Metadata corpus.Metadata
}

// Retriever embeds a query once and finds the most similar indexed
// chunks. Stateless between calls and safe for concurrent use.
type Retriever struct {
	embedder embedding.Embedder
	index    storage.VectorIndex
	maxK     int
	logger   *slog.Logger
}

// NewRetriever creates a retriever capped at maxK results per query.
func NewRetriever(embedder embedding.Embedder, index storage.VectorIndex, maxK int, logger *slog.Logger) *Retriever {
	if maxK <= 0 {
		maxK = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		maxK:     maxK,
		logger:   logger,
	}
}

// MaxK returns the result-count ceiling.
func (r *Retriever) MaxK() int { return r.maxK }

// Retrieve returns up to k passages ordered by descending similarity.
// k is clamped to [1, maxK]. An empty index yields an empty slice, not
// an error, and skips the embedding call entirely.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]Result, error) {
	if k < 1 {
		k = 1
	}
	if k > r.maxK {
		k = r.maxK
	}

	count, err := r.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count index: %w", err)
	}
	if count == 0 {
		r.logger.Debug("Index is empty, nothing to retrieve")
		return []Result{}, nil
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	scored, err := r.index.Search(ctx, vector, k, r.embedder.ModelVersion())
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	results := make([]Result, len(scored))
	for i, s := range scored {
		results[i] = Result{
			Text:     s.Chunk.Text,
			Score:    clampScore(s.Score),
			Metadata: s.Chunk.Metadata,
		}
	}

	r.logger.Debug("Retrieved passages", "requested", k, "returned", len(results))
	return results, nil
}

// clampScore bounds cosine similarity to [0, 1]. Negative similarity
// carries no useful relevance signal for ranking display.
func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
