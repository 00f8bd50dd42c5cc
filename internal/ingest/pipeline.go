// Package ingest orchestrates corpus loading, chunking, embedding and
// index writes as one transition-logged run.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bull/advisor-rag/internal/chunker"
	"github.com/bull/advisor-rag/internal/corpus"
	"github.com/bull/advisor-rag/internal/embedding"
	"github.com/bull/advisor-rag/internal/storage"
)

// State is the phase an ingestion run is in. A run starts Pending,
// then cycles Chunking, Embedding, Upserting once per document, and
// ends in Complete. Any phase can transition to Failed; Complete and
// Failed are terminal until the next run.
type State string

const (
	StatePending   State = "pending"
	StateChunking  State = "chunking"
	StateEmbedding State = "embedding"
	StateUpserting State = "upserting"
	StateComplete  State = "complete"
	StateFailed    State = "failed"
)

// Result contains statistics about one ingestion run.
type Result struct {
	State            State
	TotalDocs        int
	SuccessfulDocs   int
	FailedDocs       []FailedDoc
	TotalChunks      int
	Fingerprint      string
	ModelVersion     string
	SkippedUnchanged bool
	Duration         time.Duration
	StartedAt        time.Time
}

// FailedDoc is a document the run could not index.
type FailedDoc struct {
	FileName string
	Reason   string
}

// Pipeline runs ingestion end to end. At most one run executes at a
// time; a second Run while one is active fails fast with ErrInProgress
// instead of queueing. Reads against the index are never blocked.
type Pipeline struct {
	loader   corpus.Loader
	chunker  *chunker.Chunker
	embedder embedding.Embedder
	index    storage.VectorIndex
	logger   *slog.Logger

	runMu sync.Mutex // Held for the duration of a run.

	mu    sync.Mutex // Guards state and last.
	state State
	last  *Result
}

// NewPipeline creates an ingestion pipeline with the given components.
func NewPipeline(
	loader corpus.Loader,
	ch *chunker.Chunker,
	embedder embedding.Embedder,
	index storage.VectorIndex,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		loader:   loader,
		chunker:  ch,
		embedder: embedder,
		index:    index,
		logger:   logger,
		state:    StatePending,
	}
}

// State returns the phase of the current or most recent run.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// LastResult returns the statistics of the most recently finished run,
// or nil when no run has completed yet.
func (p *Pipeline) LastResult() *Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Pipeline) finish(result *Result, err error) (*Result, error) {
	if err != nil {
		result.State = StateFailed
	} else {
		result.State = StateComplete
	}
	p.mu.Lock()
	p.state = result.State
	p.last = result
	p.mu.Unlock()
	return result, err
}

// Run executes a full ingestion pass. When the corpus fingerprint
// matches the one recorded by the previous completed run, Run is a
// no-op: no embedding calls, no index writes. When the embedding model
// changed since the last run, the index is cleared and rebuilt from
// scratch; partial indexes mixing model versions are never left behind.
// After a fully successful pass, chunks the fresh corpus no longer
// produces (removed documents, trailing spans of shortened ones) are
// pruned from the index.
//
// A failed run may leave some documents upserted and others not. Chunk
// identities are deterministic, so the next successful run converges
// the index regardless.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if !p.runMu.TryLock() {
		return nil, ErrInProgress
	}
	defer p.runMu.Unlock()

	start := time.Now()
	result := &Result{
		StartedAt:    start,
		ModelVersion: p.embedder.ModelVersion(),
	}
	defer func() { result.Duration = time.Since(start) }()

	p.setState(StatePending)
	p.logger.Info("Starting ingestion", "model", result.ModelVersion)

	docs, err := p.loader.Load(ctx)
	if err != nil {
		return p.finish(result, fmt.Errorf("load corpus: %w", err))
	}
	if len(docs) == 0 {
		return p.finish(result, ErrEmptyCorpus)
	}
	result.TotalDocs = len(docs)

	result.Fingerprint = Fingerprint(docs, result.ModelVersion)

	lastFP, lastModel, err := p.index.Fingerprint(ctx)
	if err != nil {
		return p.finish(result, fmt.Errorf("read index fingerprint: %w", err))
	}
	if lastFP == result.Fingerprint {
		p.logger.Info("Corpus unchanged, skipping ingestion", "fingerprint", lastFP[:12])
		result.SuccessfulDocs = len(docs)
		result.SkippedUnchanged = true
		return p.finish(result, nil)
	}
	if lastModel != "" && lastModel != result.ModelVersion {
		p.logger.Warn("Embedding model changed, rebuilding index",
			"old", lastModel, "new", result.ModelVersion)
		if err := p.index.Clear(ctx); err != nil {
			return p.finish(result, fmt.Errorf("clear index: %w", err))
		}
	}

	var liveIDs []string
	for _, doc := range docs {
		ids, err := p.processDocument(ctx, doc)
		if err != nil {
			if ctx.Err() != nil {
				return p.finish(result, fmt.Errorf("process %s: %w", doc.FileName, err))
			}
			p.logger.Warn("Failed to process document", "file", doc.FileName, "error", err)
			result.FailedDocs = append(result.FailedDocs, FailedDoc{
				FileName: doc.FileName,
				Reason:   err.Error(),
			})
			continue // Skip unprocessable docs, continue with others.
		}
		result.SuccessfulDocs++
		result.TotalChunks += len(ids)
		liveIDs = append(liveIDs, ids...)
	}

	if result.SuccessfulDocs == 0 {
		return p.finish(result, fmt.Errorf("all %d documents failed", result.TotalDocs))
	}

	// Pruning and the fingerprint both wait until every document went
	// through: a partial run keeps the old chunks of failed documents
	// and is retried in full. Prune runs before the fingerprint is
	// recorded, so an interrupted prune cannot be mistaken for a
	// completed run.
	if len(result.FailedDocs) == 0 {
		if err := p.index.Prune(ctx, liveIDs); err != nil {
			return p.finish(result, fmt.Errorf("prune stale chunks: %w", err))
		}
		if err := p.index.SetFingerprint(ctx, result.Fingerprint, result.ModelVersion); err != nil {
			return p.finish(result, fmt.Errorf("record fingerprint: %w", err))
		}
	}

	p.logger.Info("Ingestion complete",
		"successful", result.SuccessfulDocs,
		"failed", len(result.FailedDocs),
		"chunks", result.TotalChunks,
		"duration", time.Since(start),
	)
	return p.finish(result, nil)
}

// processDocument chunks, embeds and upserts a single document.
// Returns the IDs of the chunks written.
func (p *Pipeline) processDocument(ctx context.Context, doc corpus.Document) ([]string, error) {
	p.setState(StateChunking)
	chunks, err := p.chunker.ChunkDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("chunk: %w", err)
	}
	p.logger.Debug("Chunked document", "file", doc.FileName, "chunks", len(chunks))

	p.setState(StateEmbedding)
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	p.setState(StateUpserting)
	ids := make([]string, len(chunks))
	embedded := make([]*storage.EmbeddedChunk, len(chunks))
	for i, chunk := range chunks {
		ids[i] = chunk.ID
		embedded[i] = &storage.EmbeddedChunk{
			ID:           chunk.ID,
			Text:         chunk.Text,
			Span:         chunk.Span,
			Metadata:     chunk.Metadata,
			Vector:       vectors[i],
			ModelVersion: p.embedder.ModelVersion(),
		}
	}
	if err := p.index.Upsert(ctx, embedded); err != nil {
		return nil, fmt.Errorf("upsert: %w", err)
	}

	p.logger.Info("Indexed document", "file", doc.FileName, "chunks", len(chunks))
	return ids, nil
}
