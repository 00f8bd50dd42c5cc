package storage

import (
	"github.com/bull/advisor-rag/internal/chunker"
	"github.com/bull/advisor-rag/internal/corpus"
)

// EmbeddedChunk is a chunk together with its embedding vector. Once
// indexed it is never mutated; a model change replaces the whole index.
type EmbeddedChunk struct {
	ID           string
	Text         string
	Span         chunker.Span
	Metadata     corpus.Metadata
	Vector       []float32
	ModelVersion string
}

// ScoredChunk is a search hit. The vector is not populated on results.
type ScoredChunk struct {
	Chunk *EmbeddedChunk
	Score float64
}

// CollectionName is the single Qdrant collection for all passages.
const CollectionName = "passages"
