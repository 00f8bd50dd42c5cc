package storage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is an in-process VectorIndex using brute-force cosine
// similarity. It backs unit tests and small local deployments; the Qdrant
// index is the production implementation.
type MemoryIndex struct {
	mu           sync.RWMutex
	dimension    int
	chunks       map[string]*EmbeddedChunk
	order        []string // Insertion order, for deterministic tie-breaks.
	fingerprint  string
	modelVersion string
}

var _ VectorIndex = (*MemoryIndex)(nil)

// NewMemoryIndex creates an empty index expecting vectors of the given
// dimension.
func NewMemoryIndex(dimension int) *MemoryIndex {
	return &MemoryIndex{
		dimension: dimension,
		chunks:    make(map[string]*EmbeddedChunk),
	}
}

// Upsert inserts or replaces chunks by ID. Replaced chunks keep their
// original insertion position so search ordering stays stable.
func (s *MemoryIndex) Upsert(_ context.Context, chunks []*EmbeddedChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, chunk := range chunks {
		if len(chunk.Vector) != s.dimension {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(chunk.Vector), s.dimension)
		}
		if _, exists := s.chunks[chunk.ID]; !exists {
			s.order = append(s.order, chunk.ID)
		}
		cp := *chunk
		s.chunks[chunk.ID] = &cp
	}
	return nil
}

// Search scans all chunks and returns the top k by cosine similarity,
// ties broken by insertion order.
func (s *MemoryIndex) Search(_ context.Context, vector []float32, k int, modelVersion string) ([]*ScoredChunk, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), s.dimension)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.modelVersion != "" && s.modelVersion != modelVersion {
		return nil, fmt.Errorf("%w: index has %q, query has %q",
			ErrModelVersionMismatch, s.modelVersion, modelVersion)
	}

	results := make([]*ScoredChunk, 0, len(s.order))
	for _, id := range s.order {
		chunk := s.chunks[id]
		if chunk.ModelVersion != modelVersion {
			continue
		}
		cp := *chunk
		cp.Vector = nil
		results = append(results, &ScoredChunk{
			Chunk: &cp,
			Score: cosineSimilarity(vector, chunk.Vector),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Prune drops chunks whose IDs are not in keep, preserving the
// insertion order of the survivors.
func (s *MemoryIndex) Prune(_ context.Context, keep []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keepSet := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		keepSet[id] = struct{}{}
	}

	order := s.order[:0]
	for _, id := range s.order {
		if _, ok := keepSet[id]; ok {
			order = append(order, id)
		} else {
			delete(s.chunks, id)
		}
	}
	s.order = order
	return nil
}

// Count returns the number of indexed chunks.
func (s *MemoryIndex) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

// FileNames returns the distinct source documents, sorted.
func (s *MemoryIndex) FileNames(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, chunk := range s.chunks {
		seen[chunk.Metadata.FileName] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Fingerprint returns the last recorded corpus fingerprint.
func (s *MemoryIndex) Fingerprint(_ context.Context) (string, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fingerprint, s.modelVersion, nil
}

// SetFingerprint records the fingerprint of a completed ingestion run.
func (s *MemoryIndex) SetFingerprint(_ context.Context, fingerprint, modelVersion string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fingerprint = fingerprint
	s.modelVersion = modelVersion
	return nil
}

// Clear removes all chunks and the fingerprint.
func (s *MemoryIndex) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = make(map[string]*EmbeddedChunk)
	s.order = nil
	s.fingerprint = ""
	s.modelVersion = ""
	return nil
}

// Health always succeeds; the index lives in process.
func (s *MemoryIndex) Health(_ context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryIndex) Close() error { return nil }

// cosineSimilarity returns the cosine of the angle between a and b,
// or 0 when either vector is zero.
func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
