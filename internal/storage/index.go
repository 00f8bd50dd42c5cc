package storage

import "context"

// VectorIndex persists embedded chunks and answers k-nearest-neighbor
// queries. Implementations must be safe for concurrent readers and
// concurrent independent writers.
//
// The index holds vectors from exactly one embedding model at a time.
// Search rejects queries tagged with a different model version; switching
// models requires Clear followed by a full re-ingestion.
type VectorIndex interface {
	// Upsert inserts or replaces chunks by identity. Idempotent.
	Upsert(ctx context.Context, chunks []*EmbeddedChunk) error

	// Search returns at most k chunks ordered by descending similarity,
	// ties broken by insertion order. An empty index returns an empty
	// slice. modelVersion must match the index's active model.
	Search(ctx context.Context, vector []float32, k int, modelVersion string) ([]*ScoredChunk, error)

	// Prune deletes every chunk whose ID is not in keep. Run after a
	// completed ingestion pass so chunks from removed or shortened
	// documents do not outlive their source.
	Prune(ctx context.Context, keep []string) error

	// Count returns the number of indexed chunks.
	Count(ctx context.Context) (int, error)

	// FileNames returns the distinct source documents in the index.
	FileNames(ctx context.Context) ([]string, error)

	// Fingerprint returns the corpus fingerprint of the last completed
	// ingestion run, with the model version it was embedded under.
	// Both are empty when nothing was ingested yet.
	Fingerprint(ctx context.Context) (fingerprint, modelVersion string, err error)

	// SetFingerprint records the fingerprint after a completed run.
	SetFingerprint(ctx context.Context, fingerprint, modelVersion string) error

	// Clear removes everything, including the fingerprint.
	Clear(ctx context.Context) error

	// Health reports whether the store is reachable.
	Health(ctx context.Context) error

	Close() error
}
