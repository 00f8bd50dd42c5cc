package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/advisor-rag/internal/corpus"
)

const testModel = "test-model-v1"

func chunk(id string, file string, vector []float32) *EmbeddedChunk {
	return &EmbeddedChunk{
		ID:           id,
		Text:         "text of " + id,
		Metadata:     corpus.Metadata{FileName: file},
		Vector:       vector,
		ModelVersion: testModel,
	}
}

func TestMemoryIndex_UpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(3)

	c := chunk("c1", "a.txt", []float32{1, 0, 0})
	require.NoError(t, idx.Upsert(ctx, []*EmbeddedChunk{c}))
	require.NoError(t, idx.Upsert(ctx, []*EmbeddedChunk{c}))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryIndex_UpsertReplacesByID(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(3)

	require.NoError(t, idx.Upsert(ctx, []*EmbeddedChunk{chunk("c1", "a.txt", []float32{1, 0, 0})}))

	updated := chunk("c1", "a.txt", []float32{0, 1, 0})
	updated.Text = "updated text"
	require.NoError(t, idx.Upsert(ctx, []*EmbeddedChunk{updated}))

	results, err := idx.Search(ctx, []float32{0, 1, 0}, 1, testModel)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "updated text", results[0].Chunk.Text)
}

func TestMemoryIndex_SearchOrdering(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)

	require.NoError(t, idx.Upsert(ctx, []*EmbeddedChunk{
		chunk("far", "a.txt", []float32{0, 1}),
		chunk("near", "a.txt", []float32{1, 0}),
		chunk("mid", "a.txt", []float32{1, 1}),
	}))

	results, err := idx.Search(ctx, []float32{1, 0}, 3, testModel)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "near", results[0].Chunk.ID)
	assert.Equal(t, "mid", results[1].Chunk.ID)
	assert.Equal(t, "far", results[2].Chunk.ID)
	assert.Greater(t, results[0].Score, results[1].Score)

	// Vectors never leave the index.
	assert.Nil(t, results[0].Chunk.Vector)
}

func TestMemoryIndex_SearchTiesByInsertionOrder(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)

	// Identical vectors, identical scores.
	require.NoError(t, idx.Upsert(ctx, []*EmbeddedChunk{
		chunk("first", "a.txt", []float32{1, 0}),
		chunk("second", "a.txt", []float32{1, 0}),
	}))

	for range 5 {
		results, err := idx.Search(ctx, []float32{1, 0}, 2, testModel)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "first", results[0].Chunk.ID)
		assert.Equal(t, "second", results[1].Chunk.ID)
	}
}

func TestMemoryIndex_SearchEmptyIndex(t *testing.T) {
	idx := NewMemoryIndex(2)
	results, err := idx.Search(context.Background(), []float32{1, 0}, 5, testModel)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryIndex_SearchKLargerThanIndex(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)
	require.NoError(t, idx.Upsert(ctx, []*EmbeddedChunk{chunk("only", "a.txt", []float32{1, 0})}))

	results, err := idx.Search(ctx, []float32{1, 0}, 100, testModel)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestMemoryIndex_ModelVersionMismatch(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)
	require.NoError(t, idx.Upsert(ctx, []*EmbeddedChunk{chunk("c1", "a.txt", []float32{1, 0})}))
	require.NoError(t, idx.SetFingerprint(ctx, "fp", testModel))

	_, err := idx.Search(ctx, []float32{1, 0}, 1, "other-model")
	require.ErrorIs(t, err, ErrModelVersionMismatch)
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(3)

	err := idx.Upsert(ctx, []*EmbeddedChunk{chunk("c1", "a.txt", []float32{1, 0})})
	require.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = idx.Search(ctx, []float32{1, 0}, 1, testModel)
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestMemoryIndex_Prune(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)
	require.NoError(t, idx.Upsert(ctx, []*EmbeddedChunk{
		chunk("c1", "a.txt", []float32{1, 0}),
		chunk("c2", "a.txt", []float32{0, 1}),
		chunk("c3", "b.txt", []float32{1, 1}),
	}))

	require.NoError(t, idx.Prune(ctx, []string{"c1", "c2"}))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	names, err := idx.FileNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, names)

	// Survivors keep their insertion order for tie-breaks.
	results, err := idx.Search(ctx, []float32{1, 1}, 3, testModel)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "c1", results[0].Chunk.ID)
	assert.Equal(t, "c2", results[1].Chunk.ID)
}

func TestMemoryIndex_FileNames(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)
	require.NoError(t, idx.Upsert(ctx, []*EmbeddedChunk{
		chunk("c1", "b.txt", []float32{1, 0}),
		chunk("c2", "a.txt", []float32{0, 1}),
		chunk("c3", "a.txt", []float32{1, 1}),
	}))

	names, err := idx.FileNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, names)
}

func TestMemoryIndex_FingerprintRoundTrip(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)

	fp, model, err := idx.Fingerprint(ctx)
	require.NoError(t, err)
	assert.Empty(t, fp)
	assert.Empty(t, model)

	require.NoError(t, idx.SetFingerprint(ctx, "abc123", testModel))
	fp, model, err = idx.Fingerprint(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc123", fp)
	assert.Equal(t, testModel, model)
}

func TestMemoryIndex_Clear(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)
	require.NoError(t, idx.Upsert(ctx, []*EmbeddedChunk{chunk("c1", "a.txt", []float32{1, 0})}))
	require.NoError(t, idx.SetFingerprint(ctx, "fp", testModel))

	require.NoError(t, idx.Clear(ctx))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	fp, model, err := idx.Fingerprint(ctx)
	require.NoError(t, err)
	assert.Empty(t, fp)
	assert.Empty(t, model)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}
