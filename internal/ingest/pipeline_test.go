package ingest

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/advisor-rag/internal/chunker"
	"github.com/bull/advisor-rag/internal/corpus"
	"github.com/bull/advisor-rag/internal/storage"
)

// fakeEmbedder produces deterministic bag-of-words vectors and counts
// how many texts it embedded.
type fakeEmbedder struct {
	model string
	calls atomic.Int64
}

func newFakeEmbedder(model string) *fakeEmbedder {
	return &fakeEmbedder{model: model}
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(int64(len(texts)))
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, f.Dimension())
		for _, word := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			h.Write([]byte(word))
			v[h.Sum32()%uint32(len(v))]++
		}
		// Keep every component positive so cosine similarity stays > 0.
		for j := range v {
			v[j] += 0.01
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (f *fakeEmbedder) ModelVersion() string { return f.model }
func (f *fakeEmbedder) Dimension() int       { return 32 }

// fixedLoader serves a static corpus.
type fixedLoader struct {
	docs []corpus.Document
}

func (l *fixedLoader) Load(context.Context) ([]corpus.Document, error) {
	return l.docs, nil
}

func testDocs() []corpus.Document {
	return []corpus.Document{
		{FileName: "laws.txt", Pages: []corpus.Page{{Text: "Law 1: eleven players per side."}}},
		{FileName: "rules.txt", Pages: []corpus.Page{{Text: "Rule 2: play fair at all times."}}},
	}
}

func newTestPipeline(docs []corpus.Document) (*Pipeline, *fakeEmbedder, *storage.MemoryIndex) {
	embedder := newFakeEmbedder("fake-v1")
	index := storage.NewMemoryIndex(embedder.Dimension())
	p := NewPipeline(&fixedLoader{docs: docs}, chunker.New(1000, 200), embedder, index, nil)
	return p, embedder, index
}

func TestPipeline_Run(t *testing.T) {
	ctx := context.Background()
	p, _, index := newTestPipeline(testDocs())

	result, err := p.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, StateComplete, result.State)
	assert.Equal(t, 2, result.TotalDocs)
	assert.Equal(t, 2, result.SuccessfulDocs)
	assert.Equal(t, 2, result.TotalChunks)
	assert.False(t, result.SkippedUnchanged)
	assert.NotEmpty(t, result.Fingerprint)

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	fp, model, err := index.Fingerprint(ctx)
	require.NoError(t, err)
	assert.Equal(t, result.Fingerprint, fp)
	assert.Equal(t, "fake-v1", model)
}

func TestPipeline_RunIdempotent(t *testing.T) {
	ctx := context.Background()
	p, embedder, index := newTestPipeline(testDocs())

	_, err := p.Run(ctx)
	require.NoError(t, err)
	firstCalls := embedder.calls.Load()
	firstCount, err := index.Count(ctx)
	require.NoError(t, err)

	// Unchanged corpus: no embedding calls, no index writes.
	result, err := p.Run(ctx)
	require.NoError(t, err)

	assert.True(t, result.SkippedUnchanged)
	assert.Equal(t, firstCalls, embedder.calls.Load())

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, firstCount, count)
}

func TestPipeline_RunReingestsChangedCorpus(t *testing.T) {
	ctx := context.Background()
	docs := testDocs()
	loader := &fixedLoader{docs: docs}
	embedder := newFakeEmbedder("fake-v1")
	index := storage.NewMemoryIndex(embedder.Dimension())
	p := NewPipeline(loader, chunker.New(1000, 200), embedder, index, nil)

	_, err := p.Run(ctx)
	require.NoError(t, err)

	loader.docs = append(docs, corpus.Document{
		FileName: "extra.txt",
		Pages:    []corpus.Page{{Text: "Extra content."}},
	})

	result, err := p.Run(ctx)
	require.NoError(t, err)

	assert.False(t, result.SkippedUnchanged)
	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestPipeline_RemovedDocumentPruned(t *testing.T) {
	ctx := context.Background()
	docs := testDocs()
	loader := &fixedLoader{docs: docs}
	embedder := newFakeEmbedder("fake-v1")
	index := storage.NewMemoryIndex(embedder.Dimension())
	p := NewPipeline(loader, chunker.New(1000, 200), embedder, index, nil)

	_, err := p.Run(ctx)
	require.NoError(t, err)

	// Drop rules.txt from the corpus; its chunks must not survive.
	loader.docs = docs[:1]

	result, err := p.Run(ctx)
	require.NoError(t, err)
	assert.False(t, result.SkippedUnchanged)

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	names, err := index.FileNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"laws.txt"}, names)
}

func TestPipeline_ModelChangeRebuildsIndex(t *testing.T) {
	ctx := context.Background()
	loader := &fixedLoader{docs: testDocs()}
	v1 := newFakeEmbedder("fake-v1")
	index := storage.NewMemoryIndex(v1.Dimension())

	_, err := NewPipeline(loader, chunker.New(1000, 200), v1, index, nil).Run(ctx)
	require.NoError(t, err)

	v2 := newFakeEmbedder("fake-v2")
	result, err := NewPipeline(loader, chunker.New(1000, 200), v2, index, nil).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, StateComplete, result.State)

	// Every surviving vector carries the new model version.
	_, model, err := index.Fingerprint(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fake-v2", model)

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPipeline_EmptyDocumentReported(t *testing.T) {
	ctx := context.Background()
	docs := append(testDocs(), corpus.Document{
		FileName: "empty.txt",
		Pages:    []corpus.Page{{Text: "   "}},
	})
	p, _, _ := newTestPipeline(docs)

	result, err := p.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, result.SuccessfulDocs)
	require.Len(t, result.FailedDocs, 1)
	assert.Equal(t, "empty.txt", result.FailedDocs[0].FileName)
	assert.Contains(t, result.FailedDocs[0].Reason, "empty")
}

func TestPipeline_EmptyCorpus(t *testing.T) {
	p, _, _ := newTestPipeline(nil)
	_, err := p.Run(context.Background())
	require.ErrorIs(t, err, ErrEmptyCorpus)
	assert.Equal(t, StateFailed, p.State())
}

func TestPipeline_SingleWriter(t *testing.T) {
	// Hold the run lock, then verify a second Run fails fast.
	p, _, _ := newTestPipeline(testDocs())

	p.runMu.Lock()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := p.Run(context.Background())
		assert.ErrorIs(t, err, ErrInProgress)
	}()
	wg.Wait()
	p.runMu.Unlock()

	// The lock is free again, ingestion proceeds.
	_, err := p.Run(context.Background())
	require.NoError(t, err)
}

func TestFingerprint(t *testing.T) {
	docs := testDocs()

	assert.Equal(t, Fingerprint(docs, "m1"), Fingerprint(docs, "m1"))
	assert.NotEqual(t, Fingerprint(docs, "m1"), Fingerprint(docs, "m2"))

	changed := testDocs()
	changed[0].Pages[0].Text += " amended"
	assert.NotEqual(t, Fingerprint(docs, "m1"), Fingerprint(changed, "m1"))
}
