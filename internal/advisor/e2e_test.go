package advisor_test

import (
	"context"
	"hash/fnv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/advisor-rag/internal/advisor"
	"github.com/bull/advisor-rag/internal/chunker"
	"github.com/bull/advisor-rag/internal/corpus"
	"github.com/bull/advisor-rag/internal/history"
	"github.com/bull/advisor-rag/internal/ingest"
	"github.com/bull/advisor-rag/internal/retriever"
	"github.com/bull/advisor-rag/internal/storage"
)

// bagEmbedder hashes words into buckets, giving real overlap-based
// similarity without a model behind it.
type bagEmbedder struct{}

func (bagEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := bagEmbedder{}.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (bagEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, 32)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			h.Write([]byte(word))
			v[h.Sum32()%32]++
		}
		for j := range v {
			v[j] += 0.01
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (bagEmbedder) ModelVersion() string { return "bag-v1" }
func (bagEmbedder) Dimension() int       { return 32 }

// echoGenerator answers with the top passage so the test can assert the
// answer is grounded in retrieved content.
type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, _ string, passages []retriever.Result) (string, error) {
	return "According to the corpus: " + passages[0].Text, nil
}

type staticLoader []corpus.Document

func (l staticLoader) Load(context.Context) ([]corpus.Document, error) { return l, nil }

func TestEndToEnd_IngestThenQuery(t *testing.T) {
	ctx := context.Background()

	embedder := bagEmbedder{}
	index := storage.NewMemoryIndex(embedder.Dimension())
	loader := staticLoader{
		{FileName: "laws.txt", Pages: []corpus.Page{{Text: "Law 1: eleven players per side."}}},
		{FileName: "cooking.txt", Pages: []corpus.Page{{Text: "Simmer the soup for twenty minutes."}}},
	}

	pipeline := ingest.NewPipeline(loader, chunker.New(1000, 200), embedder, index, nil)
	result, err := pipeline.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, result.TotalChunks)

	store, err := history.NewStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ret := retriever.NewRetriever(embedder, index, 20, nil)
	svc := advisor.NewService(ret, echoGenerator{}, store, 5, nil)

	answer, err := svc.Query(ctx, "how many players per side", 1)
	require.NoError(t, err)

	// The answer is grounded in the single best matching passage.
	assert.Contains(t, answer.AnswerText, "eleven players per side")
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "laws.txt", answer.Sources[0].Metadata.FileName)
	assert.Greater(t, answer.Sources[0].Score, 0.0)
	assert.True(t, answer.HistoryRecorded)

	// The audit record round-trips through SQLite.
	record, sources, err := store.Get(ctx, answer.QueryID)
	require.NoError(t, err)
	assert.True(t, record.Success)
	assert.Equal(t, "how many players per side", record.QueryText)
	require.Len(t, sources, 1)
	assert.Equal(t, "laws.txt", sources[0].FileName)

	stats, err := store.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalQueries)
	assert.Equal(t, 100.0, stats.SuccessRatePercent)
}

func TestEndToEnd_QueryBeforeIngest(t *testing.T) {
	ctx := context.Background()

	embedder := bagEmbedder{}
	index := storage.NewMemoryIndex(embedder.Dimension())

	store, err := history.NewStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ret := retriever.NewRetriever(embedder, index, 20, nil)
	svc := advisor.NewService(ret, echoGenerator{}, store, 5, nil)

	answer, err := svc.Query(ctx, "anything", 5)
	require.NoError(t, err)

	assert.Equal(t, advisor.NoInformationMessage, answer.AnswerText)
	assert.Empty(t, answer.Sources)
}
