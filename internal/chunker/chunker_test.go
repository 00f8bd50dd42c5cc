package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/advisor-rag/internal/corpus"
)

func doc(name, text string) corpus.Document {
	return corpus.Document{
		FileName: name,
		Pages:    []corpus.Page{{Number: 0, Text: text}},
	}
}

func TestChunkDocument_ShortDocumentSingleChunk(t *testing.T) {
	c := New(1000, 200)
	chunks, err := c.ChunkDocument(doc("short.txt", "A brief note."))
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	assert.Equal(t, "A brief note.", chunks[0].Text)
	assert.Equal(t, Span{Start: 0, End: 13}, chunks[0].Span)
	assert.Equal(t, "short.txt", chunks[0].Metadata.FileName)
	assert.Nil(t, chunks[0].Metadata.Page)
}

func TestChunkDocument_OverlappingWindows(t *testing.T) {
	text := strings.Repeat("a", 250)
	c := New(100, 20)

	chunks, err := c.ChunkDocument(doc("long.txt", text))
	require.NoError(t, err)

	// Windows advance by size-overlap: [0,100) [80,180) [160,250).
	require.Len(t, chunks, 3)
	assert.Equal(t, Span{Start: 0, End: 100}, chunks[0].Span)
	assert.Equal(t, Span{Start: 80, End: 180}, chunks[1].Span)
	assert.Equal(t, Span{Start: 160, End: 250}, chunks[2].Span)

	// Consecutive chunks share exactly the overlap.
	assert.Equal(t, chunks[0].Text[80:], chunks[1].Text[:20])
}

func TestChunkDocument_Deterministic(t *testing.T) {
	text := strings.Repeat("the quick brown fox ", 100)
	c := New(300, 50)

	first, err := c.ChunkDocument(doc("fox.txt", text))
	require.NoError(t, err)
	second, err := c.ChunkDocument(doc("fox.txt", text))
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Text, second[i].Text)
		assert.Equal(t, first[i].Span, second[i].Span)
	}
}

func TestChunkDocument_EmptyDocument(t *testing.T) {
	c := New(1000, 200)

	_, err := c.ChunkDocument(doc("empty.txt", ""))
	require.ErrorIs(t, err, ErrEmptyDocument)

	_, err = c.ChunkDocument(doc("blank.txt", "   \n\t  "))
	require.ErrorIs(t, err, ErrEmptyDocument)
}

func TestChunkDocument_MissingFileName(t *testing.T) {
	c := New(1000, 200)
	_, err := c.ChunkDocument(corpus.Document{Pages: []corpus.Page{{Text: "text"}}})
	require.ErrorIs(t, err, corpus.ErrMissingFileName)
}

func TestChunkDocument_MultiplePages(t *testing.T) {
	c := New(1000, 200)
	chunks, err := c.ChunkDocument(corpus.Document{
		FileName: "laws.pdf",
		Pages: []corpus.Page{
			{Number: 1, Text: "Page one text."},
			{Number: 2, Text: "Page two text."},
		},
	})
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	require.NotNil(t, chunks[0].Metadata.Page)
	assert.Equal(t, 1, *chunks[0].Metadata.Page)
	require.NotNil(t, chunks[1].Metadata.Page)
	assert.Equal(t, 2, *chunks[1].Metadata.Page)
	assert.NotEqual(t, chunks[0].ID, chunks[1].ID)
}

func TestChunkDocument_RuneOffsets(t *testing.T) {
	// Multi-byte characters count as one position each.
	text := strings.Repeat("é", 150)
	c := New(100, 0)

	chunks, err := c.ChunkDocument(doc("accents.txt", text))
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	assert.Equal(t, Span{Start: 0, End: 100}, chunks[0].Span)
	assert.Equal(t, Span{Start: 100, End: 150}, chunks[1].Span)
	assert.Equal(t, 100, len([]rune(chunks[0].Text)))
}

func TestChunkID_StableAcrossProcesses(t *testing.T) {
	span := Span{Start: 0, End: 100}
	id1 := ChunkID("laws.pdf", 3, span)
	id2 := ChunkID("laws.pdf", 3, span)
	assert.Equal(t, id1, id2)

	// Any component change yields a different identity.
	assert.NotEqual(t, id1, ChunkID("laws.pdf", 4, span))
	assert.NotEqual(t, id1, ChunkID("other.pdf", 3, span))
	assert.NotEqual(t, id1, ChunkID("laws.pdf", 3, Span{Start: 0, End: 101}))
}

func TestNew_CapsRunawayOverlap(t *testing.T) {
	// Overlap >= size would stop the window from advancing.
	c := New(100, 100)
	text := strings.Repeat("x", 500)

	chunks, err := c.ChunkDocument(doc("x.txt", text))
	require.NoError(t, err)
	assert.Less(t, len(chunks), 20)
}
