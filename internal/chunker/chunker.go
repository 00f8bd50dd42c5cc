// Package chunker splits documents into overlapping fixed-size segments.
package chunker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bull/advisor-rag/internal/corpus"
)

// ErrEmptyDocument is returned when a document contains no usable text.
var ErrEmptyDocument = errors.New("document is empty")

// chunkNamespace is the UUIDv5 namespace for chunk identities. IDs are a
// pure function of (file_name, page, span) so re-ingesting unchanged
// content upserts the same points.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("advisor-rag/chunks"))

// Span is a half-open [Start, End) character range within a page's text.
// Offsets count runes, not bytes, so spans never split a multi-byte
// character.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Chunk is one segment of a source document.
type Chunk struct {
	ID       string
	Text     string
	Span     Span
	Metadata corpus.Metadata
}

// Chunker produces chunks of at most Size characters with Overlap
// characters shared between consecutive chunks. Same document and same
// parameters always yield the identical chunk set.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. Overlap is capped at size/4 when it would
// otherwise make the window stop advancing.
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &Chunker{size: size, overlap: overlap}
}

// ChunkDocument splits every page of doc into overlapping chunks.
// A document shorter than the chunk size yields exactly one chunk per
// non-empty page. A document with no text at all is an ingestion error.
func (c *Chunker) ChunkDocument(doc corpus.Document) ([]Chunk, error) {
	if doc.FileName == "" {
		return nil, corpus.ErrMissingFileName
	}

	var chunks []Chunk
	for _, page := range doc.Pages {
		chunks = append(chunks, c.chunkPage(doc, page)...)
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, doc.FileName)
	}
	return chunks, nil
}

// chunkPage slides a fixed window over one page's text.
func (c *Chunker) chunkPage(doc corpus.Document, page corpus.Page) []Chunk {
	runes := []rune(page.Text)
	if len(strings.TrimSpace(page.Text)) == 0 {
		return nil
	}

	var pageNum *int
	if page.Number > 0 {
		n := page.Number
		pageNum = &n
	}

	step := c.size - c.overlap
	var chunks []Chunk
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}

		text := string(runes[start:end])
		if strings.TrimSpace(text) != "" {
			span := Span{Start: start, End: end}
			chunks = append(chunks, Chunk{
				ID:   ChunkID(doc.FileName, page.Number, span),
				Text: text,
				Span: span,
				Metadata: corpus.Metadata{
					FileName: doc.FileName,
					Page:     pageNum,
					Source:   doc.Source,
				},
			})
		}

		if end == len(runes) {
			break
		}
	}

	return chunks
}

// ChunkID derives the deterministic identity of a chunk from its source
// document, page and span.
func ChunkID(fileName string, page int, span Span) string {
	key := fmt.Sprintf("%s#%d:%d-%d", fileName, page, span.Start, span.End)
	return uuid.NewSHA1(chunkNamespace, []byte(key)).String()
}
