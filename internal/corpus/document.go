// Package corpus loads reference documents from their sources and
// normalizes them into plain text ready for chunking.
package corpus

import (
	"context"
	"errors"
)

var (
	// ErrMissingFileName is returned when document metadata lacks the
	// required file_name field.
	ErrMissingFileName = errors.New("document metadata missing file_name")

	// ErrUnsupportedFormat is returned for files the loaders cannot parse.
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

// Metadata identifies where a passage came from. FileName is required and
// must name an ingested document; Page and Source are optional.
type Metadata struct {
	FileName string `json:"file_name"`
	Page     *int   `json:"page,omitempty"`
	Source   string `json:"source,omitempty"`
}

// Validate checks the required fields.
func (m Metadata) Validate() error {
	if m.FileName == "" {
		return ErrMissingFileName
	}
	return nil
}

// Page is one unit of extracted text. Number is 1-based for paged formats
// (PDF); 0 means the document has no page structure.
type Page struct {
	Number int
	Text   string
}

// Document is a loaded source document, split into pages where the format
// has them. Text content is already normalized to plain text.
type Document struct {
	FileName string
	Source   string // Origin path or URL.
	Pages    []Page
}

// Loader produces the documents of a corpus.
type Loader interface {
	Load(ctx context.Context) ([]Document, error)
}
