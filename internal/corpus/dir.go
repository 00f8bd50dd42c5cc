package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirLoader reads documents from a local data directory.
// Supported formats: .txt, .md (normalized to plain text), .pdf (per page).
// Other files are skipped.
type DirLoader struct {
	dir    string
	logger *slog.Logger
}

// NewDirLoader creates a loader for the given directory.
func NewDirLoader(dir string, logger *slog.Logger) *DirLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirLoader{dir: dir, logger: logger}
}

// Load reads all supported documents in the directory, sorted by file name
// so the corpus fingerprint is stable across runs.
func (l *DirLoader) Load(ctx context.Context) ([]Document, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read data directory %s: %w", l.dir, err)
	}

	var docs []Document
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := entry.Name()
		path := filepath.Join(l.dir, name)

		doc, err := l.loadFile(path, name)
		if err != nil {
			if errors.Is(err, ErrUnsupportedFormat) {
				l.logger.Debug("Skipping unsupported file", "file", name)
				continue
			}
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		docs = append(docs, doc)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].FileName < docs[j].FileName })
	l.logger.Info("Loaded corpus documents", "dir", l.dir, "count", len(docs))
	return docs, nil
}

// loadFile dispatches on file extension.
func (l *DirLoader) loadFile(path, name string) (Document, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt":
		raw, err := os.ReadFile(path)
		if err != nil {
			return Document{}, err
		}
		return Document{
			FileName: name,
			Source:   path,
			Pages:    []Page{{Number: 0, Text: string(raw)}},
		}, nil

	case ".md", ".markdown":
		raw, err := os.ReadFile(path)
		if err != nil {
			return Document{}, err
		}
		return Document{
			FileName: name,
			Source:   path,
			Pages:    []Page{{Number: 0, Text: PlainText(raw)}},
		}, nil

	case ".pdf":
		pages, err := ExtractPDFPages(path)
		if err != nil {
			return Document{}, err
		}
		return Document{FileName: name, Source: path, Pages: pages}, nil

	default:
		return Document{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}
