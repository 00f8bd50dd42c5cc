package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/bull/advisor-rag/internal/corpus"
)

// Fingerprint hashes the corpus contents together with the embedding
// model version. Documents must already be sorted by file name; loaders
// guarantee that. Equal fingerprints mean a re-ingestion would change
// nothing in the index.
func Fingerprint(docs []corpus.Document, modelVersion string) string {
	h := sha256.New()
	fmt.Fprintf(h, "model=%s\n", modelVersion)

	for _, doc := range docs {
		dh := sha256.New()
		for _, page := range doc.Pages {
			dh.Write([]byte(page.Text))
			dh.Write([]byte{0})
		}
		fmt.Fprintf(h, "%s=%s\n", doc.FileName, hex.EncodeToString(dh.Sum(nil)))
	}

	return hex.EncodeToString(h.Sum(nil))
}
