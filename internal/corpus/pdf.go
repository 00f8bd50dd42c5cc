package corpus

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractPDFPages extracts plain text from a PDF file, one entry per page.
// Pages with no extractable text are skipped; page numbers are 1-based and
// preserved so source attributions can point at the original page.
func ExtractPDFPages(path string) ([]Page, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	var pages []Page
	for i := 1; i <= reader.NumPage(); i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}

		content, err := p.GetPlainText(nil)
		if err != nil {
			// Some pages fail font extraction; keep going with the rest.
			continue
		}

		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: content})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no text extracted from %s", path)
	}
	return pages, nil
}
