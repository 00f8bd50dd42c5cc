package generator

import (
	"fmt"
	"strings"

	"github.com/bull/advisor-rag/internal/retriever"
)

// systemPrompt constrains answers to the supplied context only.
const systemPrompt = `You are a knowledgeable advisor. Answer the question using ONLY the context passages provided below. Each passage is labeled with its source document. If the context does not contain enough information to answer, say so explicitly instead of guessing. Cite the source document names you relied on.`

// BuildPrompt assembles the grounded user prompt: every retrieved
// passage as a labeled context block, then the question. Passage order
// matches retrieval order so the most relevant context comes first.
func BuildPrompt(query string, passages []retriever.Result) string {
	var b strings.Builder

	b.WriteString("Context passages:\n\n")
	for i, p := range passages {
		label := p.Metadata.FileName
		if p.Metadata.Page != nil {
			label = fmt.Sprintf("%s, page %d", label, *p.Metadata.Page)
		}
		fmt.Fprintf(&b, "[Source %d: %s (relevance %.2f)]\n%s\n\n", i+1, label, p.Score, p.Text)
	}

	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\n\nAnswer based strictly on the context passages above.")
	return b.String()
}
