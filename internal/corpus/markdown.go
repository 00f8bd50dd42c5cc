package corpus

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// PlainText strips markdown formatting from source, keeping the readable
// text. Headings and paragraphs are separated by blank lines so the chunker
// keeps natural boundaries; code blocks are kept verbatim.
func PlainText(source []byte) string {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			switch n.Kind() {
			case ast.KindHeading, ast.KindParagraph, ast.KindListItem,
				ast.KindBlockquote, ast.KindFencedCodeBlock, ast.KindCodeBlock:
				buf.WriteString("\n\n")
			}
			return ast.WalkContinue, nil
		}

		switch t := n.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.CodeSpan:
			// Children are Text nodes, handled above.
		case *ast.AutoLink:
			buf.Write(t.URL(source))
		case *ast.FencedCodeBlock:
			writeLines(&buf, source, t)
			return ast.WalkSkipChildren, nil
		case *ast.CodeBlock:
			writeLines(&buf, source, t)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return normalizeBlankLines(buf.String())
}

// writeLines copies a block node's raw line segments into buf.
func writeLines(buf *bytes.Buffer, source []byte, n ast.Node) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
}

// normalizeBlankLines collapses runs of 3+ newlines to exactly two and
// trims surrounding whitespace.
func normalizeBlankLines(s string) string {
	var out bytes.Buffer
	newlines := 0
	for _, r := range s {
		if r == '\n' {
			newlines++
			if newlines <= 2 {
				out.WriteRune(r)
			}
			continue
		}
		newlines = 0
		out.WriteRune(r)
	}
	return string(bytes.TrimSpace(out.Bytes()))
}
