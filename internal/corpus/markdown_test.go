package corpus

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText_StripsFormatting(t *testing.T) {
	input := "# Title\n\nSome **bold** and *italic* text with a [link](https://example.com).\n"

	out := PlainText([]byte(input))

	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "Some bold and italic text with a link.")
	assert.NotContains(t, out, "**")
	assert.NotContains(t, out, "](")
}

func TestPlainText_KeepsCodeBlocks(t *testing.T) {
	input := "Example:\n\n```go\nfunc main() {}\n```\n"

	out := PlainText([]byte(input))

	assert.Contains(t, out, "func main() {}")
	assert.NotContains(t, out, "```")
}

func TestPlainText_SeparatesBlocks(t *testing.T) {
	input := "# One\n\nFirst paragraph.\n\n# Two\n\nSecond paragraph.\n"

	out := PlainText([]byte(input))

	assert.Contains(t, out, "One\n\nFirst paragraph.")
	assert.Contains(t, out, "Two\n\nSecond paragraph.")
	assert.False(t, strings.Contains(out, "\n\n\n"), "runs of blank lines should collapse")
}

func TestPlainText_Empty(t *testing.T) {
	assert.Equal(t, "", PlainText(nil))
	assert.Equal(t, "", PlainText([]byte("   \n")))
}
