package chunker

import (
	"strings"

	"github.com/dgallion1/docdigest/internal/doctree"
)

// EstimateTokens gives a rough token count from the word count.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	// Roughly 1.33 tokens per word for English text.
	tokens := int(float64(words) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// OversizedChunks returns the indices of chunks whose estimated token count
// exceeds budget. A budget <= 0 disables the check.
func OversizedChunks(chunks []doctree.Chunk, budget int) []int {
	if budget <= 0 {
		return nil
	}
	var out []int
	for _, c := range chunks {
		if EstimateTokens(c.Text) > budget {
			out = append(out, c.Index)
		}
	}
	return out
}
