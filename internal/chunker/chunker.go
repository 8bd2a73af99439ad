// Package chunker splits document text into word windows small enough to
// embed. Splitting is pure and deterministic: the same text and window size
// always produce the same chunks.
package chunker

import "strings"

// DefaultMaxWords is the window size used when the caller passes a
// non-positive value.
const DefaultMaxWords = 256

// Chunk splits text on Unicode whitespace into consecutive, non-overlapping
// windows of at most maxWords words. Words inside a chunk are joined by a
// single space, so joining the chunks with single spaces reproduces the
// whitespace-normalised input. Empty or whitespace-only text yields no
// chunks.
func Chunk(text string, maxWords int) []string {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	chunks := make([]string, 0, (len(words)+maxWords-1)/maxWords)
	for start := 0; start < len(words); start += maxWords {
		end := min(start+maxWords, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}
