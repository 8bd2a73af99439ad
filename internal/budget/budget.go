// Package budget provides token budget estimation for generation prompts.
// Because docrag supports multiple LLM backends with different tokenizers,
// this package uses a conservative character-based heuristic:
// 1 token ≈ 4 characters (English prose and code).
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input budget in tokens for a
	// single query prompt. Fits within 8k-context models with room for the
	// answer. Override with RAG_MAX_CONTEXT_TOKENS.
	DefaultMaxContextTokens = 6000

	// joinOverhead is charged per retrieved chunk for the "\n" separator.
	joinOverhead = 1
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Per-message overhead is ~4 tokens in most APIs.
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// FitContext returns the longest prefix of chunks whose estimated size, added
// to the fixed prompt messages, stays within maxTokens. chunks are expected
// closest-first, so the least relevant are dropped. The first chunk is always
// kept: a query with retrieved content never goes to the model without it.
// maxTokens <= 0 disables trimming.
func FitContext(fixed []*schema.Message, chunks []string, maxTokens int) []string {
	if len(chunks) <= 1 || maxTokens <= 0 {
		return chunks
	}

	used := EstimateMessages(fixed) + Estimate(chunks[0]) + joinOverhead
	n := 1
	for n < len(chunks) {
		cost := Estimate(chunks[n]) + joinOverhead
		if used+cost > maxTokens {
			break
		}
		used += cost
		n++
	}
	return chunks[:n]
}
