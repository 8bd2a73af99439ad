package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docrag-go/internal/budget"
	"github.com/54b3r/docrag-go/internal/logging"
)

// SystemPrompt is the fixed instruction sent with every query.
const SystemPrompt = "Answer the question strictly from the provided context."

// Answer is the result of a retrieval-augmented query.
type Answer struct {
	// Text is the generated answer.
	Text string

	// Context holds the chunk texts passed to the generator, closest first.
	Context []string
}

// Answerer runs the query pipeline: embed, retrieve, assemble context,
// generate. It holds no per-query state and is safe for concurrent use.
type Answerer struct {
	// retriever embeds the query and finds the nearest chunks.
	retriever Retriever

	// generator produces the final answer.
	generator Generator

	// maxContextTokens bounds the prompt size. Zero disables trimming.
	maxContextTokens int
}

// NewAnswerer constructs an Answerer. maxContextTokens <= 0 disables context
// trimming.
func NewAnswerer(retriever Retriever, generator Generator, maxContextTokens int) (*Answerer, error) {
	if retriever == nil {
		return nil, fmt.Errorf("rag: retriever must not be nil")
	}
	if generator == nil {
		return nil, fmt.Errorf("rag: generator must not be nil")
	}
	return &Answerer{
		retriever:        retriever,
		generator:        generator,
		maxContextTokens: maxContextTokens,
	}, nil
}

// BuildUserPrompt formats the retrieved context and the question into the
// user message sent to the generator.
func BuildUserPrompt(contextBlock, question string) string {
	return "Context:\n" + contextBlock + "\n\nQuestion: " + question
}

// Answer retrieves up to k chunks for query and asks the generator to answer
// from them. k <= 0 uses the retriever's default. It returns
// ErrNoRelevantContent when nothing is retrieved, and errors wrapping
// ErrEmbedding or ErrGeneration when a backend fails.
func (a *Answerer) Answer(ctx context.Context, query string, k int) (*Answer, error) {
	log := logging.FromContext(ctx)
	start := time.Now()

	hits, err := a.retriever.Retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, fmt.Errorf("rag: %w", ErrNoRelevantContent)
	}

	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}

	fixed := []*schema.Message{
		schema.SystemMessage(SystemPrompt),
		schema.UserMessage(BuildUserPrompt("", query)),
	}
	used := budget.FitContext(fixed, texts, a.maxContextTokens)
	if len(used) < len(texts) {
		log.Warn("rag: context trimmed to fit token budget",
			slog.Int("retrieved", len(texts)),
			slog.Int("kept", len(used)),
			slog.Int("max_context_tokens", a.maxContextTokens),
		)
	}

	contextBlock := strings.Join(used, "\n")
	text, err := a.generator.Complete(ctx, SystemPrompt, BuildUserPrompt(contextBlock, query))
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("rag: generation abandoned: %w", ctx.Err())
		}
		return nil, fmt.Errorf("rag: %w: %w", ErrGeneration, err)
	}

	log.Debug("rag: query answered",
		slog.Int("chunks", len(used)),
		slog.Duration("duration", time.Since(start)),
	)
	return &Answer{Text: text, Context: used}, nil
}
