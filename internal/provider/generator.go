package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docrag-go/internal/budget"
	"github.com/54b3r/docrag-go/internal/logging"
	"github.com/54b3r/docrag-go/internal/rag"
)

// Generator adapts an eino chat model to rag.Generator. The model runs inside
// a compiled eino chain so globally registered callbacks (tracing) observe
// every call.
type Generator struct {
	// runnable is the compiled single-node chain around the chat model.
	runnable compose.Runnable[[]*schema.Message, *schema.Message]

	// name labels the backend in logs (e.g. "ollama").
	name string

	// opts are applied to every call.
	opts []model.Option
}

// compile-time interface check
var _ rag.Generator = (*Generator)(nil)

// NewGenerator compiles m into a chain. tuning values of zero leave the
// model's own defaults in place.
func NewGenerator(ctx context.Context, m model.BaseChatModel, name string, tuning SharedTuning) (*Generator, error) {
	if m == nil {
		return nil, fmt.Errorf("provider: chat model must not be nil")
	}
	runnable, err := compose.NewChain[[]*schema.Message, *schema.Message]().
		AppendChatModel(m).
		Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("provider: compile chain: %w", err)
	}

	var opts []model.Option
	if tuning.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(tuning.MaxTokens))
	}
	if tuning.Temperature > 0 {
		opts = append(opts, model.WithTemperature(tuning.Temperature))
	}
	return &Generator{runnable: runnable, name: name, opts: opts}, nil
}

// Complete sends the system and user messages and returns the answer text.
// An empty answer is an error.
func (g *Generator) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	msgs := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt),
	}

	log := logging.FromContext(ctx)
	start := time.Now()

	out, err := g.runnable.Invoke(ctx, msgs, compose.WithChatModelOption(g.opts...))
	if err != nil {
		return "", fmt.Errorf("provider: %s: %w", g.name, err)
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return "", fmt.Errorf("provider: %s: empty response", g.name)
	}

	log.Debug("provider: generation complete",
		slog.String("backend", g.name),
		slog.Int("prompt_tokens_est", budget.EstimateMessages(msgs)),
		slog.Duration("duration", time.Since(start)),
	)
	return out.Content, nil
}
