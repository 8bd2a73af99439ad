// Package ragtest provides deterministic fakes of the rag collaborator
// interfaces for use in tests.
package ragtest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/54b3r/docrag-go/internal/rag"
)

// WordEmbedder is a bag-of-words embedder. Each distinct lower-cased word is
// assigned its own dimension on first sight, so texts sharing words have a
// positive cosine similarity and texts sharing none are orthogonal. It
// supports at most Dims distinct words.
type WordEmbedder struct {
	// Dims is the vector length produced (0 = rag.Dimensions).
	Dims int

	// FailOn makes the n-th call (1-based) return Err. Zero never fails.
	FailOn int

	// Err is returned on the failing call (default: a generic error).
	Err error

	mu    sync.Mutex
	words map[string]int
	calls int
}

// Embed returns the bag-of-words vector for text.
func (w *WordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.calls++
	if w.FailOn > 0 && w.calls == w.FailOn {
		err := w.Err
		if err == nil {
			err = errors.New("embedding backend unavailable")
		}
		return nil, err
	}

	dims := w.Dims
	if dims <= 0 {
		dims = rag.Dimensions
	}
	if w.words == nil {
		w.words = make(map[string]int)
	}

	vec := make([]float32, dims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		i, ok := w.words[word]
		if !ok {
			i = len(w.words) % dims
			w.words[word] = i
		}
		vec[i]++
	}
	return vec, nil
}

// Calls returns how many times Embed has been called.
func (w *WordEmbedder) Calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

// Generator records the last prompt pair and returns a canned answer.
type Generator struct {
	// Answer is returned by Complete (default: "answer").
	Answer string

	// Err, when set, is returned instead of an answer.
	Err error

	mu     sync.Mutex
	system string
	user   string
	calls  int
}

// Complete records the prompts and returns Answer or Err. It honours
// cancellation of ctx.
func (g *Generator) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls++
	g.system, g.user = systemPrompt, userPrompt
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if g.Err != nil {
		return "", g.Err
	}
	if g.Answer == "" {
		return "answer", nil
	}
	return g.Answer, nil
}

// Last returns the most recent system and user prompts.
func (g *Generator) Last() (system, user string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.system, g.user
}

// Calls returns how many times Complete has been called.
func (g *Generator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// FailingIndex wraps a VectorIndex and fails InsertBatch with Err.
type FailingIndex struct {
	rag.VectorIndex

	// Err is returned by InsertBatch and Insert.
	Err error
}

// Insert always fails.
func (f *FailingIndex) Insert(context.Context, rag.Entry) error { return f.Err }

// InsertBatch always fails.
func (f *FailingIndex) InsertBatch(context.Context, []rag.Entry) error { return f.Err }

// LateFailingIndex wraps a VectorIndex, lets InsertBatch apply and then
// returns Err, like a backend whose write landed but whose reply was lost.
type LateFailingIndex struct {
	rag.VectorIndex

	// Err is returned after the wrapped InsertBatch succeeds.
	Err error
}

// InsertBatch writes through and then fails.
func (l *LateFailingIndex) InsertBatch(ctx context.Context, entries []rag.Entry) error {
	if err := l.VectorIndex.InsertBatch(ctx, entries); err != nil {
		return err
	}
	return l.Err
}
