package rag_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/54b3r/docrag-go/internal/rag"
	"github.com/54b3r/docrag-go/internal/rag/ragtest"
)

func Test_Retriever_DefaultAndExplicitK(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	emb := &ragtest.WordEmbedder{}
	idx := rag.NewMemoryIndex(rag.Dimensions)
	for i := range 5 {
		text := fmt.Sprintf("shared word%d", i)
		v, err := emb.Embed(ctx, text)
		if err != nil {
			t.Fatalf("embed: %v", err)
		}
		if err := idx.Insert(ctx, rag.Entry{ChunkID: fmt.Sprint(i), DocumentID: "d", Text: text, Vector: v}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	r, err := rag.NewRetriever(emb, idx, 0)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}

	tests := []struct {
		name string
		k    int
		want int
	}{
		{"zero uses default", 0, rag.DefaultTopK},
		{"negative uses default", -1, rag.DefaultTopK},
		{"explicit", 2, 2},
		{"more than stored", 10, 5},
	}
	for _, tc := range tests {
		hits, err := r.Retrieve(ctx, "shared", tc.k)
		if err != nil {
			t.Fatalf("%s: retrieve: %v", tc.name, err)
		}
		if len(hits) != tc.want {
			t.Errorf("%s: got %d hits, want %d", tc.name, len(hits), tc.want)
		}
	}
}

func Test_Retriever_EmptyIndex(t *testing.T) {
	t.Parallel()
	r, err := rag.NewRetriever(&ragtest.WordEmbedder{}, rag.NewMemoryIndex(rag.Dimensions), 3)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	hits, err := r.Retrieve(context.Background(), "anything", 0)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("want no hits, got %d", len(hits))
	}
}

func Test_Retriever_EmbeddingError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	r, err := rag.NewRetriever(&ragtest.WordEmbedder{FailOn: 1, Err: boom}, rag.NewMemoryIndex(rag.Dimensions), 3)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	if _, err := r.Retrieve(context.Background(), "q", 0); !errors.Is(err, boom) {
		t.Errorf("want wrapped embedder error, got %v", err)
	}
}

func Test_NewRetriever_NilDependencies(t *testing.T) {
	t.Parallel()
	if _, err := rag.NewRetriever(nil, rag.NewMemoryIndex(4), 0); err == nil {
		t.Error("want error for nil embedder")
	}
	if _, err := rag.NewRetriever(&ragtest.WordEmbedder{}, nil, 0); err == nil {
		t.Error("want error for nil index")
	}
}
