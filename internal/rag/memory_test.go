package rag

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// vec returns a dims-length vector with the given leading components.
func vec(dims int, lead ...float32) []float32 {
	v := make([]float32, dims)
	copy(v, lead)
	return v
}

func Test_MemoryIndex_InsertDimensionMismatch(t *testing.T) {
	t.Parallel()
	idx := NewMemoryIndex(4)
	ctx := context.Background()

	if err := idx.Insert(ctx, Entry{ChunkID: "a", DocumentID: "d", Vector: vec(4, 1)}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := idx.Insert(ctx, Entry{ChunkID: "b", DocumentID: "d", Vector: vec(3, 1)})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("want ErrDimensionMismatch, got %v", err)
	}
	if idx.Len() != 1 {
		t.Errorf("index mutated by failed insert: len=%d", idx.Len())
	}
}

func Test_MemoryIndex_InsertBatchAllOrNothing(t *testing.T) {
	t.Parallel()
	idx := NewMemoryIndex(2)

	err := idx.InsertBatch(context.Background(), []Entry{
		{ChunkID: "a", DocumentID: "d", Vector: vec(2, 1)},
		{ChunkID: "b", DocumentID: "d", Vector: vec(5, 1)},
	})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("want ErrDimensionMismatch, got %v", err)
	}
	if idx.Len() != 0 {
		t.Errorf("want empty index after rejected batch, got %d", idx.Len())
	}
}

func Test_MemoryIndex_NearestOrdering(t *testing.T) {
	t.Parallel()
	idx := NewMemoryIndex(2)
	ctx := context.Background()

	entries := []Entry{
		{ChunkID: "far", DocumentID: "d1", Text: "far", Vector: []float32{0, 1}},
		{ChunkID: "near", DocumentID: "d1", Text: "near", Vector: []float32{1, 0}},
		{ChunkID: "mid", DocumentID: "d2", Text: "mid", Vector: []float32{1, 1}},
	}
	if err := idx.InsertBatch(ctx, entries); err != nil {
		t.Fatalf("insert: %v", err)
	}

	cases := []struct {
		k    int
		want []string
	}{
		{0, []string{}},
		{1, []string{"near"}},
		{2, []string{"near", "mid"}},
		{3, []string{"near", "mid", "far"}},
		{10, []string{"near", "mid", "far"}},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("k=%d", tc.k), func(t *testing.T) {
			t.Parallel()
			hits, err := idx.Nearest(ctx, []float32{1, 0}, tc.k)
			if err != nil {
				t.Fatalf("nearest: %v", err)
			}
			if len(hits) != len(tc.want) {
				t.Fatalf("got %d hits, want %d", len(hits), len(tc.want))
			}
			for i := range hits {
				if hits[i].ChunkID != tc.want[i] {
					t.Errorf("hit[%d] = %s, want %s", i, hits[i].ChunkID, tc.want[i])
				}
				if i > 0 && hits[i].Distance < hits[i-1].Distance {
					t.Errorf("distances not ascending at %d", i)
				}
			}
		})
	}
}

func Test_MemoryIndex_TiesByInsertionOrder(t *testing.T) {
	t.Parallel()
	idx := NewMemoryIndex(2)
	ctx := context.Background()

	// Identical vectors: every distance ties.
	for _, id := range []string{"first", "second", "third"} {
		if err := idx.Insert(ctx, Entry{ChunkID: id, DocumentID: "d", Vector: []float32{3, 4}}); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	hits, err := idx.Nearest(ctx, []float32{3, 4}, 2)
	if err != nil {
		t.Fatalf("nearest: %v", err)
	}
	if len(hits) != 2 || hits[0].ChunkID != "first" || hits[1].ChunkID != "second" {
		t.Errorf("want [first second], got %+v", hits)
	}
}

func Test_MemoryIndex_NearestEmptyAndBadQuery(t *testing.T) {
	t.Parallel()
	idx := NewMemoryIndex(3)
	ctx := context.Background()

	hits, err := idx.Nearest(ctx, vec(3, 1), 3)
	if err != nil {
		t.Fatalf("nearest on empty index: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("want no hits, got %d", len(hits))
	}

	if _, err := idx.Nearest(ctx, vec(2, 1), 3); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("want ErrDimensionMismatch for short query, got %v", err)
	}
}

func Test_MemoryIndex_NearestIsIdempotent(t *testing.T) {
	t.Parallel()
	idx := NewMemoryIndex(3)
	ctx := context.Background()
	for i := range 20 {
		e := Entry{ChunkID: fmt.Sprint(i), DocumentID: "d", Vector: []float32{float32(i % 3), float32(i % 5), 1}}
		if err := idx.Insert(ctx, e); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	q := []float32{1, 2, 3}
	first, err := idx.Nearest(ctx, q, 5)
	if err != nil {
		t.Fatalf("nearest: %v", err)
	}
	for range 5 {
		again, err := idx.Nearest(ctx, q, 5)
		if err != nil {
			t.Fatalf("nearest: %v", err)
		}
		for i := range first {
			if first[i] != again[i] {
				t.Fatalf("result %d changed between calls: %+v vs %+v", i, first[i], again[i])
			}
		}
	}
}

func Test_MemoryIndex_DeleteByDocument(t *testing.T) {
	t.Parallel()
	idx := NewMemoryIndex(2)
	ctx := context.Background()

	_ = idx.InsertBatch(ctx, []Entry{
		{ChunkID: "a1", DocumentID: "A", Vector: []float32{1, 0}},
		{ChunkID: "b1", DocumentID: "B", Vector: []float32{1, 0.1}},
		{ChunkID: "a2", DocumentID: "A", Vector: []float32{1, 0.2}},
	})

	if err := idx.DeleteByDocument(ctx, "A"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	hits, err := idx.Nearest(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("nearest: %v", err)
	}
	if len(hits) != 1 || hits[0].DocumentID != "B" {
		t.Errorf("want only document B, got %+v", hits)
	}

	// Re-inserting a deleted chunk ID is a fresh insert.
	if err := idx.Insert(ctx, Entry{ChunkID: "a1", DocumentID: "A", Vector: []float32{1, 0}}); err != nil {
		t.Fatalf("reinsert: %v", err)
	}
	if idx.Len() != 2 {
		t.Errorf("want 2 entries, got %d", idx.Len())
	}
}

func Test_MemoryIndex_ReinsertKeepsPosition(t *testing.T) {
	t.Parallel()
	idx := NewMemoryIndex(2)
	ctx := context.Background()

	_ = idx.Insert(ctx, Entry{ChunkID: "x", DocumentID: "d", Text: "old", Vector: []float32{1, 1}})
	_ = idx.Insert(ctx, Entry{ChunkID: "y", DocumentID: "d", Text: "y", Vector: []float32{1, 1}})
	_ = idx.Insert(ctx, Entry{ChunkID: "x", DocumentID: "d", Text: "new", Vector: []float32{1, 1}})

	hits, _ := idx.Nearest(ctx, []float32{1, 1}, 2)
	if idx.Len() != 2 || hits[0].ChunkID != "x" || hits[0].Text != "new" {
		t.Errorf("want replaced x first, got len=%d hits=%+v", idx.Len(), hits)
	}
}

func Test_MemoryIndex_InsertCopiesVector(t *testing.T) {
	t.Parallel()
	idx := NewMemoryIndex(2)
	ctx := context.Background()

	v := []float32{1, 0}
	_ = idx.Insert(ctx, Entry{ChunkID: "a", DocumentID: "d", Vector: v})
	v[0], v[1] = 0, 1

	hits, _ := idx.Nearest(ctx, []float32{1, 0}, 1)
	if hits[0].Distance > 1e-6 {
		t.Errorf("caller mutation leaked into index: distance %v", hits[0].Distance)
	}
}

// Test_MemoryIndex_DeleteIsAtomicForReaders checks that a concurrent Nearest
// sees either every chunk of a document or none of them.
func Test_MemoryIndex_DeleteIsAtomicForReaders(t *testing.T) {
	t.Parallel()
	const perDoc = 50
	idx := NewMemoryIndex(2)
	ctx := context.Background()

	for round := range 20 {
		doc := fmt.Sprintf("doc-%d", round)
		entries := make([]Entry, perDoc)
		for i := range entries {
			entries[i] = Entry{ChunkID: fmt.Sprintf("%s-%d", doc, i), DocumentID: doc, Vector: []float32{1, float32(i)}}
		}
		if err := idx.InsertBatch(ctx, entries); err != nil {
			t.Fatalf("insert: %v", err)
		}

		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				hits, err := idx.Nearest(ctx, []float32{1, 0}, 2*perDoc)
				if err != nil {
					errs <- err
					return
				}
				if n := len(hits); n != 0 && n != perDoc {
					errs <- fmt.Errorf("observed %d of %d chunks", n, perDoc)
				}
			}()
		}
		if err := idx.DeleteByDocument(ctx, doc); err != nil {
			t.Fatalf("delete: %v", err)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Error(err)
		}
	}
}

func Test_CosineDistance(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 2}, []float32{1, 2}, 0},
		{"scaled", []float32{1, 2}, []float32{2, 4}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 1},
	}
	for _, tc := range cases {
		got := CosineDistance(tc.a, tc.b)
		if diff := got - tc.want; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("%s: CosineDistance = %v, want %v", tc.name, got, tc.want)
		}
	}
}

// fakeStore serves ListChunks for Hydrate.
type fakeStore struct {
	DocumentStore
	chunks []Chunk
}

func (f *fakeStore) ListChunks(context.Context) ([]Chunk, error) { return f.chunks, nil }

func Test_MemoryIndex_Hydrate(t *testing.T) {
	t.Parallel()
	idx := NewMemoryIndex(2)
	s := &fakeStore{chunks: []Chunk{
		{ID: "c1", DocumentID: "d", Text: "one", Vector: []float32{1, 1}},
		{ID: "c2", DocumentID: "d", Text: "two", Vector: []float32{1, 1}},
	}}

	n, err := idx.Hydrate(context.Background(), s)
	if err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	if n != 2 || idx.Len() != 2 {
		t.Fatalf("want 2 entries, got n=%d len=%d", n, idx.Len())
	}
	hits, _ := idx.Nearest(context.Background(), []float32{1, 1}, 1)
	if hits[0].ChunkID != "c1" {
		t.Errorf("hydrated order lost: got %s first", hits[0].ChunkID)
	}
}
