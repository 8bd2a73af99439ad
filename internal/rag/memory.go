package rag

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

// memoryEntry is an Entry plus its insertion sequence number.
type memoryEntry struct {
	Entry
	seq uint64
}

// MemoryIndex implements VectorIndex with an exact linear scan held in
// process memory. It is the default index: the SQLite store is the source of
// truth and Hydrate rebuilds the index from it at startup.
type MemoryIndex struct {
	// dims is the required vector length.
	dims int

	// mu guards entries and nextSeq. Nearest takes the read lock so queries
	// run concurrently; every mutation takes the write lock.
	mu sync.RWMutex

	// entries is kept in insertion order.
	entries []memoryEntry

	// ids holds the chunk IDs present in entries.
	ids map[string]struct{}

	// nextSeq is the sequence number assigned to the next new entry.
	nextSeq uint64
}

// NewMemoryIndex returns an empty index for vectors of length dims.
// dims <= 0 selects Dimensions.
func NewMemoryIndex(dims int) *MemoryIndex {
	if dims <= 0 {
		dims = Dimensions
	}
	return &MemoryIndex{dims: dims, ids: make(map[string]struct{})}
}

// Insert adds e to the index.
func (m *MemoryIndex) Insert(ctx context.Context, e Entry) error {
	return m.InsertBatch(ctx, []Entry{e})
}

// InsertBatch validates every entry before adding any of them. Re-inserting
// an existing chunk ID replaces its entry in place and keeps its original
// insertion position.
func (m *MemoryIndex) InsertBatch(_ context.Context, entries []Entry) error {
	for _, e := range entries {
		if err := CheckDimensions(e.Vector, m.dims); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		e.Vector = slices.Clone(e.Vector)
		if _, ok := m.ids[e.ChunkID]; ok {
			m.entries[m.indexOf(e.ChunkID)].Entry = e
			continue
		}
		m.ids[e.ChunkID] = struct{}{}
		m.entries = append(m.entries, memoryEntry{Entry: e, seq: m.nextSeq})
		m.nextSeq++
	}
	return nil
}

// indexOf returns the position of chunkID or -1. Callers hold mu.
func (m *MemoryIndex) indexOf(chunkID string) int {
	for i := range m.entries {
		if m.entries[i].ChunkID == chunkID {
			return i
		}
	}
	return -1
}

// Nearest returns up to k entries by ascending cosine distance.
func (m *MemoryIndex) Nearest(_ context.Context, query []float32, k int) ([]Hit, error) {
	if err := CheckDimensions(query, m.dims); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []Hit{}, nil
	}

	m.mu.RLock()
	type scored struct {
		hit Hit
		seq uint64
	}
	all := make([]scored, 0, len(m.entries))
	for _, e := range m.entries {
		all = append(all, scored{
			hit: Hit{
				ChunkID:    e.ChunkID,
				DocumentID: e.DocumentID,
				Text:       e.Text,
				Distance:   CosineDistance(query, e.Vector),
			},
			seq: e.seq,
		})
	}
	m.mu.RUnlock()

	slices.SortFunc(all, func(a, b scored) int {
		if c := cmp.Compare(a.hit.Distance, b.hit.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})

	if len(all) > k {
		all = all[:k]
	}
	hits := make([]Hit, len(all))
	for i, s := range all {
		hits[i] = s.hit
	}
	return hits, nil
}

// DeleteByDocument removes every entry belonging to documentID in a single
// critical section.
func (m *MemoryIndex) DeleteByDocument(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = slices.DeleteFunc(m.entries, func(e memoryEntry) bool {
		if e.DocumentID != documentID {
			return false
		}
		delete(m.ids, e.ChunkID)
		return true
	})
	return nil
}

// Len returns the number of entries in the index.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Hydrate loads persisted chunks from store into the index in their
// original insertion order.
func (m *MemoryIndex) Hydrate(ctx context.Context, store DocumentStore) (int, error) {
	chunks, err := store.ListChunks(ctx)
	if err != nil {
		return 0, err
	}
	entries := make([]Entry, 0, len(chunks))
	for _, c := range chunks {
		entries = append(entries, Entry{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			Text:       c.Text,
			Vector:     c.Vector,
		})
	}
	if err := m.InsertBatch(ctx, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}
