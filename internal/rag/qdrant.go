package rag

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

// Payload keys written to every Qdrant point.
const (
	payloadDocumentID = "document_id"
	payloadText       = "text"
	payloadSeq        = "seq"
)

// QdrantConfig holds connection parameters for a Qdrant vector index.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantIndex implements VectorIndex backed by a Qdrant collection using
// cosine distance. Each point carries its document ID, chunk text and an
// insertion sequence number so ties can be ordered the same way MemoryIndex
// orders them.
type QdrantIndex struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this index.
	cfg *QdrantConfig

	// seqMu guards lastSeq.
	seqMu sync.Mutex

	// lastSeq is the most recently assigned insertion sequence number.
	lastSeq int64
}

// NewQdrantIndex creates a QdrantIndex, ensuring the target collection
// exists (creating it if necessary).
func NewQdrantIndex(ctx context.Context, cfg *QdrantConfig) (*QdrantIndex, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "docrag"
	}
	if cfg.VectorSize == 0 {
		cfg.VectorSize = Dimensions
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	idx := &QdrantIndex{client: client, cfg: cfg}
	if err := idx.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return idx, nil
}

// Client exposes the underlying gRPC client for health probes.
func (q *QdrantIndex) Client() *qdrant.Client { return q.client }

// ensureCollection creates the Qdrant collection if it does not already exist.
func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", q.cfg.Collection, err)
	}
	return nil
}

// nextSeq returns a strictly increasing sequence number that also stays
// ahead of any number assigned by a previous process.
func (q *QdrantIndex) nextSeq() int64 {
	q.seqMu.Lock()
	defer q.seqMu.Unlock()
	now := time.Now().UnixNano()
	if now <= q.lastSeq {
		now = q.lastSeq + 1
	}
	q.lastSeq = now
	return now
}

// Insert adds a single entry.
func (q *QdrantIndex) Insert(ctx context.Context, e Entry) error {
	return q.InsertBatch(ctx, []Entry{e})
}

// InsertBatch validates every entry and then writes them in one upsert.
func (q *QdrantIndex) InsertBatch(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, 0, len(entries))
	for _, e := range entries {
		if err := CheckDimensions(e.Vector, int(q.cfg.VectorSize)); err != nil {
			return err
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(e.ChunkID),
			Vectors: qdrant.NewVectors(e.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadDocumentID: e.DocumentID,
				payloadText:       e.Text,
				payloadSeq:        q.nextSeq(),
			}),
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}
	return nil
}

// qdrantTieSlack is the minimum number of extra points fetched beyond k so
// that ties at the k-th distance can be re-ordered by insertion sequence.
const qdrantTieSlack = 64

// overfetch returns the Qdrant query limit used for a request of k hits.
// More than overfetch(k)-k points tied at the k-th distance can still cut
// off an earlier insertion; the ordering is exact below that.
func overfetch(k int) uint64 {
	return uint64(max(2*k, k+qdrantTieSlack)) //nolint:gosec // k is positive
}

// Nearest runs a cosine query and returns up to k hits ordered by distance
// and then insertion sequence. The query over-fetches so that ties at the
// k-th position are resolved by sequence rather than by Qdrant.
func (q *QdrantIndex) Nearest(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if err := CheckDimensions(query, int(q.cfg.VectorSize)); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []Hit{}, nil
	}

	limit := overfetch(k)
	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.cfg.Collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}
	return rankPoints(results, k), nil
}

// rankPoints converts cosine scores to distances, decodes payloads and keeps
// the k closest points, breaking ties by insertion sequence.
func rankPoints(points []*qdrant.ScoredPoint, k int) []Hit {
	type scored struct {
		hit Hit
		seq int64
	}
	all := make([]scored, 0, len(points))
	for _, r := range points {
		s := scored{hit: Hit{ChunkID: r.GetId().GetUuid(), Distance: 1 - r.GetScore()}}
		if p := r.GetPayload(); p != nil {
			s.hit.DocumentID = p[payloadDocumentID].GetStringValue()
			s.hit.Text = p[payloadText].GetStringValue()
			s.seq = p[payloadSeq].GetIntegerValue()
		}
		all = append(all, s)
	}

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
	return hits
}

// DeleteByDocument removes every point whose payload references documentID.
// Qdrant applies a filtered delete as a single operation.
func (q *QdrantIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch(payloadDocumentID, documentID),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete failed: %w", err)
	}
	return nil
}

// Len returns the exact point count, or 0 when Qdrant cannot be reached.
func (q *QdrantIndex) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.cfg.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0
	}
	return int(n)
}

// Close closes the underlying Qdrant gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}
