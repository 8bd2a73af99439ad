package rag

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
)

// point builds a scored point as Qdrant returns it.
func point(id, doc, text string, score float32, seq int64) *qdrant.ScoredPoint {
	return &qdrant.ScoredPoint{
		Id:    qdrant.NewIDUUID(id),
		Score: score,
		Payload: qdrant.NewValueMap(map[string]any{
			payloadDocumentID: doc,
			payloadText:       text,
			payloadSeq:        seq,
		}),
	}
}

func Test_RankPoints(t *testing.T) {
	t.Parallel()

	const (
		idA = "00000000-0000-0000-0000-00000000000a"
		idB = "00000000-0000-0000-0000-00000000000b"
		idC = "00000000-0000-0000-0000-00000000000c"
		idD = "00000000-0000-0000-0000-00000000000d"
	)

	// Qdrant returns equal scores in its own order; later inserts first here.
	points := []*qdrant.ScoredPoint{
		point(idC, "d2", "third", 0.5, 30),
		point(idB, "d1", "second", 0.5, 20),
		point(idD, "d2", "far", 0.25, 5),
		point(idA, "d1", "best", 0.75, 40),
	}

	tests := []struct {
		name string
		k    int
		want []string
	}{
		{"all", 10, []string{idA, idB, idC, idD}},
		{"tie at cut keeps earliest", 2, []string{idA, idB}},
		{"one", 1, []string{idA}},
	}
	for _, tc := range tests {
		hits := rankPoints(points, tc.k)
		if len(hits) != len(tc.want) {
			t.Fatalf("%s: got %d hits, want %d", tc.name, len(hits), len(tc.want))
		}
		for i, id := range tc.want {
			if hits[i].ChunkID != id {
				t.Errorf("%s: hit %d = %s, want %s", tc.name, i, hits[i].ChunkID, id)
			}
		}
	}

	hits := rankPoints(points, 1)
	if hits[0].DocumentID != "d1" || hits[0].Text != "best" || hits[0].Distance != 0.25 {
		t.Errorf("decoded hit = %+v", hits[0])
	}
}

func Test_RankPoints_MissingPayload(t *testing.T) {
	t.Parallel()
	hits := rankPoints([]*qdrant.ScoredPoint{{Id: qdrant.NewIDUUID("00000000-0000-0000-0000-000000000001"), Score: 1}}, 3)
	if len(hits) != 1 || hits[0].Distance != 0 || hits[0].Text != "" {
		t.Errorf("unexpected hits %+v", hits)
	}
}

func Test_Overfetch(t *testing.T) {
	t.Parallel()
	tests := []struct {
		k    int
		want uint64
	}{
		{1, 1 + qdrantTieSlack},
		{3, 3 + qdrantTieSlack},
		{qdrantTieSlack, 2 * qdrantTieSlack},
		{200, 400},
	}
	for _, tc := range tests {
		if got := overfetch(tc.k); got != tc.want {
			t.Errorf("overfetch(%d) = %d, want %d", tc.k, got, tc.want)
		}
	}
}
