package enrichment

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fourthplaces/rootsignal/internal/graph"
	"github.com/fourthplaces/rootsignal/internal/types"
)

func TestEnrichment(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Enrichment Pass Suite")
}

// scriptedClient answers graph.Client.Query calls from a fixed queue, in
// call order, so a test can drive a multi-query pass without a live graph.
type scriptedClient struct {
	responses []*graph.QueryResult
	calls     []string
	i         int
}

func (s *scriptedClient) Connect(context.Context) error { return nil }
func (s *scriptedClient) Close() error                   { return nil }
func (s *scriptedClient) Ping(context.Context) error     { return nil }

func (s *scriptedClient) Query(_ context.Context, cypher string, _ map[string]any) (*graph.QueryResult, error) {
	s.calls = append(s.calls, cypher)
	if s.i >= len(s.responses) {
		return &graph.QueryResult{}, nil
	}
	r := s.responses[s.i]
	s.i++
	return r, nil
}

var _ = Describe("Pass", func() {
	It("runs diversity, actor stats, and cause heat in that order", func() {
		client := &scriptedClient{
			responses: []*graph.QueryResult{
				// Gathering label: one signal, no evidence.
				{Columns: []string{"id", "self_url", "evidence"}, Rows: [][]any{{"sig-1", "https://example.com/a", []any{}}}},
				{}, // write-back for Gathering
			},
		}
		// Remaining labels (Aid, Need, Notice, Tension, Condition, Incident)
		// each read + conditionally write; empty responses mean "no rows".
		for i := 0; i < len(signalLabels)-1; i++ {
			client.responses = append(client.responses, &graph.QueryResult{Columns: []string{"id", "self_url", "evidence"}})
		}
		// Actor stats.
		client.responses = append(client.responses, &graph.QueryResult{
			Columns: []string{"updated"},
			Rows:    [][]any{{int64(3)}},
		})
		// Cause heat: one read per label, all empty (no embeddings).
		for range signalLabels {
			client.responses = append(client.responses, &graph.QueryResult{Columns: []string{"id", "embedding", "lat", "lng"}})
		}

		pass := NewPass(client, nil, 0.3, types.GlobalBoundingBox())
		stats, err := pass.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.DiversityUpdated).To(Equal(1))
		Expect(stats.ActorStatsUpdated).To(Equal(3))
		Expect(stats.CauseHeatUpdated).To(Equal(0))
	})

	It("aggregates cause_heat only for signals within the bounding box", func() {
		emb := []float32{1, 0, 0}
		inBox := types.GeoPoint{Lat: 44.9, Lng: -93.2}
		outOfBox := types.GeoPoint{Lat: 10.0, Lng: 10.0}

		client := &scriptedClient{}
		// Diversity pass: empty for every label.
		for range signalLabels {
			client.responses = append(client.responses, &graph.QueryResult{Columns: []string{"id", "self_url", "evidence"}})
		}
		// Actor stats: zero actors.
		client.responses = append(client.responses, &graph.QueryResult{Columns: []string{"updated"}, Rows: [][]any{{int64(0)}}})
		// Cause heat reads: first label (Gathering) carries both signals, the
		// rest are empty.
		embAny := make([]any, len(emb))
		for i, v := range emb {
			embAny[i] = float64(v)
		}
		client.responses = append(client.responses, &graph.QueryResult{
			Columns: []string{"id", "embedding", "lat", "lng"},
			Rows: [][]any{
				{"sig-in", embAny, inBox.Lat, inBox.Lng},
				{"sig-out", embAny, outOfBox.Lat, outOfBox.Lng},
				{"sig-in-2", embAny, inBox.Lat, inBox.Lng},
			},
		})
		for i := 0; i < len(signalLabels)-1; i++ {
			client.responses = append(client.responses, &graph.QueryResult{Columns: []string{"id", "embedding", "lat", "lng"}})
		}
		// Cause heat writes, one per label.
		for range signalLabels {
			client.responses = append(client.responses, &graph.QueryResult{})
		}

		bbox := types.BoundingBoxFromRadius(inBox, 50)
		pass := NewPass(client, nil, 0.3, bbox)
		stats, err := pass.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.CauseHeatUpdated).To(Equal(2))
	})
})
