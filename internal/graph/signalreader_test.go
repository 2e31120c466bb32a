package graph

import (
	"context"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fourthplaces/rootsignal/internal/collaborators"
	"github.com/fourthplaces/rootsignal/internal/types"
)

var _ = Describe("SignalReader", func() {
	var client *fakeClient
	var reader *SignalReader

	BeforeEach(func() {
		client = &fakeClient{}
		reader = NewSignalReader(client)
	})

	It("collects titles for an existing source URL", func() {
		client.result = &QueryResult{Rows: [][]any{{"Title A"}, {"Title B"}}}
		titles, err := reader.ExistingTitlesForURL(context.Background(), "https://example.com/x")
		Expect(err).NotTo(HaveOccurred())
		Expect(titles).To(ConsistOf("Title A", "Title B"))
	})

	It("maps matching (normalized_title, node_type) pairs to their signal IDs", func() {
		id := uuid.New()
		client.result = &QueryResult{Rows: [][]any{
			{id.String(), "water shutoff", "tension"},
		}}

		pairs := []collaborators.TitleTypePair{
			{NormalizedTitle: "water shutoff", NodeType: types.NodeTension},
		}
		matches, err := reader.FindByTitlesAndTypes(context.Background(), pairs)
		Expect(err).NotTo(HaveOccurred())
		Expect(matches[pairs[0]]).To(Equal(id))
	})

	It("returns no match when FindByTitlesAndTypes is called with an empty pair list", func() {
		matches, err := reader.FindByTitlesAndTypes(context.Background(), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(matches).To(BeEmpty())
		Expect(client.queries).To(BeEmpty())
	})

	It("finds the closest above-threshold embedding within the bounding box", func() {
		id := uuid.New()
		client.result = &QueryResult{Rows: [][]any{
			{id.String(), "https://example.com/a", []any{1.0, 0.0, 0.0}},
		}}

		match, found, err := reader.FindDuplicate(
			context.Background(),
			[]float32{1, 0, 0},
			types.NodeTension,
			0.9,
			types.GlobalBoundingBox(),
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
		Expect(match.ExistingID).To(Equal(id))
		Expect(match.SourceURL).To(Equal("https://example.com/a"))
	})

	It("reports no duplicate when the best similarity is below threshold", func() {
		client.result = &QueryResult{Rows: [][]any{
			{uuid.New().String(), "https://example.com/a", []any{0.0, 1.0, 0.0}},
		}}

		_, found, err := reader.FindDuplicate(
			context.Background(),
			[]float32{1, 0, 0},
			types.NodeTension,
			0.9,
			types.GlobalBoundingBox(),
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeFalse())
	})

	It("reads the persisted corroboration count", func() {
		client.result = &QueryResult{Rows: [][]any{{int64(3)}}}
		count, err := reader.ReadCorroborationCount(context.Background(), uuid.New(), types.NodeTension)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(3))
	})

	It("resolves an actor by canonical key", func() {
		id := uuid.New()
		client.result = &QueryResult{Rows: [][]any{{id.String()}}}
		got, found, err := reader.FindActorByCanonicalKey(context.Background(), "web:example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
		Expect(got).To(Equal(id))
	})

	It("reports not-found when no actor matches the canonical key", func() {
		client.result = &QueryResult{Rows: [][]any{}}
		_, found, err := reader.FindActorByCanonicalKey(context.Background(), "web:nowhere.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeFalse())
	})
})
