package handlers

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/google/uuid"

	"github.com/fourthplaces/rootsignal/internal/classifier"
	"github.com/fourthplaces/rootsignal/internal/events"
	"github.com/fourthplaces/rootsignal/internal/pipeline"
	"github.com/fourthplaces/rootsignal/internal/types"
)

var _ = Describe("handleNewSignalAccepted", func() {
	var (
		ctx   context.Context
		state *pipeline.State
		deps  pipeline.Deps
		nodeID uuid.UUID
	)

	BeforeEach(func() {
		ctx = context.Background()
		state = pipeline.NewState()
		c, err := classifier.New(ctx)
		Expect(err).NotTo(HaveOccurred())
		deps = pipeline.Deps{Classifier: c}
		nodeID = uuid.New()
	})

	It("does nothing when the pending node is unknown", func() {
		out, err := handleNewSignalAccepted(ctx, events.NewSignalAccepted{NodeID: nodeID, SourceURL: "https://example.org/a"}, state, deps)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(BeNil())
	})

	It("emits a world event, classifications, a citation, and SignalStored", func() {
		state.PendingNodes[nodeID] = pipeline.PendingNode{PendingNode: events.PendingNode{
			NodeID:   nodeID,
			NodeType: types.NodeGathering,
			Body: events.SignalBody{
				ID:    nodeID,
				Title: "Block party",
			},
			ContentHash: "abc123",
		}}

		out, err := handleNewSignalAccepted(ctx, events.NewSignalAccepted{NodeID: nodeID, SourceURL: "https://example.org/a"}, state, deps)
		Expect(err).NotTo(HaveOccurred())

		var sawWorld, sawSensitivity, sawCitation, sawStored bool
		for _, e := range out {
			switch ev := e.(type) {
			case events.GatheringAnnounced:
				sawWorld = true
				Expect(ev.SignalBody.SourceURL).To(Equal("https://example.org/a"))
			case events.SensitivityClassified:
				sawSensitivity = true
			case events.CitationPublished:
				sawCitation = true
				Expect(ev.ContentHash).To(Equal("abc123"))
			case events.SignalStored:
				sawStored = true
			}
		}
		Expect(sawWorld).To(BeTrue())
		Expect(sawSensitivity).To(BeTrue())
		Expect(sawCitation).To(BeTrue())
		Expect(sawStored).To(BeTrue())

		_, stashed := state.WiringContexts[nodeID]
		Expect(stashed).To(BeTrue())
	})
})

var _ = Describe("handleCrossSourceMatchDetected", func() {
	It("reads the current corroboration count and bumps it by one", func() {
		ctx := context.Background()
		state := pipeline.NewState()
		existingID := uuid.New()
		deps := pipeline.Deps{SignalReader: &fakeSignalReader{corroborationCnt: 2}}

		out, err := handleCrossSourceMatchDetected(ctx, events.CrossSourceMatchDetected{
			ExistingID: existingID,
			NodeType:   types.NodeGathering,
			SourceURL:  "https://example.org/b",
			Similarity: 0.95,
		}, state, deps)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(3))

		scored, ok := out[2].(events.CorroborationScored)
		Expect(ok).To(BeTrue())
		Expect(scored.NewCorroborationCount).To(Equal(3))
	})
})

var _ = Describe("handleSameSourceReencountered", func() {
	It("emits a citation and a freshness confirmation", func() {
		ctx := context.Background()
		state := pipeline.NewState()
		existingID := uuid.New()
		deps := pipeline.Deps{}

		out, err := handleSameSourceReencountered(ctx, events.SameSourceReencountered{
			ExistingID: existingID,
			NodeType:   types.NodeGathering,
			SourceURL:  "https://example.org/a",
		}, state, deps)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(2))
		confirmed, ok := out[1].(events.FreshnessConfirmed)
		Expect(ok).To(BeTrue())
		Expect(confirmed.SignalIDs).To(ConsistOf(existingID))
	})
})

var _ = Describe("handleSignalStored", func() {
	var (
		ctx    context.Context
		state  *pipeline.State
		deps   pipeline.Deps
		nodeID uuid.UUID
	)

	BeforeEach(func() {
		ctx = context.Background()
		state = pipeline.NewState()
		deps = pipeline.Deps{SignalReader: &fakeSignalReader{}}
		nodeID = uuid.New()
	})

	It("does nothing when no wiring context was stashed", func() {
		out, err := handleSignalStored(ctx, events.SignalStored{NodeID: nodeID}, state, deps)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(BeNil())
	})

	It("emits SignalTagged for the stashed signal tags", func() {
		state.StashWiringContext(nodeID, pipeline.WiringContext{
			SignalTags: []string{"mutual-aid"},
		})
		out, err := handleSignalStored(ctx, events.SignalStored{NodeID: nodeID, SourceURL: "https://example.org/a"}, state, deps)
		Expect(err).NotTo(HaveOccurred())

		var sawTagged bool
		for _, e := range out {
			if _, ok := e.(events.SignalTagged); ok {
				sawTagged = true
			}
		}
		Expect(sawTagged).To(BeTrue())
	})

	It("wires a new author actor for an owned (non-web) source", func() {
		deps.SignalReader = &fakeSignalReader{actorFound: false}
		author := "Mutual Aid Collective"
		state.StashWiringContext(nodeID, pipeline.WiringContext{AuthorName: &author})

		out, err := handleSignalStored(ctx, events.SignalStored{NodeID: nodeID, SourceURL: "https://instagram.com/p/xyz"}, state, deps)
		Expect(err).NotTo(HaveOccurred())

		var sawIdentified, sawLinked bool
		for _, e := range out {
			switch e.(type) {
			case events.ActorIdentified:
				sawIdentified = true
			case events.ActorLinkedToSignal:
				sawLinked = true
			}
		}
		Expect(sawIdentified).To(BeTrue())
		Expect(sawLinked).To(BeTrue())
	})

	It("skips author wiring for a plain web source", func() {
		author := "Some Blog"
		state.StashWiringContext(nodeID, pipeline.WiringContext{AuthorName: &author})

		out, err := handleSignalStored(ctx, events.SignalStored{NodeID: nodeID, SourceURL: "https://example.org/a"}, state, deps)
		Expect(err).NotTo(HaveOccurred())
		for _, e := range out {
			_, ok := e.(events.ActorLinkedToSignal)
			Expect(ok).To(BeFalse())
		}
	})
})
