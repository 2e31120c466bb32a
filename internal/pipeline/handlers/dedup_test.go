package handlers

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/google/uuid"

	"github.com/fourthplaces/rootsignal/internal/collaborators"
	"github.com/fourthplaces/rootsignal/internal/events"
	"github.com/fourthplaces/rootsignal/internal/pipeline"
	"github.com/fourthplaces/rootsignal/internal/types"
)

var _ = Describe("normalizeTitle", func() {
	It("lowercases, strips punctuation, and collapses whitespace", func() {
		Expect(normalizeTitle("  Free Food!!  Tonight  ")).To(Equal("free food tonight"))
	})
})

var _ = Describe("dedupVerdict", func() {
	it := func(sourceURL string, global, cache, graph *hit) verdictResult {
		return dedupVerdict(sourceURL, global, cache, graph)
	}

	It("creates when nothing matches", func() {
		Expect(it("u", nil, nil, nil).kind).To(Equal(verdictCreate))
	})

	It("prefers the global match over cache/graph", func() {
		global := &hit{existingID: uuid.New(), sourceURL: "other", similarity: 1.0}
		cache := &hit{existingID: uuid.New(), sourceURL: "u", similarity: 0.99}
		v := it("u", global, cache, nil)
		Expect(v.kind).To(Equal(verdictCorroborate))
		Expect(v.existingID).To(Equal(global.existingID))
	})

	It("refreshes when the best hit's source matches the discovering URL", func() {
		graph := &hit{existingID: uuid.New(), sourceURL: "u", similarity: 0.95}
		v := it("u", nil, nil, graph)
		Expect(v.kind).To(Equal(verdictRefresh))
	})

	It("corroborates when the best hit's source differs", func() {
		graph := &hit{existingID: uuid.New(), sourceURL: "other", similarity: 0.95}
		v := it("u", nil, nil, graph)
		Expect(v.kind).To(Equal(verdictCorroborate))
	})

	It("picks the higher-similarity of cache and graph", func() {
		cache := &hit{existingID: uuid.New(), sourceURL: "u", similarity: 0.80}
		graph := &hit{existingID: uuid.New(), sourceURL: "other", similarity: 0.90}
		v := it("u", nil, cache, graph)
		Expect(v.existingID).To(Equal(graph.existingID))
		Expect(v.kind).To(Equal(verdictCorroborate))
	})
})

var _ = Describe("handleSignalsExtracted", func() {
	var (
		ctx   context.Context
		state *pipeline.State
		deps  pipeline.Deps
		url   string
	)

	BeforeEach(func() {
		ctx = context.Background()
		state = pipeline.NewState()
		url = "https://example.org/a"
		deps = pipeline.Deps{
			SignalReader:   &fakeSignalReader{},
			Embedder:       &fakeEmbedder{vectors: map[string][]float32{}},
			DedupThreshold: 0.9,
		}
	})

	It("does nothing when no batch was stashed for the URL", func() {
		out, err := handleSignalsExtracted(ctx, events.SignalsExtracted{URL: url}, state, deps)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(BeNil())
	})

	It("emits only DedupCompleted for an empty batch", func() {
		state.StashBatch(url, pipeline.ExtractedBatch{Content: "body"})
		out, err := handleSignalsExtracted(ctx, events.SignalsExtracted{URL: url}, state, deps)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(1))
		_, ok := out[0].(events.DedupCompleted)
		Expect(ok).To(BeTrue())
	})

	It("filters out a same-URL title duplicate at layer 2", func() {
		deps.SignalReader = &fakeSignalReader{
			existingTitles: map[string][]string{url: {"Free Food Tonight"}},
		}
		state.StashBatch(url, pipeline.ExtractedBatch{
			Content: "body",
			Nodes:   []collaborators.ExtractedSignal{{Title: "free food tonight!", NodeType: types.NodeAid}},
		})
		out, err := handleSignalsExtracted(ctx, events.SignalsExtracted{URL: url}, state, deps)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(1))
		_, ok := out[0].(events.DedupCompleted)
		Expect(ok).To(BeTrue())
	})

	It("corroborates on a global title+type match, even with no existing titles for this URL", func() {
		existingID := uuid.New()
		pair := collaborators.TitleTypePair{NormalizedTitle: normalizeTitle("Block Party"), NodeType: types.NodeGathering}
		deps.SignalReader = &fakeSignalReader{
			globalMatches: map[collaborators.TitleTypePair]uuid.UUID{pair: existingID},
		}
		state.StashBatch(url, pipeline.ExtractedBatch{
			Content: "body",
			Nodes:   []collaborators.ExtractedSignal{{Title: "Block Party", NodeType: types.NodeGathering}},
		})
		out, err := handleSignalsExtracted(ctx, events.SignalsExtracted{URL: url}, state, deps)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(2))
		match, ok := out[0].(events.CrossSourceMatchDetected)
		Expect(ok).To(BeTrue())
		Expect(match.ExistingID).To(Equal(existingID))
	})

	It("creates a new signal when nothing matches at any layer", func() {
		state.StashBatch(url, pipeline.ExtractedBatch{
			Content: "body",
			Nodes:   []collaborators.ExtractedSignal{{Title: "Brand new signal", NodeType: types.NodeGathering}},
		})
		out, err := handleSignalsExtracted(ctx, events.SignalsExtracted{URL: url}, state, deps)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(2))
		accepted, ok := out[0].(events.NewSignalAccepted)
		Expect(ok).To(BeTrue())
		Expect(accepted.Title).To(Equal("Brand new signal"))
		Expect(state.EmbedCache.Len()).To(Equal(1))
	})

	It("refreshes via the embed cache when the same URL resurfaces the same signal", func() {
		vec := []float32{1, 0, 0}
		existingID := uuid.New()
		state.EmbedCache.Add(vec, existingID, types.NodeGathering, url)
		deps.Embedder = &fakeEmbedder{vectors: map[string][]float32{
			"Block Party body": vec,
		}}
		state.StashBatch(url, pipeline.ExtractedBatch{
			Content: "body",
			Nodes:   []collaborators.ExtractedSignal{{Title: "Block Party", NodeType: types.NodeGathering}},
		})
		out, err := handleSignalsExtracted(ctx, events.SignalsExtracted{URL: url}, state, deps)
		Expect(err).NotTo(HaveOccurred())
		refresh, ok := out[0].(events.SameSourceReencountered)
		Expect(ok).To(BeTrue())
		Expect(refresh.ExistingID).To(Equal(existingID))
	})

	It("stops after layer 3 embedding failure, still returning partial results", func() {
		deps.Embedder = &fakeEmbedder{err: context.DeadlineExceeded}
		state.StashBatch(url, pipeline.ExtractedBatch{
			Content: "body",
			Nodes:   []collaborators.ExtractedSignal{{Title: "Whatever", NodeType: types.NodeGathering}},
		})
		out, err := handleSignalsExtracted(ctx, events.SignalsExtracted{URL: url}, state, deps)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(BeEmpty())
	})
})
