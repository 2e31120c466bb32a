package handlers

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fourthplaces/rootsignal/internal/collaborators"
	"github.com/fourthplaces/rootsignal/internal/events"
	"github.com/fourthplaces/rootsignal/internal/pipeline"
)

var _ = Describe("ScrapeSource", func() {
	var (
		ctx   context.Context
		state *pipeline.State
	)

	BeforeEach(func() {
		ctx = context.Background()
		state = pipeline.NewState()
	})

	It("returns ContentFetched and stashes the page on first fetch", func() {
		ing := &fakeIngestor{pages: []collaborators.RawPage{
			{URL: "https://example.org/a", Content: "hello world", Links: []string{"https://example.org/b"}},
		}}
		ev := ScrapeSource(ctx, ing, state, "https://example.org/a", "example.org/a", "")
		fetched, ok := ev.(events.ContentFetched)
		Expect(ok).To(BeTrue())
		Expect(fetched.LinkCount).To(Equal(uint32(1)))

		page, ok := state.TakePage("https://example.org/a")
		Expect(ok).To(BeTrue())
		Expect(page.Content).To(Equal("hello world"))
	})

	It("returns ContentUnchanged when the hash matches lastHash", func() {
		ing := &fakeIngestor{pages: []collaborators.RawPage{
			{URL: "https://example.org/a", Content: "hello world"},
		}}
		hash := contentHash("hello world")
		ev := ScrapeSource(ctx, ing, state, "https://example.org/a", "example.org/a", hash)
		_, ok := ev.(events.ContentUnchanged)
		Expect(ok).To(BeTrue())

		_, stashed := state.TakePage("https://example.org/a")
		Expect(stashed).To(BeFalse())
	})

	It("returns ContentFetchFailed when the ingestor errors", func() {
		ing := &fakeIngestor{err: context.DeadlineExceeded}
		ev := ScrapeSource(ctx, ing, state, "https://example.org/a", "example.org/a", "")
		_, ok := ev.(events.ContentFetchFailed)
		Expect(ok).To(BeTrue())
	})
})

var _ = Describe("handleContentFetched", func() {
	var (
		ctx   context.Context
		state *pipeline.State
		deps  pipeline.Deps
	)

	BeforeEach(func() {
		ctx = context.Background()
		state = pipeline.NewState()
		deps = pipeline.Deps{
			Extractor: &fakeExtractor{out: collaborators.ExtractedSignals{
				Signals: []collaborators.ExtractedSignal{{Title: "A gathering", NodeType: "gathering"}},
			}},
		}
	})

	It("does nothing when no page was stashed for the URL", func() {
		out, err := handleContentFetched(ctx, events.ContentFetched{URL: "https://example.org/missing"}, state, deps)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(BeNil())
	})

	It("extracts, stashes the batch, and emits SignalsExtracted plus link bookkeeping", func() {
		state.StashPage("https://example.org/a", collaborators.RawPage{
			Content: "some page body",
			Links:   []string{"https://instagram.com/p/xyz", "https://example.org/c"},
		})

		out, err := handleContentFetched(ctx, events.ContentFetched{URL: "https://example.org/a"}, state, deps)
		Expect(err).NotTo(HaveOccurred())

		var sawExtracted, sawSocial bool
		linkCount := 0
		for _, e := range out {
			switch e.(type) {
			case events.SignalsExtracted:
				sawExtracted = true
			case events.SocialTopicCollected:
				sawSocial = true
			case events.LinkCollected:
				linkCount++
			}
		}
		Expect(sawExtracted).To(BeTrue())
		Expect(sawSocial).To(BeTrue())
		Expect(linkCount).To(Equal(2))

		batch, ok := state.ExtractedBatches["https://example.org/a"]
		Expect(ok).To(BeTrue())
		Expect(batch.Nodes).To(HaveLen(1))
	})

	It("emits ExtractionFailed when the extractor errors", func() {
		deps.Extractor = &fakeExtractor{err: context.DeadlineExceeded}
		state.StashPage("https://example.org/a", collaborators.RawPage{Content: "x"})

		out, err := handleContentFetched(ctx, events.ContentFetched{URL: "https://example.org/a"}, state, deps)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(1))
		_, ok := out[0].(events.ExtractionFailed)
		Expect(ok).To(BeTrue())
	})
})
