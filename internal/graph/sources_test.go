package graph

import (
	"context"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fourthplaces/rootsignal/internal/types"
)

var _ = Describe("SourceRegistry", func() {
	var client *fakeClient
	var registry *SourceRegistry

	BeforeEach(func() {
		client = &fakeClient{}
		registry = NewSourceRegistry(client)
	})

	It("lists active sources, reconstructing SourceNode from stored properties", func() {
		id := uuid.New()
		client.result = &QueryResult{Rows: [][]any{
			{id.String(), "web:example.com", "example.com", "https://example.com", "manual", 0.5, "mixed", nil, nil},
		}}

		sources, err := registry.ListActive(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(sources).To(HaveLen(1))
		Expect(sources[0].CanonicalKey).To(Equal("web:example.com"))
		Expect(sources[0].Weight).To(Equal(0.5))
		Expect(sources[0].SourceRole).To(Equal(types.RoleMixed))
	})

	It("filters out deactivated sources via the query predicate", func() {
		client.result = &QueryResult{Rows: [][]any{}}
		sources, err := registry.ListActive(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(sources).To(BeEmpty())
	})

	It("returns last-scraped times only for keys that have one", func() {
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		client.result = &QueryResult{Rows: [][]any{
			{"web:example.com", now.Format(time.RFC3339)},
		}}

		times, err := registry.LastScrapeTimes(context.Background(), []string{"web:example.com", "web:other.com"})
		Expect(err).NotTo(HaveOccurred())
		Expect(times).To(HaveKey("web:example.com"))
		Expect(times).NotTo(HaveKey("web:other.com"))
	})

	It("short-circuits LastScrapeTimes for an empty key list without querying", func() {
		times, err := registry.LastScrapeTimes(context.Background(), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(times).To(BeEmpty())
		Expect(client.queries).To(BeEmpty())
	})

	It("reads an empty last content hash for a never-scraped source", func() {
		client.result = &QueryResult{Rows: [][]any{{""}}}
		hash, err := registry.LastContentHash(context.Background(), "web:example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(hash).To(BeEmpty())
	})

	It("records the scrape outcome", func() {
		err := registry.MarkScraped(context.Background(), "web:example.com", "abc123", time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(client.queries).To(HaveLen(1))
		Expect(client.queries[0].params["hash"]).To(Equal("abc123"))
	})
})
