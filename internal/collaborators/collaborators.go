// Package collaborators declares the external-system interfaces the
// pipeline handlers depend on (spec.md §6.2). Concrete implementations
// (HTTP/social scraping, an LLM client, a vector embedder) are out of scope
// for the ingestion core itself — handlers are written against these
// interfaces so they can be driven by fakes in tests and swapped in
// production without touching engine/reducer/router code.
package collaborators

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fourthplaces/rootsignal/internal/types"
)

// RawPage is one fetched page or post, before markdown conversion.
type RawPage struct {
	URL         string
	Content     string
	HTML        *string
	Title       *string
	ContentType *string
	PublishedAt *time.Time
	Links       []string
	Metadata    map[string]string
}

// DiscoverConfig parameterizes an Ingestor's open-ended discovery sweep
// (e.g. a social search or an RSS-style crawl), as opposed to a targeted
// fetch of already-known URLs.
type DiscoverConfig struct {
	Query      string
	SourceType types.SourceType
	Limit      int
}

// Ingestor fetches content from the outside world: HTTP pages, social
// posts, or search results.
type Ingestor interface {
	Discover(ctx context.Context, cfg DiscoverConfig) ([]RawPage, error)
	FetchSpecific(ctx context.Context, urls []string) ([]RawPage, error)
}

// ExtractedSignal is one signal candidate the Extractor pulled out of a
// page's content, ahead of dedup.
type ExtractedSignal struct {
	NodeType          types.NodeType         `json:"node_type"`
	Title             string                 `json:"title"`
	Summary           string                 `json:"summary"`
	ContentSnippet    string                 `json:"content_snippet,omitempty"`
	Sensitivity       types.Sensitivity      `json:"sensitivity,omitempty"`
	Locations         []types.Location       `json:"locations,omitempty"`
	MentionedEntities []types.Entity         `json:"mentioned_entities,omitempty"`
	References        []types.Reference      `json:"references,omitempty"`
	Schedule          *types.Schedule        `json:"schedule,omitempty"`
	PublishedAt       *time.Time             `json:"published_at,omitempty"`
	ActionURL         *string                `json:"action_url,omitempty"`
	Availability      *string                `json:"availability,omitempty"`
	WhatNeeded        *string                `json:"what_needed,omitempty"`
	Goal              *string                `json:"goal,omitempty"`
	Category          *string                `json:"category,omitempty"`
	EffectiveDate     *time.Time             `json:"effective_date,omitempty"`
	WhatWouldHelp     *string                `json:"what_would_help,omitempty"`
	ResourceTags      []ResourceTagCandidate `json:"resource_tags,omitempty"`
	Tags              []string               `json:"tags,omitempty"`
	AuthorName        *string                `json:"author_name,omitempty"`
	ImpliedQueries    []string               `json:"implied_queries,omitempty"`
}

// ResourceTagCandidate is a resource mention pulled out of a signal's body,
// awaiting the confidence ≥ 0.3 filter in the creation handler.
type ResourceTagCandidate struct {
	Name       string             `json:"name"`
	Slug       string             `json:"slug"`
	Role       types.ResourceRole `json:"role"`
	Confidence float32            `json:"confidence"`
	Quantity   *string            `json:"quantity,omitempty"`
	Capacity   *string            `json:"capacity,omitempty"`
	Notes      *string            `json:"notes,omitempty"`
}

// ExtractedSignals is one page's worth of candidate signals plus the raw
// LLM response, retained for replay per spec.md §4.6.
type ExtractedSignals struct {
	Signals     []ExtractedSignal `json:"signals"`
	RawResponse string            `json:"-"`
}

// Extractor turns fetched content into signal candidates via an LLM.
// Deterministic prompts are the caller's responsibility; the interface only
// promises that content + source_url + trust fully determine the request.
type Extractor interface {
	Extract(ctx context.Context, content, sourceURL string, trust float64) (ExtractedSignals, error)
}

// Embedder produces vector embeddings for dedup and cause-heat.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// TitleTypePair is the (normalized_title, node_type) key used by the global
// title-match layer of dedup (spec.md §4.7 layer 2.5).
type TitleTypePair struct {
	NormalizedTitle string
	NodeType        types.NodeType
}

// DuplicateMatch is a candidate's best match in the graph's ANN index.
type DuplicateMatch struct {
	ExistingID uuid.UUID
	SourceURL  string
	Similarity float64
}

// SignalReader is the graph-read side dedup and creation need, kept
// separate from the projector (the graph's single writer).
type SignalReader interface {
	ExistingTitlesForURL(ctx context.Context, url string) ([]string, error)
	FindByTitlesAndTypes(ctx context.Context, pairs []TitleTypePair) (map[TitleTypePair]uuid.UUID, error)
	FindDuplicate(ctx context.Context, embedding []float32, nodeType types.NodeType, threshold float64, bbox types.BoundingBox) (DuplicateMatch, bool, error)
	ReadCorroborationCount(ctx context.Context, id uuid.UUID, nodeType types.NodeType) (int, error)
	FindActorByCanonicalKey(ctx context.Context, key string) (uuid.UUID, bool, error)
}
