package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/fourthplaces/rootsignal/internal/types"
)

// PipelinePhase names one stage of a run, for PhaseStarted/PhaseCompleted
// bookkeeping and tracing (spec.md SPEC_FULL §C).
type PipelinePhase string

const (
	PhaseReapExpired     PipelinePhase = "reap_expired"
	PhaseTensionScrape   PipelinePhase = "tension_scrape"
	PhaseMidRunDiscovery PipelinePhase = "mid_run_discovery"
	PhaseResponseScrape  PipelinePhase = "response_scrape"
	PhaseExpansion       PipelinePhase = "expansion"
	PhaseSocialScrape    PipelinePhase = "social_scrape"
	PhaseSocialDiscovery PipelinePhase = "social_discovery"
	PhaseActorEnrichment PipelinePhase = "actor_enrichment"
)

// FreshnessBucket coarsely buckets a signal's published_at age.
type FreshnessBucket string

const (
	FreshnessWithin7d  FreshnessBucket = "within_7d"
	FreshnessWithin30d FreshnessBucket = "within_30d"
	FreshnessWithin90d FreshnessBucket = "within_90d"
	FreshnessOlder     FreshnessBucket = "older"
	FreshnessUnknown   FreshnessBucket = "unknown"
)

type PhaseStarted struct {
	Phase PipelinePhase `json:"phase"`
}

func (PhaseStarted) EventType() string { return "phase_started" }
func (PhaseStarted) Layer() Layer       { return LayerPipeline }

type PhaseCompleted struct {
	Phase PipelinePhase `json:"phase"`
}

func (PhaseCompleted) EventType() string { return "phase_completed" }
func (PhaseCompleted) Layer() Layer       { return LayerPipeline }

type ContentFetched struct {
	URL           string `json:"url"`
	CanonicalKey  string `json:"canonical_key"`
	ContentHash   string `json:"content_hash"`
	LinkCount     uint32 `json:"link_count"`
}

func (ContentFetched) EventType() string { return "content_fetched" }
func (ContentFetched) Layer() Layer       { return LayerPipeline }

type ContentUnchanged struct {
	URL          string `json:"url"`
	CanonicalKey string `json:"canonical_key"`
}

func (ContentUnchanged) EventType() string { return "content_unchanged" }
func (ContentUnchanged) Layer() Layer       { return LayerPipeline }

type ContentFetchFailed struct {
	URL          string `json:"url"`
	CanonicalKey string `json:"canonical_key"`
	Error        string `json:"error"`
}

func (ContentFetchFailed) EventType() string { return "content_fetch_failed" }
func (ContentFetchFailed) Layer() Layer       { return LayerPipeline }

type SignalsExtracted struct {
	URL          string `json:"url"`
	CanonicalKey string `json:"canonical_key"`
	Count        uint32 `json:"count"`
}

func (SignalsExtracted) EventType() string { return "signals_extracted" }
func (SignalsExtracted) Layer() Layer       { return LayerPipeline }

type ExtractionFailed struct {
	URL          string `json:"url"`
	CanonicalKey string `json:"canonical_key"`
	Error        string `json:"error"`
}

func (ExtractionFailed) EventType() string { return "extraction_failed" }
func (ExtractionFailed) Layer() Layer       { return LayerPipeline }

// PendingNode is the in-memory candidate signal between dedup acceptance and
// edge wiring (spec.md §3.1). It travels inside NewSignalAccepted's payload
// so the reducer can stash it and the creation handler can retrieve it.
type PendingNode struct {
	NodeID        uuid.UUID         `json:"node_id"`
	NodeType      types.NodeType    `json:"node_type"`
	Body          SignalBody        `json:"body"`
	Tail          map[string]any    `json:"tail,omitempty"` // type-specific fields not in SignalBody
	Embedding     []float32         `json:"embedding"`
	ContentHash   string            `json:"content_hash"`
	ResourceTags  []ResourceTag     `json:"resource_tags,omitempty"`
	SignalTags     []string          `json:"signal_tags,omitempty"`
	AuthorName     *string           `json:"author_name,omitempty"`
	SourceID       *uuid.UUID        `json:"source_id,omitempty"`
	ImpliedQueries []string          `json:"implied_queries,omitempty"`
	Sensitivity    types.Sensitivity `json:"sensitivity"`
}

// ResourceTag is an extractor-produced candidate resource edge awaiting
// confirmation in the creation handler (spec.md §4.8).
type ResourceTag struct {
	Name       string             `json:"name"`
	Slug       string             `json:"slug"`
	Role       types.ResourceRole `json:"role"`
	Confidence float32            `json:"confidence"`
	Quantity   *string            `json:"quantity,omitempty"`
	Capacity   *string            `json:"capacity,omitempty"`
	Notes      *string            `json:"notes,omitempty"`
}

type NewSignalAccepted struct {
	NodeID      uuid.UUID      `json:"node_id"`
	NodeType    types.NodeType `json:"node_type"`
	Title       string         `json:"title"`
	SourceURL   string         `json:"source_url"`
	PendingNode PendingNode    `json:"pending_node"`
}

func (NewSignalAccepted) EventType() string { return "new_signal_accepted" }
func (NewSignalAccepted) Layer() Layer       { return LayerPipeline }

type CrossSourceMatchDetected struct {
	ExistingID uuid.UUID      `json:"existing_id"`
	NodeType   types.NodeType `json:"node_type"`
	SourceURL  string         `json:"source_url"`
	Similarity float64        `json:"similarity"`
}

func (CrossSourceMatchDetected) EventType() string { return "cross_source_match_detected" }
func (CrossSourceMatchDetected) Layer() Layer       { return LayerPipeline }

type SameSourceReencountered struct {
	ExistingID uuid.UUID      `json:"existing_id"`
	NodeType   types.NodeType `json:"node_type"`
	SourceURL  string         `json:"source_url"`
	Similarity float64        `json:"similarity"`
}

func (SameSourceReencountered) EventType() string { return "same_source_reencountered" }
func (SameSourceReencountered) Layer() Layer       { return LayerPipeline }

// SignalStored fires once the world/system events for a new signal have been
// emitted; it triggers edge wiring (spec.md §4.8 handle_signal_stored). The
// original implementation idiosyncratically named this variant
// "SignalReaderd" (almost certainly a typo for "SignalStored") — normalized
// here to match spec.md's naming.
type SignalStored struct {
	NodeID       uuid.UUID      `json:"node_id"`
	NodeType     types.NodeType `json:"node_type"`
	SourceURL    string         `json:"source_url"`
	CanonicalKey string         `json:"canonical_key"`
}

func (SignalStored) EventType() string { return "signal_stored" }
func (SignalStored) Layer() Layer       { return LayerPipeline }

type DedupCompleted struct {
	URL string `json:"url"`
}

func (DedupCompleted) EventType() string { return "dedup_completed" }
func (DedupCompleted) Layer() Layer       { return LayerPipeline }

type UrlProcessed struct {
	URL                 string `json:"url"`
	CanonicalKey        string `json:"canonical_key"`
	SignalsCreated      uint32 `json:"signals_created"`
	SignalsDeduplicated uint32 `json:"signals_deduplicated"`
}

func (UrlProcessed) EventType() string { return "url_processed" }
func (UrlProcessed) Layer() Layer       { return LayerPipeline }

type LinkCollected struct {
	URL          string `json:"url"`
	DiscoveredOn string `json:"discovered_on"`
}

func (LinkCollected) EventType() string { return "link_collected" }
func (LinkCollected) Layer() Layer       { return LayerPipeline }

type ExpansionQueryCollected struct {
	Query     string `json:"query"`
	SourceURL string `json:"source_url"`
}

func (ExpansionQueryCollected) EventType() string { return "expansion_query_collected" }
func (ExpansionQueryCollected) Layer() Layer       { return LayerPipeline }

type SocialTopicCollected struct {
	Topic string `json:"topic"`
}

func (SocialTopicCollected) EventType() string { return "social_topic_collected" }
func (SocialTopicCollected) Layer() Layer       { return LayerPipeline }

// SourceNode is the candidate source built by the link/source promoter
// (spec.md §4.11) and carried in SourceDiscovered's payload.
type SourceNode struct {
	ID                   uuid.UUID             `json:"id"`
	CanonicalKey         string                `json:"canonical_key"`
	CanonicalValue       string                `json:"canonical_value"`
	URL                  *string               `json:"url,omitempty"`
	SourceType           types.SourceType      `json:"source_type"`
	DiscoveryMethod      types.DiscoveryMethod `json:"discovery_method"`
	Weight               float64               `json:"weight"`
	SourceRole           types.SourceRole      `json:"source_role"`
	GapContext           *string               `json:"gap_context,omitempty"`
	CadenceHoursOverride *float64              `json:"cadence_hours,omitempty"`
}

type SourceDiscovered struct {
	Source       SourceNode `json:"source"`
	DiscoveredBy string     `json:"discovered_by"`
}

func (SourceDiscovered) EventType() string { return "source_discovered" }
func (SourceDiscovered) Layer() Layer       { return LayerPipeline }

// Projectable makes SourceDiscovered the sole pipeline event the projector
// applies (spec.md §4.9 "Skipping pipeline events is a correctness
// requirement" — except this one, per §3.3).
func (SourceDiscovered) Projectable() bool { return true }

type SocialPostsFetched struct {
	CanonicalKey string `json:"canonical_key"`
	Platform     string `json:"platform"`
	Count        uint32 `json:"count"`
}

func (SocialPostsFetched) EventType() string { return "social_posts_fetched" }
func (SocialPostsFetched) Layer() Layer       { return LayerPipeline }

type FreshnessRecorded struct {
	NodeID      uuid.UUID       `json:"node_id"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
	Bucket      FreshnessBucket `json:"bucket"`
}

func (FreshnessRecorded) EventType() string { return "freshness_recorded" }
func (FreshnessRecorded) Layer() Layer       { return LayerPipeline }

type EngineStarted struct {
	RunID string `json:"run_id"`
}

func (EngineStarted) EventType() string { return "engine_started" }
func (EngineStarted) Layer() Layer       { return LayerPipeline }

func init() {
	register("phase_started", decodeAs[PhaseStarted])
	register("phase_completed", decodeAs[PhaseCompleted])
	register("content_fetched", decodeAs[ContentFetched])
	register("content_unchanged", decodeAs[ContentUnchanged])
	register("content_fetch_failed", decodeAs[ContentFetchFailed])
	register("signals_extracted", decodeAs[SignalsExtracted])
	register("extraction_failed", decodeAs[ExtractionFailed])
	register("new_signal_accepted", decodeAs[NewSignalAccepted])
	register("cross_source_match_detected", decodeAs[CrossSourceMatchDetected])
	register("same_source_reencountered", decodeAs[SameSourceReencountered])
	register("signal_stored", decodeAs[SignalStored])
	register("dedup_completed", decodeAs[DedupCompleted])
	register("url_processed", decodeAs[UrlProcessed])
	register("link_collected", decodeAs[LinkCollected])
	register("expansion_query_collected", decodeAs[ExpansionQueryCollected])
	register("social_topic_collected", decodeAs[SocialTopicCollected])
	register("source_discovered", decodeAs[SourceDiscovered])
	register("social_posts_fetched", decodeAs[SocialPostsFetched])
	register("freshness_recorded", decodeAs[FreshnessRecorded])
	register("engine_started", decodeAs[EngineStarted])
}
