package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/fourthplaces/rootsignal/internal/types"
)

// SignalBody is the shared head every signal-discovery world event carries,
// per spec.md §3.1 and §9's "polymorphic signal types" note: a common head
// extracted out, with each of the seven kinds diverging only in its tail.
type SignalBody struct {
	ID                uuid.UUID        `json:"id"`
	Title             string           `json:"title"`
	Summary           string           `json:"summary"`
	SourceURL         string           `json:"source_url"`
	PublishedAt       *time.Time       `json:"published_at,omitempty"`
	ExtractionID      *uuid.UUID       `json:"extraction_id,omitempty"`
	Locations         []types.Location `json:"locations,omitempty"`
	MentionedEntities []types.Entity   `json:"mentioned_entities,omitempty"`
	References        []types.Reference `json:"references,omitempty"`
	Schedule          *types.Schedule  `json:"schedule,omitempty"`
	// Embedding carries the dedup layer's vector so the projector can persist
	// it onto the Signal node, making FindDuplicate meaningful across runs
	// (not just within the in-memory embed cache of the run that created it).
	Embedding []float32 `json:"embedding,omitempty"`
}

func (w Layer) String() string { return string(w) }

// --- The seven signal-discovery events -------------------------------------

type GatheringAnnounced struct {
	SignalBody
	ActionURL *string `json:"action_url,omitempty"`
}

func (GatheringAnnounced) EventType() string { return "gathering_announced" }
func (GatheringAnnounced) Layer() Layer       { return LayerWorld }

type ResourceOffered struct {
	SignalBody
	ActionURL    *string `json:"action_url,omitempty"`
	Availability *string `json:"availability,omitempty"`
}

func (ResourceOffered) EventType() string { return "resource_offered" }
func (ResourceOffered) Layer() Layer       { return LayerWorld }

type HelpRequested struct {
	SignalBody
	WhatNeeded *string `json:"what_needed,omitempty"`
	Goal       *string `json:"goal,omitempty"`
}

func (HelpRequested) EventType() string { return "help_requested" }
func (HelpRequested) Layer() Layer       { return LayerWorld }

type AnnouncementShared struct {
	SignalBody
	Category      *string    `json:"category,omitempty"`
	EffectiveDate *time.Time `json:"effective_date,omitempty"`
}

func (AnnouncementShared) EventType() string { return "announcement_shared" }
func (AnnouncementShared) Layer() Layer       { return LayerWorld }

type ConcernRaised struct {
	SignalBody
	WhatWouldHelp *string `json:"what_would_help,omitempty"`
}

func (ConcernRaised) EventType() string { return "concern_raised" }
func (ConcernRaised) Layer() Layer       { return LayerWorld }

type ConditionObserved struct {
	SignalBody
}

func (ConditionObserved) EventType() string { return "condition_observed" }
func (ConditionObserved) Layer() Layer       { return LayerWorld }

type IncidentReported struct {
	SignalBody
}

func (IncidentReported) EventType() string { return "incident_reported" }
func (IncidentReported) Layer() Layer       { return LayerWorld }

// NodeTypeForSignal reports whether nt is one of the seven signal kinds,
// i.e. anything but Citation.
func NodeTypeForSignal(nt types.NodeType) bool { return nt.IsSignal() }

// --- Citations and resource edges ------------------------------------------

type CitationPublished struct {
	CitationID         uuid.UUID          `json:"citation_id"`
	SignalID           uuid.UUID          `json:"signal_id"`
	URL                string             `json:"url"`
	ContentHash        string             `json:"content_hash"`
	Snippet            *string            `json:"snippet,omitempty"`
	Relevance          *types.Relevance   `json:"relevance,omitempty"`
	ChannelType        *types.ChannelType `json:"channel_type,omitempty"`
	EvidenceConfidence *float32           `json:"evidence_confidence,omitempty"`
}

func (CitationPublished) EventType() string { return "citation_published" }
func (CitationPublished) Layer() Layer       { return LayerWorld }

type ResourceLinked struct {
	SignalID     uuid.UUID          `json:"signal_id"`
	ResourceSlug string             `json:"resource_slug"`
	Role         types.ResourceRole `json:"role"`
	Confidence   float32            `json:"confidence"`
	Quantity     *string            `json:"quantity,omitempty"`
	Notes        *string            `json:"notes,omitempty"`
	Capacity     *string            `json:"capacity,omitempty"`
}

func (ResourceLinked) EventType() string { return "resource_linked" }
func (ResourceLinked) Layer() Layer       { return LayerWorld }

// --- Lifecycle events --------------------------------------------------------

type GatheringCancelled struct {
	SignalID  uuid.UUID `json:"signal_id"`
	Reason    string    `json:"reason"`
	SourceURL string    `json:"source_url"`
}

func (GatheringCancelled) EventType() string { return "gathering_cancelled" }
func (GatheringCancelled) Layer() Layer       { return LayerWorld }

type ResourceDepleted struct {
	SignalID  uuid.UUID `json:"signal_id"`
	Reason    string    `json:"reason"`
	SourceURL string    `json:"source_url"`
}

func (ResourceDepleted) EventType() string { return "resource_depleted" }
func (ResourceDepleted) Layer() Layer       { return LayerWorld }

type AnnouncementRetracted struct {
	SignalID  uuid.UUID `json:"signal_id"`
	Reason    string    `json:"reason"`
	SourceURL string    `json:"source_url"`
}

func (AnnouncementRetracted) EventType() string { return "announcement_retracted" }
func (AnnouncementRetracted) Layer() Layer       { return LayerWorld }

type CitationRetracted struct {
	CitationID uuid.UUID `json:"citation_id"`
	Reason     string    `json:"reason"`
	SourceURL  string    `json:"source_url"`
}

func (CitationRetracted) EventType() string { return "citation_retracted" }
func (CitationRetracted) Layer() Layer       { return LayerWorld }

type DetailsChanged struct {
	SignalID  uuid.UUID `json:"signal_id"`
	Summary   string    `json:"summary"`
	SourceURL string    `json:"source_url"`
}

func (DetailsChanged) EventType() string { return "details_changed" }
func (DetailsChanged) Layer() Layer       { return LayerWorld }

// --- Resource identification, provenance edges ------------------------------

type ResourceIdentified struct {
	ResourceID  uuid.UUID `json:"resource_id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
}

func (ResourceIdentified) EventType() string { return "resource_identified" }
func (ResourceIdentified) Layer() Layer       { return LayerWorld }

type ActorLinkedToSource struct {
	ActorID  uuid.UUID `json:"actor_id"`
	SourceID uuid.UUID `json:"source_id"`
}

func (ActorLinkedToSource) EventType() string { return "actor_linked_to_source" }
func (ActorLinkedToSource) Layer() Layer       { return LayerWorld }

type SignalLinkedToSource struct {
	SignalID uuid.UUID `json:"signal_id"`
	SourceID uuid.UUID `json:"source_id"`
}

func (SignalLinkedToSource) EventType() string { return "signal_linked_to_source" }
func (SignalLinkedToSource) Layer() Layer       { return LayerWorld }

type SourceLinkDiscovered struct {
	ChildID            uuid.UUID `json:"child_id"`
	ParentCanonicalKey string    `json:"parent_canonical_key"`
}

func (SourceLinkDiscovered) EventType() string { return "source_link_discovered" }
func (SourceLinkDiscovered) Layer() Layer       { return LayerWorld }

func init() {
	register("gathering_announced", decodeAs[GatheringAnnounced])
	register("resource_offered", decodeAs[ResourceOffered])
	register("help_requested", decodeAs[HelpRequested])
	register("announcement_shared", decodeAs[AnnouncementShared])
	register("concern_raised", decodeAs[ConcernRaised])
	register("condition_observed", decodeAs[ConditionObserved])
	register("incident_reported", decodeAs[IncidentReported])
	register("citation_published", decodeAs[CitationPublished])
	register("resource_linked", decodeAs[ResourceLinked])
	register("gathering_cancelled", decodeAs[GatheringCancelled])
	register("resource_depleted", decodeAs[ResourceDepleted])
	register("announcement_retracted", decodeAs[AnnouncementRetracted])
	register("citation_retracted", decodeAs[CitationRetracted])
	register("details_changed", decodeAs[DetailsChanged])
	register("resource_identified", decodeAs[ResourceIdentified])
	register("actor_linked_to_source", decodeAs[ActorLinkedToSource])
	register("signal_linked_to_source", decodeAs[SignalLinkedToSource])
	register("source_link_discovered", decodeAs[SourceLinkDiscovered])
}

// decodeAs is a generic helper instantiated per concrete event type so the
// registry doesn't need one hand-written closure per variant.
func decodeAs[T Event](payload json.RawMessage) (Event, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, err
	}
	return v, nil
}
