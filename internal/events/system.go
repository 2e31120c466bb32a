package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/fourthplaces/rootsignal/internal/types"
)

// System events record editorial or scoring decisions the pipeline made
// about a world fact (spec.md §3.3).

type SensitivityClassified struct {
	SignalID uuid.UUID           `json:"signal_id"`
	Level    types.Sensitivity   `json:"level"`
}

func (SensitivityClassified) EventType() string { return "sensitivity_classified" }
func (SensitivityClassified) Layer() Layer       { return LayerSystem }

type SeverityClassified struct {
	SignalID uuid.UUID      `json:"signal_id"`
	Severity types.Severity `json:"severity"`
}

func (SeverityClassified) EventType() string { return "severity_classified" }
func (SeverityClassified) Layer() Layer       { return LayerSystem }

type UrgencyClassified struct {
	SignalID uuid.UUID     `json:"signal_id"`
	Urgency  types.Urgency `json:"urgency"`
}

func (UrgencyClassified) EventType() string { return "urgency_classified" }
func (UrgencyClassified) Layer() Layer       { return LayerSystem }

type ToneClassified struct {
	SignalID uuid.UUID `json:"signal_id"`
	Tone     types.Tone `json:"tone"`
}

func (ToneClassified) EventType() string { return "tone_classified" }
func (ToneClassified) Layer() Layer       { return LayerSystem }

type ImpliedQueriesExtracted struct {
	SignalID uuid.UUID `json:"signal_id"`
	Queries  []string  `json:"queries"`
}

func (ImpliedQueriesExtracted) EventType() string { return "implied_queries_extracted" }
func (ImpliedQueriesExtracted) Layer() Layer       { return LayerSystem }

type ObservationCorroborated struct {
	SignalID     uuid.UUID      `json:"signal_id"`
	NodeType     types.NodeType `json:"node_type"`
	NewSourceURL string         `json:"new_source_url"`
	Summary      *string        `json:"summary,omitempty"`
}

func (ObservationCorroborated) EventType() string { return "observation_corroborated" }
func (ObservationCorroborated) Layer() Layer       { return LayerSystem }

type ObservationRejected struct {
	SignalID  *uuid.UUID `json:"signal_id,omitempty"`
	Title     string     `json:"title"`
	SourceURL string     `json:"source_url"`
	Reason    string     `json:"reason"`
}

func (ObservationRejected) EventType() string { return "observation_rejected" }
func (ObservationRejected) Layer() Layer       { return LayerSystem }

type EntityExpired struct {
	SignalID uuid.UUID      `json:"signal_id"`
	NodeType types.NodeType `json:"node_type"`
	Reason   string         `json:"reason"`
}

func (EntityExpired) EventType() string { return "entity_expired" }
func (EntityExpired) Layer() Layer       { return LayerSystem }

type EntityPurged struct {
	SignalID uuid.UUID      `json:"signal_id"`
	NodeType types.NodeType `json:"node_type"`
	Reason   string         `json:"reason"`
	Context  *string        `json:"context,omitempty"`
}

func (EntityPurged) EventType() string { return "entity_purged" }
func (EntityPurged) Layer() Layer       { return LayerSystem }

type DuplicateDetected struct {
	NodeType  types.NodeType `json:"node_type"`
	Title     string         `json:"title"`
	MatchedID uuid.UUID      `json:"matched_id"`
	Similarity float64       `json:"similarity"`
	Action    string         `json:"action"`
	SourceURL string         `json:"source_url"`
	Summary   *string        `json:"summary,omitempty"`
}

func (DuplicateDetected) EventType() string { return "duplicate_detected" }
func (DuplicateDetected) Layer() Layer       { return LayerSystem }

type FreshnessConfirmed struct {
	SignalIDs   []uuid.UUID    `json:"signal_ids"`
	NodeType    types.NodeType `json:"node_type"`
	ConfirmedAt time.Time      `json:"confirmed_at"`
}

func (FreshnessConfirmed) EventType() string { return "freshness_confirmed" }
func (FreshnessConfirmed) Layer() Layer       { return LayerSystem }

type CorroborationScored struct {
	SignalID              uuid.UUID `json:"signal_id"`
	Similarity            float64   `json:"similarity"`
	NewCorroborationCount int       `json:"new_corroboration_count"`
}

func (CorroborationScored) EventType() string { return "corroboration_scored" }
func (CorroborationScored) Layer() Layer       { return LayerSystem }

type SignalTagged struct {
	SignalID uuid.UUID `json:"signal_id"`
	TagSlugs []string  `json:"tag_slugs"`
}

func (SignalTagged) EventType() string { return "signal_tagged" }
func (SignalTagged) Layer() Layer       { return LayerSystem }

type ReviewVerdictReached struct {
	SignalID  uuid.UUID `json:"signal_id"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	Reason    string    `json:"reason"`
}

func (ReviewVerdictReached) EventType() string { return "review_verdict_reached" }
func (ReviewVerdictReached) Layer() Layer       { return LayerSystem }

// --- Actor identification -----------------------------------------------

type ActorIdentified struct {
	ActorID      uuid.UUID       `json:"actor_id"`
	Name         string          `json:"name"`
	ActorType    types.ActorType `json:"actor_type"`
	CanonicalKey string          `json:"canonical_key"`
	Domains      []string        `json:"domains,omitempty"`
	SocialURLs   []string        `json:"social_urls,omitempty"`
	Description  string          `json:"description,omitempty"`
	Bio          *string         `json:"bio,omitempty"`
	LocationLat  *float64        `json:"location_lat,omitempty"`
	LocationLng  *float64        `json:"location_lng,omitempty"`
	LocationName *string         `json:"location_name,omitempty"`
}

func (ActorIdentified) EventType() string { return "actor_identified" }
func (ActorIdentified) Layer() Layer       { return LayerSystem }

type ActorLinkedToSignal struct {
	ActorID  uuid.UUID `json:"actor_id"`
	SignalID uuid.UUID `json:"signal_id"`
	Role     string    `json:"role"`
}

func (ActorLinkedToSignal) EventType() string { return "actor_linked_to_signal" }
func (ActorLinkedToSignal) Layer() Layer       { return LayerSystem }

// --- Source lifecycle -----------------------------------------------------

type SourceRegistered struct {
	SourceID        uuid.UUID             `json:"source_id"`
	CanonicalKey    string                `json:"canonical_key"`
	CanonicalValue  string                `json:"canonical_value"`
	URL             *string               `json:"url,omitempty"`
	DiscoveryMethod types.DiscoveryMethod `json:"discovery_method"`
	Weight          float64               `json:"weight"`
	SourceRole      types.SourceRole      `json:"source_role"`
	GapContext      *string               `json:"gap_context,omitempty"`
}

func (SourceRegistered) EventType() string { return "source_registered" }
func (SourceRegistered) Layer() Layer       { return LayerSystem }

type SourceChanged struct {
	SourceID     uuid.UUID `json:"source_id"`
	CanonicalKey string    `json:"canonical_key"`
	Field        string    `json:"field"`
	NewValue     string    `json:"new_value"`
}

func (SourceChanged) EventType() string { return "source_changed" }
func (SourceChanged) Layer() Layer       { return LayerSystem }

type SourceDeactivated struct {
	SourceIDs []uuid.UUID `json:"source_ids"`
	Reason    string      `json:"reason"`
}

func (SourceDeactivated) EventType() string { return "source_deactivated" }
func (SourceDeactivated) Layer() Layer       { return LayerSystem }

// --- Situations and dispatches ---------------------------------------------

type SituationIdentified struct {
	SituationID     uuid.UUID `json:"situation_id"`
	Headline        string    `json:"headline"`
	Lede            string    `json:"lede"`
	CentroidLat     *float64  `json:"centroid_lat,omitempty"`
	CentroidLng     *float64  `json:"centroid_lng,omitempty"`
	LocationName    *string   `json:"location_name,omitempty"`
	Sensitivity     types.Sensitivity `json:"sensitivity"`
	Category        *string   `json:"category,omitempty"`
}

func (SituationIdentified) EventType() string { return "situation_identified" }
func (SituationIdentified) Layer() Layer       { return LayerSystem }

type SituationChanged struct {
	SituationID uuid.UUID `json:"situation_id"`
	Change      string    `json:"change"`
}

func (SituationChanged) EventType() string { return "situation_changed" }
func (SituationChanged) Layer() Layer       { return LayerSystem }

type SituationPromoted struct {
	SituationIDs []uuid.UUID `json:"situation_ids"`
}

func (SituationPromoted) EventType() string { return "situation_promoted" }
func (SituationPromoted) Layer() Layer       { return LayerSystem }

type DispatchCreated struct {
	DispatchID   uuid.UUID   `json:"dispatch_id"`
	SituationID  *uuid.UUID  `json:"situation_id,omitempty"`
	Body         string      `json:"body"`
	SignalIDs    []uuid.UUID `json:"signal_ids"`
	DispatchType string      `json:"dispatch_type"`
	Supersedes   *uuid.UUID  `json:"supersedes,omitempty"`
}

func (DispatchCreated) EventType() string { return "dispatch_created" }
func (DispatchCreated) Layer() Layer       { return LayerSystem }

// --- User/operator actions --------------------------------------------------

type PinCreated struct {
	PinID       uuid.UUID `json:"pin_id"`
	LocationLat float64   `json:"location_lat"`
	LocationLng float64   `json:"location_lng"`
	SourceID    *uuid.UUID `json:"source_id,omitempty"`
	CreatedBy   string    `json:"created_by"`
}

func (PinCreated) EventType() string { return "pin_created" }
func (PinCreated) Layer() Layer       { return LayerSystem }

type PinsConsumed struct {
	PinIDs []uuid.UUID `json:"pin_ids"`
}

func (PinsConsumed) EventType() string { return "pins_consumed" }
func (PinsConsumed) Layer() Layer       { return LayerSystem }

type DemandReceived struct {
	DemandID uuid.UUID `json:"demand_id"`
	Query    string    `json:"query"`
	CenterLat float64  `json:"center_lat"`
	CenterLng float64  `json:"center_lng"`
	RadiusKm  float64  `json:"radius_km"`
}

func (DemandReceived) EventType() string { return "demand_received" }
func (DemandReceived) Layer() Layer       { return LayerSystem }

type SubmissionReceived struct {
	SubmissionID         uuid.UUID `json:"submission_id"`
	URL                  string    `json:"url"`
	Reason               *string   `json:"reason,omitempty"`
	SourceCanonicalKey   *string   `json:"source_canonical_key,omitempty"`
}

func (SubmissionReceived) EventType() string { return "submission_received" }
func (SubmissionReceived) Layer() Layer       { return LayerSystem }

func init() {
	register("sensitivity_classified", decodeAs[SensitivityClassified])
	register("severity_classified", decodeAs[SeverityClassified])
	register("urgency_classified", decodeAs[UrgencyClassified])
	register("tone_classified", decodeAs[ToneClassified])
	register("implied_queries_extracted", decodeAs[ImpliedQueriesExtracted])
	register("observation_corroborated", decodeAs[ObservationCorroborated])
	register("observation_rejected", decodeAs[ObservationRejected])
	register("entity_expired", decodeAs[EntityExpired])
	register("entity_purged", decodeAs[EntityPurged])
	register("duplicate_detected", decodeAs[DuplicateDetected])
	register("freshness_confirmed", decodeAs[FreshnessConfirmed])
	register("corroboration_scored", decodeAs[CorroborationScored])
	register("signal_tagged", decodeAs[SignalTagged])
	register("review_verdict_reached", decodeAs[ReviewVerdictReached])
	register("actor_identified", decodeAs[ActorIdentified])
	register("actor_linked_to_signal", decodeAs[ActorLinkedToSignal])
	register("source_registered", decodeAs[SourceRegistered])
	register("source_changed", decodeAs[SourceChanged])
	register("source_deactivated", decodeAs[SourceDeactivated])
	register("situation_identified", decodeAs[SituationIdentified])
	register("situation_changed", decodeAs[SituationChanged])
	register("situation_promoted", decodeAs[SituationPromoted])
	register("dispatch_created", decodeAs[DispatchCreated])
	register("pin_created", decodeAs[PinCreated])
	register("pins_consumed", decodeAs[PinsConsumed])
	register("demand_received", decodeAs[DemandReceived])
	register("submission_received", decodeAs[SubmissionReceived])
}
