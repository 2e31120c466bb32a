package graph

import (
	"context"
	"fmt"

	"github.com/fourthplaces/rootsignal/internal/events"
	"github.com/fourthplaces/rootsignal/internal/types"
)

// Projector applies World and System events (plus the one opted-in Pipeline
// event, SourceDiscovered) onto the graph store, per spec.md §4.9. Every
// write is a MERGE keyed on a stable identity so replaying the event log
// from scratch reconstructs exactly the same graph: skipping pipeline
// bookkeeping events is a correctness requirement here, not an optimization.
type Projector struct {
	client Client
}

func NewProjector(client Client) *Projector {
	return &Projector{client: client}
}

// Apply projects a single event, no-op if the event isn't Projectable.
func (p *Projector) Apply(ctx context.Context, ev events.Event) error {
	if !events.Projectable(ev) {
		return nil
	}

	switch e := ev.(type) {
	case events.GatheringAnnounced:
		return p.mergeSignal(ctx, types.NodeGathering, e.SignalBody)
	case events.ResourceOffered:
		return p.mergeSignal(ctx, types.NodeAid, e.SignalBody)
	case events.HelpRequested:
		return p.mergeSignal(ctx, types.NodeNeed, e.SignalBody)
	case events.AnnouncementShared:
		return p.mergeSignal(ctx, types.NodeNotice, e.SignalBody)
	case events.ConcernRaised:
		return p.mergeSignal(ctx, types.NodeTension, e.SignalBody)
	case events.ConditionObserved:
		return p.mergeSignal(ctx, types.NodeCondition, e.SignalBody)
	case events.IncidentReported:
		return p.mergeSignal(ctx, types.NodeIncident, e.SignalBody)

	case events.CitationPublished:
		return p.applyCitationPublished(ctx, e)
	case events.ResourceLinked:
		return p.applyResourceLinked(ctx, e)
	case events.ResourceIdentified:
		return p.applyResourceIdentified(ctx, e)

	case events.ObservationCorroborated:
		return p.applyObservationCorroborated(ctx, e)

	case events.ActorIdentified:
		return p.applyActorIdentified(ctx, e)
	case events.ActorLinkedToSignal:
		return p.applyActorLinkedToSignal(ctx, e)
	case events.ActorLinkedToSource:
		return p.applyActorLinkedToSource(ctx, e)
	case events.SignalLinkedToSource:
		return p.applySignalLinkedToSource(ctx, e)
	case events.SourceLinkDiscovered:
		return p.applySourceLinkDiscovered(ctx, e)

	case events.GatheringCancelled:
		return p.markStatus(ctx, e.SignalID, "cancelled", e.Reason)
	case events.ResourceDepleted:
		return p.markStatus(ctx, e.SignalID, "depleted", e.Reason)
	case events.AnnouncementRetracted:
		return p.markStatus(ctx, e.SignalID, "retracted", e.Reason)
	case events.CitationRetracted:
		return p.markCitationStatus(ctx, e.CitationID, "retracted", e.Reason)
	case events.DetailsChanged:
		return p.applyDetailsChanged(ctx, e)

	case events.SensitivityClassified:
		return p.setSignalField(ctx, e.SignalID, "sensitivity", string(e.Level))
	case events.SeverityClassified:
		return p.setSignalField(ctx, e.SignalID, "severity", string(e.Severity))
	case events.UrgencyClassified:
		return p.setSignalField(ctx, e.SignalID, "urgency", string(e.Urgency))
	case events.ToneClassified:
		return p.setSignalField(ctx, e.SignalID, "tone", string(e.Tone))
	case events.SignalTagged:
		return p.applySignalTagged(ctx, e)

	case events.EntityExpired:
		return p.markEntityStatus(ctx, e.SignalID, "expired", e.Reason)
	case events.EntityPurged:
		return p.applyEntityPurged(ctx, e)

	case events.SourceRegistered:
		return p.applySourceRegistered(ctx, e)
	case events.SourceChanged:
		return p.applySourceChanged(ctx, e)
	case events.SourceDeactivated:
		return p.applySourceDeactivated(ctx, e)

	case events.SituationIdentified:
		return p.applySituationIdentified(ctx, e)
	case events.SituationChanged:
		return p.applySituationChanged(ctx, e)
	case events.SituationPromoted:
		return p.applySituationPromoted(ctx, e)
	case events.DispatchCreated:
		return p.applyDispatchCreated(ctx, e)

	case events.SourceDiscovered:
		return p.applySourceDiscovered(ctx, e)

	default:
		// Other System events (ImpliedQueriesExtracted, ObservationRejected,
		// FreshnessConfirmed, CorroborationScored, ReviewVerdictReached,
		// PinCreated, PinsConsumed, DemandReceived, SubmissionReceived) carry
		// no standing graph shape to project; the engine state machine is
		// their only consumer.
		return nil
	}
}

func (p *Projector) mergeSignal(ctx context.Context, nodeType types.NodeType, b events.SignalBody) error {
	var lat, lng any
	if len(b.Locations) > 0 && b.Locations[0].Point != nil {
		lat, lng = b.Locations[0].Point.Lat, b.Locations[0].Point.Lng
	}

	_, err := p.client.Query(ctx, fmt.Sprintf(`
		MERGE (s:Signal:%s {id: $id})
		SET s.title = $title,
		    s.normalized_title = $normalized_title,
		    s.summary = $summary,
		    s.source_url = $source_url,
		    s.published_at = $published_at,
		    s.node_type = $node_type,
		    s.status = coalesce(s.status, 'live'),
		    s.embedding = coalesce($embedding, s.embedding),
		    s.location_lat = coalesce($location_lat, s.location_lat),
		    s.location_lng = coalesce($location_lng, s.location_lng)
	`, labelFor(nodeType)), map[string]any{
		"id":               b.ID.String(),
		"title":            b.Title,
		"normalized_title": types.NormalizeTitle(b.Title),
		"summary":          b.Summary,
		"source_url":       b.SourceURL,
		"published_at":     timeOrNil(b.PublishedAt),
		"node_type":        string(nodeType),
		"embedding":        embeddingOrNil(b.Embedding),
		"location_lat":     lat,
		"location_lng":     lng,
	})
	return err
}

func embeddingOrNil(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return v
}

func labelFor(nt types.NodeType) string {
	switch nt {
	case types.NodeGathering:
		return "Gathering"
	case types.NodeAid:
		return "Aid"
	case types.NodeNeed:
		return "Need"
	case types.NodeNotice:
		return "Notice"
	case types.NodeTension:
		return "Tension"
	case types.NodeCondition:
		return "Condition"
	case types.NodeIncident:
		return "Incident"
	default:
		return "Signal"
	}
}

func (p *Projector) applyCitationPublished(ctx context.Context, e events.CitationPublished) error {
	_, err := p.client.Query(ctx, `
		MERGE (c:Citation {id: $citation_id})
		SET c.url = $url,
		    c.content_hash = $content_hash,
		    c.snippet = $snippet,
		    c.relevance = $relevance,
		    c.channel_type = $channel_type,
		    c.evidence_confidence = $evidence_confidence,
		    c.status = coalesce(c.status, 'live')
		WITH c
		MATCH (s:Signal {id: $signal_id})
		MERGE (s)-[:SOURCED_FROM]->(c)
	`, map[string]any{
		"citation_id":         e.CitationID.String(),
		"signal_id":           e.SignalID.String(),
		"url":                 e.URL,
		"content_hash":        e.ContentHash,
		"snippet":             strOrNil(e.Snippet),
		"relevance":           relevanceOrNil(e.Relevance),
		"channel_type":        channelOrNil(e.ChannelType),
		"evidence_confidence": e.EvidenceConfidence,
	})
	return err
}

func (p *Projector) applyResourceIdentified(ctx context.Context, e events.ResourceIdentified) error {
	_, err := p.client.Query(ctx, `
		MERGE (r:Resource {slug: $slug})
		ON CREATE SET r.id = $id, r.name = $name, r.description = $description
	`, map[string]any{
		"slug":        e.Slug,
		"id":          e.ResourceID.String(),
		"name":        e.Name,
		"description": e.Description,
	})
	return err
}

func (p *Projector) applyResourceLinked(ctx context.Context, e events.ResourceLinked) error {
	edgeType, err := types.ResourceRoleToEdgeType(e.Role)
	if err != nil {
		return err
	}
	_, qerr := p.client.Query(ctx, fmt.Sprintf(`
		MATCH (s:Signal {id: $signal_id})
		MATCH (r:Resource {slug: $resource_slug})
		MERGE (s)-[edge:%s]->(r)
		SET edge.confidence = $confidence,
		    edge.quantity = $quantity,
		    edge.capacity = $capacity,
		    edge.notes = $notes
	`, edgeType), map[string]any{
		"signal_id":     e.SignalID.String(),
		"resource_slug": e.ResourceSlug,
		"confidence":    e.Confidence,
		"quantity":      strOrNil(e.Quantity),
		"capacity":      strOrNil(e.Capacity),
		"notes":         strOrNil(e.Notes),
	})
	return qerr
}

// applyObservationCorroborated increments corroboration_count with a
// read-modify-write MERGE; safe because the event log serializes writes by
// seq order, so there's no concurrent increment to race against.
func (p *Projector) applyObservationCorroborated(ctx context.Context, e events.ObservationCorroborated) error {
	_, err := p.client.Query(ctx, `
		MATCH (s:Signal {id: $signal_id})
		SET s.corroboration_count = coalesce(s.corroboration_count, 0) + 1,
		    s.summary = coalesce($summary, s.summary)
	`, map[string]any{
		"signal_id": e.SignalID.String(),
		"summary":   strOrNil(e.Summary),
	})
	return err
}

func (p *Projector) applyActorIdentified(ctx context.Context, e events.ActorIdentified) error {
	_, err := p.client.Query(ctx, `
		MERGE (a:Actor {canonical_key: $canonical_key})
		ON CREATE SET a.id = $id, a.signal_count = 0
		SET a.name = $name,
		    a.actor_type = $actor_type,
		    a.domains = $domains,
		    a.social_urls = $social_urls,
		    a.description = $description,
		    a.bio = $bio,
		    a.location_lat = $location_lat,
		    a.location_lng = $location_lng,
		    a.location_name = $location_name
	`, map[string]any{
		"canonical_key": e.CanonicalKey,
		"id":            e.ActorID.String(),
		"name":          e.Name,
		"actor_type":    string(e.ActorType),
		"domains":       e.Domains,
		"social_urls":   e.SocialURLs,
		"description":   e.Description,
		"bio":           strOrNil(e.Bio),
		"location_lat":  e.LocationLat,
		"location_lng":  e.LocationLng,
		"location_name": strOrNil(e.LocationName),
	})
	return err
}

func (p *Projector) applyActorLinkedToSignal(ctx context.Context, e events.ActorLinkedToSignal) error {
	_, err := p.client.Query(ctx, `
		MATCH (a:Actor {id: $actor_id})
		MATCH (s:Signal {id: $signal_id})
		MERGE (a)-[edge:ACTED_IN]->(s)
		SET edge.role = $role
	`, map[string]any{
		"actor_id":  e.ActorID.String(),
		"signal_id": e.SignalID.String(),
		"role":      e.Role,
	})
	return err
}

func (p *Projector) applyActorLinkedToSource(ctx context.Context, e events.ActorLinkedToSource) error {
	_, err := p.client.Query(ctx, `
		MATCH (a:Actor {id: $actor_id})
		MATCH (src:Source {id: $source_id})
		MERGE (a)-[:SUBMITTED_FOR]->(src)
	`, map[string]any{
		"actor_id":  e.ActorID.String(),
		"source_id": e.SourceID.String(),
	})
	return err
}

func (p *Projector) applySignalLinkedToSource(ctx context.Context, e events.SignalLinkedToSource) error {
	_, err := p.client.Query(ctx, `
		MATCH (s:Signal {id: $signal_id})
		MATCH (src:Source {id: $source_id})
		MERGE (s)-[:DRAWN_TO]->(src)
	`, map[string]any{
		"signal_id": e.SignalID.String(),
		"source_id": e.SourceID.String(),
	})
	return err
}

func (p *Projector) applySourceLinkDiscovered(ctx context.Context, e events.SourceLinkDiscovered) error {
	_, err := p.client.Query(ctx, `
		MATCH (child:Source {id: $child_id})
		MATCH (parent:Source {canonical_key: $parent_key})
		MERGE (child)-[:GATHERS_AT]->(parent)
	`, map[string]any{
		"child_id":   e.ChildID.String(),
		"parent_key": e.ParentCanonicalKey,
	})
	return err
}

// markStatus flips a Signal's lifecycle flag rather than deleting the node,
// per spec.md §4.12: retracted/cancelled/depleted signals stay in the graph
// for audit and possible un-retraction.
func (p *Projector) markStatus(ctx context.Context, signalID fmt.Stringer, status, reason string) error {
	_, err := p.client.Query(ctx, `
		MATCH (s:Signal {id: $id})
		SET s.status = $status, s.status_reason = $reason
	`, map[string]any{"id": signalID.String(), "status": status, "reason": reason})
	return err
}

func (p *Projector) markEntityStatus(ctx context.Context, signalID fmt.Stringer, status, reason string) error {
	return p.markStatus(ctx, signalID, status, reason)
}

func (p *Projector) markCitationStatus(ctx context.Context, citationID fmt.Stringer, status, reason string) error {
	_, err := p.client.Query(ctx, `
		MATCH (c:Citation {id: $id})
		SET c.status = $status, c.status_reason = $reason
	`, map[string]any{"id": citationID.String(), "status": status, "reason": reason})
	return err
}

func (p *Projector) applyEntityPurged(ctx context.Context, e events.EntityPurged) error {
	_, err := p.client.Query(ctx, `
		MATCH (s:Signal {id: $id})
		SET s.status = 'purged', s.status_reason = $reason, s.purge_context = $context
	`, map[string]any{
		"id":      e.SignalID.String(),
		"reason":  e.Reason,
		"context": strOrNil(e.Context),
	})
	return err
}

func (p *Projector) applyDetailsChanged(ctx context.Context, e events.DetailsChanged) error {
	_, err := p.client.Query(ctx, `
		MATCH (s:Signal {id: $id})
		SET s.summary = $summary, s.status = 'corrected'
	`, map[string]any{"id": e.SignalID.String(), "summary": e.Summary})
	return err
}

func (p *Projector) setSignalField(ctx context.Context, signalID fmt.Stringer, field, value string) error {
	_, err := p.client.Query(ctx, fmt.Sprintf(`
		MATCH (s:Signal {id: $id})
		SET s.%s = $value
	`, field), map[string]any{"id": signalID.String(), "value": value})
	return err
}

func (p *Projector) applySignalTagged(ctx context.Context, e events.SignalTagged) error {
	_, err := p.client.Query(ctx, `
		MATCH (s:Signal {id: $signal_id})
		UNWIND $tag_slugs AS slug
		MERGE (t:Tag {slug: slug})
		MERGE (s)-[:TAGGED]->(t)
	`, map[string]any{"signal_id": e.SignalID.String(), "tag_slugs": e.TagSlugs})
	return err
}

func (p *Projector) applySourceRegistered(ctx context.Context, e events.SourceRegistered) error {
	_, err := p.client.Query(ctx, `
		MERGE (src:Source {canonical_key: $canonical_key})
		ON CREATE SET src.id = $id
		SET src.canonical_value = $canonical_value,
		    src.url = $url,
		    src.discovery_method = $discovery_method,
		    src.weight = $weight,
		    src.source_role = $source_role,
		    src.gap_context = $gap_context,
		    src.status = coalesce(src.status, 'registered')
	`, map[string]any{
		"canonical_key":    e.CanonicalKey,
		"id":               e.SourceID.String(),
		"canonical_value":  e.CanonicalValue,
		"url":              strPtrOrNil(e.URL),
		"discovery_method": string(e.DiscoveryMethod),
		"weight":           e.Weight,
		"source_role":      string(e.SourceRole),
		"gap_context":      strOrNil(e.GapContext),
	})
	return err
}

func (p *Projector) applySourceChanged(ctx context.Context, e events.SourceChanged) error {
	_, err := p.client.Query(ctx, fmt.Sprintf(`
		MATCH (src:Source {canonical_key: $canonical_key})
		SET src.%s = $value
	`, e.Field), map[string]any{"canonical_key": e.CanonicalKey, "value": e.NewValue})
	return err
}

func (p *Projector) applySourceDeactivated(ctx context.Context, e events.SourceDeactivated) error {
	ids := make([]string, len(e.SourceIDs))
	for i, id := range e.SourceIDs {
		ids[i] = id.String()
	}
	_, err := p.client.Query(ctx, `
		MATCH (src:Source)
		WHERE src.id IN $ids
		SET src.status = 'deactivated', src.status_reason = $reason
	`, map[string]any{"ids": ids, "reason": e.Reason})
	return err
}

func (p *Projector) applySourceDiscovered(ctx context.Context, e events.SourceDiscovered) error {
	src := e.Source
	_, err := p.client.Query(ctx, `
		MERGE (s:Source {canonical_key: $canonical_key})
		ON CREATE SET s.id = $id,
		              s.canonical_value = $canonical_value,
		              s.url = $url,
		              s.discovery_method = $discovery_method,
		              s.weight = $weight,
		              s.source_role = $source_role,
		              s.gap_context = $gap_context,
		              s.status = 'registered'
	`, map[string]any{
		"canonical_key":    src.CanonicalKey,
		"id":               src.ID.String(),
		"canonical_value":  src.CanonicalValue,
		"url":              strPtrOrNil(src.URL),
		"discovery_method": string(src.DiscoveryMethod),
		"weight":           src.Weight,
		"source_role":      string(src.SourceRole),
		"gap_context":      strOrNil(src.GapContext),
	})
	return err
}

func (p *Projector) applySituationIdentified(ctx context.Context, e events.SituationIdentified) error {
	_, err := p.client.Query(ctx, `
		MERGE (sit:Situation {id: $id})
		SET sit.headline = $headline,
		    sit.lede = $lede,
		    sit.centroid_lat = $centroid_lat,
		    sit.centroid_lng = $centroid_lng,
		    sit.location_name = $location_name,
		    sit.sensitivity = $sensitivity,
		    sit.category = $category,
		    sit.status = coalesce(sit.status, 'active')
	`, map[string]any{
		"id":            e.SituationID.String(),
		"headline":      e.Headline,
		"lede":          e.Lede,
		"centroid_lat":  e.CentroidLat,
		"centroid_lng":  e.CentroidLng,
		"location_name": strOrNil(e.LocationName),
		"sensitivity":   string(e.Sensitivity),
		"category":      strOrNil(e.Category),
	})
	return err
}

func (p *Projector) applySituationChanged(ctx context.Context, e events.SituationChanged) error {
	_, err := p.client.Query(ctx, `
		MATCH (sit:Situation {id: $id})
		SET sit.last_change = $change
	`, map[string]any{"id": e.SituationID.String(), "change": e.Change})
	return err
}

func (p *Projector) applySituationPromoted(ctx context.Context, e events.SituationPromoted) error {
	ids := make([]string, len(e.SituationIDs))
	for i, id := range e.SituationIDs {
		ids[i] = id.String()
	}
	_, err := p.client.Query(ctx, `
		MATCH (sit:Situation)
		WHERE sit.id IN $ids
		SET sit.status = 'promoted'
	`, map[string]any{"ids": ids})
	return err
}

func (p *Projector) applyDispatchCreated(ctx context.Context, e events.DispatchCreated) error {
	signalIDs := make([]string, len(e.SignalIDs))
	for i, id := range e.SignalIDs {
		signalIDs[i] = id.String()
	}
	_, err := p.client.Query(ctx, `
		MERGE (d:Dispatch {id: $id})
		SET d.body = $body,
		    d.dispatch_type = $dispatch_type,
		    d.situation_id = $situation_id,
		    d.supersedes = $supersedes
		WITH d
		UNWIND $signal_ids AS sid
		MATCH (s:Signal {id: sid})
		MERGE (d)-[:RESPONDS_TO]->(s)
	`, map[string]any{
		"id":            e.DispatchID.String(),
		"body":          e.Body,
		"dispatch_type": e.DispatchType,
		"situation_id":  uuidPtrOrNil(e.SituationID),
		"supersedes":    uuidPtrOrNil(e.Supersedes),
		"signal_ids":    signalIDs,
	})
	return err
}
