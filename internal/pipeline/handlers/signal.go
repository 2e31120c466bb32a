package handlers

import (
	"time"

	"github.com/google/uuid"

	"github.com/fourthplaces/rootsignal/internal/collaborators"
	"github.com/fourthplaces/rootsignal/internal/events"
	"github.com/fourthplaces/rootsignal/internal/types"
)

// buildPendingNode converts an extraction candidate plus the dedup layer's
// own findings (embedding, content hash) into the PendingNode the reducer
// stashes on NewSignalAccepted and the creation handler later reads back.
func buildPendingNode(nodeID uuid.UUID, sig collaborators.ExtractedSignal, embedding []float32, hash string, sourceID *uuid.UUID) events.PendingNode {
	body := events.SignalBody{
		ID:                nodeID,
		Title:             sig.Title,
		Summary:           sig.Summary,
		SourceURL:         "", // filled in by the caller from the discovering URL at creation time
		PublishedAt:       sig.PublishedAt,
		Locations:         sig.Locations,
		MentionedEntities: sig.MentionedEntities,
		References:        sig.References,
		Schedule:          sig.Schedule,
		Embedding:         embedding,
	}

	tail := map[string]any{}
	if sig.ActionURL != nil {
		tail["action_url"] = *sig.ActionURL
	}
	if sig.Availability != nil {
		tail["availability"] = *sig.Availability
	}
	if sig.WhatNeeded != nil {
		tail["what_needed"] = *sig.WhatNeeded
	}
	if sig.Goal != nil {
		tail["goal"] = *sig.Goal
	}
	if sig.Category != nil {
		tail["category"] = *sig.Category
	}
	if sig.EffectiveDate != nil {
		tail["effective_date"] = sig.EffectiveDate.Format(time.RFC3339)
	}
	if sig.WhatWouldHelp != nil {
		tail["what_would_help"] = *sig.WhatWouldHelp
	}

	resourceTags := make([]events.ResourceTag, len(sig.ResourceTags))
	for i, rt := range sig.ResourceTags {
		resourceTags[i] = events.ResourceTag{
			Name:       rt.Name,
			Slug:       rt.Slug,
			Role:       rt.Role,
			Confidence: rt.Confidence,
			Quantity:   rt.Quantity,
			Capacity:   rt.Capacity,
			Notes:      rt.Notes,
		}
	}

	return events.PendingNode{
		NodeID:       nodeID,
		NodeType:     sig.NodeType,
		Body:         body,
		Tail:         tail,
		Embedding:    embedding,
		ContentHash:  hash,
		ResourceTags: resourceTags,
		SignalTags:   sig.Tags,
		AuthorName:   sig.AuthorName,
		SourceID:       sourceID,
		ImpliedQueries: sig.ImpliedQueries,
		Sensitivity:    sig.Sensitivity,
	}
}

// nodeToWorldEvent picks the world discovery event for pn's node type,
// reattaching the discovering URL (not known at PendingNode construction
// time, since the same pending node can in principle be re-read by more
// than one handler call across the dedup→creation boundary).
func nodeToWorldEvent(pn events.PendingNode, sourceURL string) events.Event {
	body := pn.Body
	body.SourceURL = sourceURL

	switch pn.NodeType {
	case types.NodeGathering:
		return events.GatheringAnnounced{SignalBody: body, ActionURL: strField(pn.Tail, "action_url")}
	case types.NodeAid:
		return events.ResourceOffered{
			SignalBody:   body,
			ActionURL:    strField(pn.Tail, "action_url"),
			Availability: strField(pn.Tail, "availability"),
		}
	case types.NodeNeed:
		return events.HelpRequested{
			SignalBody: body,
			WhatNeeded: strField(pn.Tail, "what_needed"),
			Goal:       strField(pn.Tail, "goal"),
		}
	case types.NodeNotice:
		return events.AnnouncementShared{
			SignalBody:    body,
			Category:      strField(pn.Tail, "category"),
			EffectiveDate: timeField(pn.Tail, "effective_date"),
		}
	case types.NodeTension:
		return events.ConcernRaised{SignalBody: body, WhatWouldHelp: strField(pn.Tail, "what_would_help")}
	case types.NodeCondition:
		return events.ConditionObserved{SignalBody: body}
	case types.NodeIncident:
		return events.IncidentReported{SignalBody: body}
	default:
		return events.ConditionObserved{SignalBody: body}
	}
}

func strField(tail map[string]any, key string) *string {
	v, ok := tail[key].(string)
	if !ok {
		return nil
	}
	return &v
}

func timeField(tail map[string]any, key string) *time.Time {
	s, ok := tail[key].(string)
	if !ok {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
