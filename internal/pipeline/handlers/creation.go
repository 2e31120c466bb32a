package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fourthplaces/rootsignal/internal/collaborators"
	"github.com/fourthplaces/rootsignal/internal/events"
	"github.com/fourthplaces/rootsignal/internal/pipeline"
	"github.com/fourthplaces/rootsignal/internal/types"
	"github.com/fourthplaces/rootsignal/internal/urlkit"
)

// handleNewSignalAccepted is handle_create: a candidate passed every dedup
// layer. Reads the PendingNode the dedup handler stashed, emits the world
// discovery fact, its system classifications, the discovering citation, and
// SignalStored to trigger edge wiring (spec.md §4.8).
func handleNewSignalAccepted(ctx context.Context, e events.NewSignalAccepted, state *pipeline.State, deps pipeline.Deps) ([]events.Event, error) {
	pn, ok := state.PendingNodes[e.NodeID]
	if !ok {
		return nil, nil
	}

	var out []events.Event

	out = append(out, nodeToWorldEvent(pn.PendingNode, e.SourceURL))

	classification, err := deps.Classifier.Classify(ctx, pn.NodeType, pn.Body.Title, pn.Body.Summary, pn.Sensitivity)
	if err != nil {
		return out, err
	}
	out = append(out, events.SensitivityClassified{SignalID: e.NodeID, Level: classification.Sensitivity})
	if classification.Severity != nil {
		out = append(out, events.SeverityClassified{SignalID: e.NodeID, Severity: *classification.Severity})
	}
	if classification.Urgency != nil {
		out = append(out, events.UrgencyClassified{SignalID: e.NodeID, Urgency: *classification.Urgency})
	}
	if classification.Tone != nil {
		out = append(out, events.ToneClassified{SignalID: e.NodeID, Tone: *classification.Tone})
	}
	if len(pn.ImpliedQueries) > 0 {
		out = append(out, events.ImpliedQueriesExtracted{SignalID: e.NodeID, Queries: pn.ImpliedQueries})
	}

	channel := types.ChannelTypeFromURL(e.SourceURL)
	out = append(out, events.CitationPublished{
		CitationID:  uuid.New(),
		SignalID:    e.NodeID,
		URL:         e.SourceURL,
		ContentHash: pn.ContentHash,
		Snippet:     strPtr(pn.Body.Summary),
		ChannelType: &channel,
	})

	canonicalKey := state.URLToCanonicalKey[e.SourceURL]
	if canonicalKey == "" {
		canonicalKey = e.SourceURL
	}
	state.StashWiringContext(e.NodeID, pipeline.WiringContext{
		ResourceTags: fromEventResourceTags(pn.ResourceTags),
		SignalTags:   pn.SignalTags,
		AuthorName:   pn.AuthorName,
		SourceID:     pn.SourceID,
	})

	out = append(out, events.SignalStored{
		NodeID:       e.NodeID,
		NodeType:     pn.NodeType,
		SourceURL:    e.SourceURL,
		CanonicalKey: canonicalKey,
	})

	return out, nil
}

// handleCrossSourceMatchDetected is handle_corroborate.
func handleCrossSourceMatchDetected(ctx context.Context, e events.CrossSourceMatchDetected, state *pipeline.State, deps pipeline.Deps) ([]events.Event, error) {
	count, _ := deps.SignalReader.ReadCorroborationCount(ctx, e.ExistingID, e.NodeType)

	channel := types.ChannelTypeFromURL(e.SourceURL)
	return []events.Event{
		events.CitationPublished{
			CitationID:  uuid.New(),
			SignalID:    e.ExistingID,
			URL:         e.SourceURL,
			ChannelType: &channel,
		},
		events.ObservationCorroborated{
			SignalID:     e.ExistingID,
			NodeType:     e.NodeType,
			NewSourceURL: e.SourceURL,
		},
		events.CorroborationScored{
			SignalID:              e.ExistingID,
			Similarity:            e.Similarity,
			NewCorroborationCount: count + 1,
		},
	}, nil
}

// handleSameSourceReencountered is handle_refresh.
func handleSameSourceReencountered(ctx context.Context, e events.SameSourceReencountered, state *pipeline.State, deps pipeline.Deps) ([]events.Event, error) {
	channel := types.ChannelTypeFromURL(e.SourceURL)
	return []events.Event{
		events.CitationPublished{
			CitationID:  uuid.New(),
			SignalID:    e.ExistingID,
			URL:         e.SourceURL,
			ChannelType: &channel,
		},
		events.FreshnessConfirmed{
			SignalIDs:   []uuid.UUID{e.ExistingID},
			NodeType:    e.NodeType,
			ConfirmedAt: now(),
		},
	}, nil
}

// handleSignalStored is handle_signal_stored: wires edges after creation
// (source, resources, tags, author actor), reading the WiringContext
// handle_create stashed.
func handleSignalStored(ctx context.Context, e events.SignalStored, state *pipeline.State, deps pipeline.Deps) ([]events.Event, error) {
	wc, ok := state.WiringContexts[e.NodeID]
	if !ok {
		return nil, nil
	}

	var out []events.Event

	if wc.SourceID != nil {
		out = append(out, events.SignalLinkedToSource{SignalID: e.NodeID, SourceID: *wc.SourceID})
	}

	for _, tag := range wc.ResourceTags {
		if tag.Confidence < 0.3 {
			continue
		}
		resourceID := uuid.New()
		out = append(out, events.ResourceIdentified{
			ResourceID:  resourceID,
			Name:        tag.Name,
			Slug:        tag.Slug,
			Description: "",
		})
		out = append(out, events.ResourceLinked{
			SignalID:     e.NodeID,
			ResourceSlug: tag.Slug,
			Role:         tag.Role,
			Confidence:   tag.Confidence,
			Quantity:     tag.Quantity,
			Capacity:     tag.Capacity,
			Notes:        tag.Notes,
		})
	}

	if len(wc.SignalTags) > 0 {
		out = append(out, events.SignalTagged{SignalID: e.NodeID, TagSlugs: wc.SignalTags})
	}

	if isOwnedSource(e.SourceURL) && wc.AuthorName != nil {
		actorEvents, err := handleAuthorActor(ctx, e.NodeID, *wc.AuthorName, e.SourceURL, wc.SourceID, state, deps)
		if err != nil {
			return out, err
		}
		out = append(out, actorEvents...)
	}

	return out, nil
}

// isOwnedSource reports whether source_url belongs to a platform the
// extractor can attribute an author to directly (spec.md §4.8
// "owned sources (Instagram/Facebook/etc.)").
func isOwnedSource(sourceURL string) bool {
	return urlkit.SourceTypeFromURL(sourceURL) != types.SourceWeb
}

func handleAuthorActor(ctx context.Context, signalID uuid.UUID, authorName, sourceURL string, sourceID *uuid.UUID, state *pipeline.State, deps pipeline.Deps) ([]events.Event, error) {
	canonicalKey := urlkit.CanonicalValue(urlkit.SourceTypeFromURL(sourceURL), sourceURL)

	actorID, found, err := deps.SignalReader.FindActorByCanonicalKey(ctx, canonicalKey)
	if err != nil {
		return nil, nil
	}

	if !found {
		newID := uuid.New()
		out := []events.Event{
			events.ActorIdentified{
				ActorID:      newID,
				Name:         authorName,
				ActorType:    types.ActorOrganization,
				CanonicalKey: canonicalKey,
			},
		}
		if sourceID != nil {
			out = append(out, events.ActorLinkedToSource{ActorID: newID, SourceID: *sourceID})
		}
		out = append(out, events.ActorLinkedToSignal{ActorID: newID, SignalID: signalID, Role: "authored"})
		return out, nil
	}

	return []events.Event{events.ActorLinkedToSignal{ActorID: actorID, SignalID: signalID, Role: "authored"}}, nil
}

// fromEventResourceTags converts the wire-level tags carried on PendingNode
// back into the collaborators-level shape pipeline.WiringContext stores,
// so that package doesn't need to import events for what is, at that
// point, plain state.
func fromEventResourceTags(tags []events.ResourceTag) []collaborators.ResourceTagCandidate {
	out := make([]collaborators.ResourceTagCandidate, len(tags))
	for i, t := range tags {
		out[i] = collaborators.ResourceTagCandidate{
			Name:       t.Name,
			Slug:       t.Slug,
			Role:       t.Role,
			Confidence: t.Confidence,
			Quantity:   t.Quantity,
			Capacity:   t.Capacity,
			Notes:      t.Notes,
		}
	}
	return out
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// now is a seam so tests can't depend on wall-clock time leaking into
// event-equality assertions; production always uses time.Now.
var now = time.Now
