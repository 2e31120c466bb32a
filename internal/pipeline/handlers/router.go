package handlers

import (
	"context"

	"github.com/fourthplaces/rootsignal/internal/events"
	"github.com/fourthplaces/rootsignal/internal/eventstore"
	"github.com/fourthplaces/rootsignal/internal/pipeline"
)

// Router implements engine.Router[pipeline.State, pipeline.Deps]: the
// pipeline-layer dispatch table of spec.md §4.6-§4.8. World and system
// events are terminal here — nothing routes off them in this layer.
type Router struct{}

func (Router) Route(ctx context.Context, ev events.Event, handle eventstore.Handle, state *pipeline.State, deps pipeline.Deps) ([]events.Event, error) {
	switch e := ev.(type) {
	case events.ContentFetched:
		return handleContentFetched(ctx, e, state, deps)
	case events.SignalsExtracted:
		return handleSignalsExtracted(ctx, e, state, deps)
	case events.NewSignalAccepted:
		return handleNewSignalAccepted(ctx, e, state, deps)
	case events.CrossSourceMatchDetected:
		return handleCrossSourceMatchDetected(ctx, e, state, deps)
	case events.SameSourceReencountered:
		return handleSameSourceReencountered(ctx, e, state, deps)
	case events.SignalStored:
		return handleSignalStored(ctx, e, state, deps)
	default:
		return nil, nil
	}
}
