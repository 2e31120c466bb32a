package pipeline

import (
	"github.com/fourthplaces/rootsignal/internal/events"
	"github.com/fourthplaces/rootsignal/internal/promoter"
)

// Reducer folds events into State per the table in spec.md §4.4. It is
// pure: no I/O, no calls to collaborators, nothing but map/counter
// mutation — engine.Engine calls it for every root and derived event before
// routing.
type Reducer struct{}

func (Reducer) Apply(state *State, ev events.Event) {
	switch e := ev.(type) {
	case events.ContentFetched:
		state.URLToCanonicalKey[e.URL] = e.CanonicalKey

	case events.SignalsExtracted:
		state.Counters.SignalsExtracted += uint64(e.Count)

	case events.NewSignalAccepted:
		state.PendingNodes[e.NodeID] = PendingNode{PendingNode: e.PendingNode}
		state.Counters.SignalsStored++ // speculative; not reverted, matching spec.md §4.4's own note

	case events.CrossSourceMatchDetected:
		state.Counters.SignalsDeduplicated++

	case events.SameSourceReencountered:
		state.Counters.SignalsDeduplicated++

	case events.DedupCompleted:
		delete(state.ExtractedBatches, e.URL)

	case events.SignalStored:
		delete(state.PendingNodes, e.NodeID)
		// wiring_contexts intentionally survive past this point: handle_signal_stored
		// (routed from this very event) still needs to read it this same dispatch.

	case events.SourceDiscovered:
		state.Counters.SourcesDiscovered++

	case events.LinkCollected:
		state.CollectedLinks = append(state.CollectedLinks, promoter.CollectedLink{
			URL:          e.URL,
			DiscoveredOn: e.DiscoveredOn,
		})
	}
}
