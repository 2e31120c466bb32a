// Package pipeline is the process-run state machine of spec.md §4.4: a pure
// Reducer folding events into run-scoped state, and a Router (split across
// the handlers subpackage) turning each event into the events it causes.
package pipeline

import (
	"github.com/google/uuid"

	"github.com/fourthplaces/rootsignal/internal/collaborators"
	"github.com/fourthplaces/rootsignal/internal/embedcache"
	"github.com/fourthplaces/rootsignal/internal/events"
	"github.com/fourthplaces/rootsignal/internal/promoter"
)

// ExtractedBatch is one URL's worth of extraction output, stashed by the
// scrape handler and consumed by the dedup handler. ContentHash is derived
// from Content on demand by the dedup handler, not stored here — mirroring
// the original implementation, which computes it fresh in dedup.rs rather
// than carrying it from the fetch step.
type ExtractedBatch struct {
	Content  string
	Nodes    []collaborators.ExtractedSignal
	SourceID *uuid.UUID
}

// WiringContext carries what the creation handler learned about a new
// signal's edges, stashed until SignalStored fires handle_signal_stored.
type WiringContext struct {
	ResourceTags []collaborators.ResourceTagCandidate
	SignalTags   []string
	AuthorName   *string
	SourceID     *uuid.UUID
}

// ActorContext tracks how deep into an actor's own source network discovery
// has gone, keyed by the actor's canonical_key.
type ActorContext struct {
	DiscoveryDepth uint32
}

// PendingNode is the in-memory candidate signal between NewSignalAccepted
// and its SignalStored confirmation — the reducer's own copy, distinct from
// (but constructed from) events.PendingNode carried in the wire event.
type PendingNode struct {
	events.PendingNode
}

// Counters are the per-run totals spec.md §4.4 names; exposed via the stats
// endpoint at end of run.
type Counters struct {
	SignalsExtracted    uint64
	SignalsStored       uint64
	SignalsDeduplicated uint64
	SourcesDiscovered   uint64
}

// State is the process-run state S. Reducer.Apply does most of its
// mutation; handlers also write to it directly through StashPage,
// StashBatch, StashWiringContext and EmbedCache.Add (see each), and
// otherwise only read it.
type State struct {
	Counters Counters

	URLToCanonicalKey map[string]string
	ExtractedBatches  map[string]ExtractedBatch
	PendingNodes      map[uuid.UUID]PendingNode
	WiringContexts    map[uuid.UUID]WiringContext
	ActorContexts     map[string]ActorContext

	EmbedCache *embedcache.Cache

	// CollectedLinks accumulates every LinkCollected event raised this run,
	// for the caller to hand to promoter.PromoteLinks once the run's
	// dispatch loop is done — link promotion runs once per run, over the
	// whole batch, rather than per event, so it can dedup and cap across
	// every page scraped in the run (spec.md §4.11).
	CollectedLinks []promoter.CollectedLink

	pendingPages map[string]collaborators.RawPage
}

func NewState() *State {
	return &State{
		URLToCanonicalKey: map[string]string{},
		ExtractedBatches:  map[string]ExtractedBatch{},
		PendingNodes:      map[uuid.UUID]PendingNode{},
		WiringContexts:    map[uuid.UUID]WiringContext{},
		ActorContexts:     map[string]ActorContext{},
		EmbedCache:        embedcache.New(),
		pendingPages:      map[string]collaborators.RawPage{},
	}
}

// StashPage and TakePage bridge ScrapeSource's fetch to the router's
// ContentFetched handling of the very same URL (see scrape.go) — the same
// documented exception as StashBatch, for the same reason: raw page content
// has no business in a persisted event payload.
func (s *State) StashPage(url string, page collaborators.RawPage) {
	s.pendingPages[url] = page
}

func (s *State) TakePage(url string) (collaborators.RawPage, bool) {
	page, ok := s.pendingPages[url]
	if ok {
		delete(s.pendingPages, url)
	}
	return page, ok
}

// StashBatch records a URL's extraction output ahead of the SignalsExtracted
// event that triggers dedup. It is called by the scrape handler directly
// (not through the reducer) because the batch itself — raw extraction
// output — is too large and non-deterministic-shaped to round-trip through
// an event payload; only its existence and count are.
func (s *State) StashBatch(url string, batch ExtractedBatch) {
	s.ExtractedBatches[url] = batch
}

// StashWiringContext is called by the creation handler (handle_create) the
// same way: the wiring context is derived from the PendingNode the dedup
// handler already emitted on the wire, so it doesn't need its own event.
func (s *State) StashWiringContext(nodeID uuid.UUID, ctx WiringContext) {
	s.WiringContexts[nodeID] = ctx
}

// NoteActorDiscovery records (or deepens) an actor's discovery depth. No
// handler calls it, and nothing reads ActorContexts.
func (s *State) NoteActorDiscovery(canonicalKey string, depth uint32) {
	existing := s.ActorContexts[canonicalKey]
	if depth > existing.DiscoveryDepth {
		existing.DiscoveryDepth = depth
	}
	s.ActorContexts[canonicalKey] = existing
}
