package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/fourthplaces/rootsignal/internal/collaborators"
	"github.com/fourthplaces/rootsignal/internal/events"
	"github.com/fourthplaces/rootsignal/internal/pipeline"
	"github.com/fourthplaces/rootsignal/internal/types"
)

// normalizeTitle delegates to types.NormalizeTitle, kept as a package-local
// name since every call site here predates the move.
func normalizeTitle(title string) string {
	return types.NormalizeTitle(title)
}

// verdict is the dedup_verdict rule's output: same-URL match refreshes the
// existing signal, cross-URL match corroborates it, no match creates one.
type verdict int

const (
	verdictCreate verdict = iota
	verdictRefresh
	verdictCorroborate
)

type verdictResult struct {
	kind       verdict
	existingID uuid.UUID
	similarity float64
}

// hit is one candidate match, whatever layer produced it.
type hit struct {
	existingID uuid.UUID
	sourceURL  string
	similarity float64
}

// dedupVerdict picks Refresh/Corroborate/Create from whichever hit wins:
// the global title+type match always takes priority when present (it's
// exact, similarity 1.0); otherwise the higher-similarity of cache/graph
// wins. Same discovering URL as the match's source → Refresh; any other
// source → Corroborate.
func dedupVerdict(sourceURL string, global, cache, graph *hit) verdictResult {
	best := global
	if best == nil {
		best = betterOf(cache, graph)
	}
	if best == nil {
		return verdictResult{kind: verdictCreate}
	}
	if best.sourceURL == sourceURL {
		return verdictResult{kind: verdictRefresh, existingID: best.existingID, similarity: best.similarity}
	}
	return verdictResult{kind: verdictCorroborate, existingID: best.existingID, similarity: best.similarity}
}

func betterOf(a, b *hit) *hit {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if b.similarity > a.similarity {
		return b
	}
	return a
}

// handleSignalsExtracted runs dedup layers 2-4 against the batch
// handleContentFetched stashed for url, emitting a verdict event per
// surviving candidate, then DedupCompleted to release the batch (spec.md
// §4.7). Layer 1 (within-batch title folding) happens upstream, in the
// extractor caller, before the batch is ever stashed.
func handleSignalsExtracted(ctx context.Context, e events.SignalsExtracted, state *pipeline.State, deps pipeline.Deps) ([]events.Event, error) {
	batch, ok := state.ExtractedBatches[e.URL]
	if !ok {
		return nil, nil
	}
	if len(batch.Nodes) == 0 {
		return []events.Event{events.DedupCompleted{URL: e.URL}}, nil
	}

	hash := contentHash(batch.Content)
	var out []events.Event

	// Layer 2: URL-based title dedup.
	existingTitles := map[string]struct{}{}
	if titles, err := deps.SignalReader.ExistingTitlesForURL(ctx, e.URL); err == nil {
		for _, t := range titles {
			existingTitles[normalizeTitle(t)] = struct{}{}
		}
	}
	var afterURLDedup []collaborators.ExtractedSignal
	for _, n := range batch.Nodes {
		if _, dup := existingTitles[normalizeTitle(n.Title)]; dup {
			continue
		}
		afterURLDedup = append(afterURLDedup, n)
	}
	if len(afterURLDedup) == 0 {
		return append(out, events.DedupCompleted{URL: e.URL}), nil
	}

	// Layer 2.5: global title+type match.
	pairs := make([]collaborators.TitleTypePair, len(afterURLDedup))
	for i, n := range afterURLDedup {
		pairs[i] = collaborators.TitleTypePair{NormalizedTitle: normalizeTitle(n.Title), NodeType: n.NodeType}
	}
	globalMatches, _ := deps.SignalReader.FindByTitlesAndTypes(ctx, pairs)

	var afterGlobalMatch []collaborators.ExtractedSignal
	for _, n := range afterURLDedup {
		key := collaborators.TitleTypePair{NormalizedTitle: normalizeTitle(n.Title), NodeType: n.NodeType}
		existingID, found := globalMatches[key]
		var global *hit
		if found {
			// The global index only proves a title+type match exists; it
			// doesn't need to carry which source produced it, because
			// dedup_verdict only needs to know whether THIS batch's url is
			// that source — and a second occurrence of the same title under
			// the same url would already have been filtered by layer 2.
			// Any global match here is therefore necessarily a different
			// source.
			global = &hit{existingID: existingID, sourceURL: "", similarity: 1.0}
		}
		if global == nil {
			afterGlobalMatch = append(afterGlobalMatch, n)
			continue
		}
		v := dedupVerdict(e.URL, global, nil, nil)
		out = append(out, verdictEvent(v, n.NodeType, e.URL))
	}
	if len(afterGlobalMatch) == 0 {
		return append(out, events.DedupCompleted{URL: e.URL}), nil
	}

	// Batch-embed the survivors: title + content_snippet[:500].
	snippet := batch.Content
	if len(snippet) > 500 {
		snippet = snippet[:500]
	}
	texts := make([]string, len(afterGlobalMatch))
	for i, n := range afterGlobalMatch {
		texts[i] = n.Title + " " + snippet
	}
	embeddings, err := deps.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return out, nil
	}

	bbox := deps.Region.BoundingBox()

	// Layer 3: vector dedup (cache + graph), layer 4: no match → create.
	for i, n := range afterGlobalMatch {
		if n.NodeType == types.NodeCitation {
			continue
		}
		embedding := embeddings[i]

		var cache *hit
		if m, ok := state.EmbedCache.FindMatch(embedding, deps.DedupThreshold); ok {
			cache = &hit{existingID: m.Entry.NodeID, sourceURL: m.Entry.URL, similarity: m.Similarity}
		}

		var graph *hit
		if dup, found, err := deps.SignalReader.FindDuplicate(ctx, embedding, n.NodeType, deps.DedupThreshold, bbox); err == nil && found {
			graph = &hit{existingID: dup.ExistingID, sourceURL: dup.SourceURL, similarity: dup.Similarity}
		}

		v := dedupVerdict(e.URL, nil, cache, graph)

		switch v.kind {
		case verdictRefresh, verdictCorroborate:
			if cache == nil && graph != nil {
				state.EmbedCache.Add(embedding, v.existingID, n.NodeType, graph.sourceURL)
			}
			out = append(out, verdictEvent(v, n.NodeType, e.URL))
		case verdictCreate:
			nodeID := uuid.New()
			state.EmbedCache.Add(embedding, nodeID, n.NodeType, e.URL)

			pn := buildPendingNode(nodeID, n, embedding, hash, batch.SourceID)
			out = append(out, events.NewSignalAccepted{
				NodeID:      nodeID,
				NodeType:    n.NodeType,
				Title:       n.Title,
				SourceURL:   e.URL,
				PendingNode: pn,
			})
		}
	}

	return append(out, events.DedupCompleted{URL: e.URL}), nil
}

func verdictEvent(v verdictResult, nodeType types.NodeType, sourceURL string) events.Event {
	if v.kind == verdictRefresh {
		return events.SameSourceReencountered{ExistingID: v.existingID, NodeType: nodeType, SourceURL: sourceURL, Similarity: v.similarity}
	}
	return events.CrossSourceMatchDetected{ExistingID: v.existingID, NodeType: nodeType, SourceURL: sourceURL, Similarity: v.similarity}
}
