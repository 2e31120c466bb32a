package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/fourthplaces/rootsignal/internal/collaborators"
	"github.com/fourthplaces/rootsignal/internal/events"
	"github.com/fourthplaces/rootsignal/internal/pipeline"
	"github.com/fourthplaces/rootsignal/internal/types"
	"github.com/fourthplaces/rootsignal/internal/urlkit"
)

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// ScrapeSource is the run's entry point for one scheduled source (spec.md
// §4.6): fetch, hash-compare, and — unlike the rest of the pipeline — it is
// not itself routed from an event, since nothing upstream of a scheduled
// source carries one. The Engine's caller dispatches whichever of
// ContentFetched/ContentUnchanged/ContentFetchFailed this returns as its
// root event; the router then picks up ContentFetched and runs extraction.
//
// lastHash is the previously observed content hash for this URL, if any
// (read from wherever the caller persists Source.last_content_hash); empty
// means "never fetched."
func ScrapeSource(ctx context.Context, ingestor collaborators.Ingestor, state *pipeline.State, url, canonicalKey, lastHash string) events.Event {
	pages, err := ingestor.FetchSpecific(ctx, []string{url})
	if err != nil {
		return events.ContentFetchFailed{URL: url, CanonicalKey: canonicalKey, Error: err.Error()}
	}
	if len(pages) == 0 {
		return events.ContentFetchFailed{URL: url, CanonicalKey: canonicalKey, Error: "ingestor returned no page"}
	}
	page := pages[0]
	hash := contentHash(page.Content)

	if hash == lastHash && lastHash != "" {
		return events.ContentUnchanged{URL: url, CanonicalKey: canonicalKey}
	}

	// Stashed directly, not through the reducer: the router's ContentFetched
	// handler needs the raw page to run extraction, and raw content has no
	// business living in a persisted event payload. Mirrors the embed
	// cache's documented exception to "state mutates only in the reducer."
	state.StashPage(url, page)

	return events.ContentFetched{
		URL:          url,
		CanonicalKey: canonicalKey,
		ContentHash:  hash,
		LinkCount:    uint32(len(page.Links)),
	}
}

// handleContentFetched runs extraction against the page stashed by
// ScrapeSource, stashes the resulting batch for the dedup handler, and
// returns SignalsExtracted plus per-link LinkCollected/social-discovery
// bookkeeping events (spec.md §4.6 steps 3-4).
func handleContentFetched(ctx context.Context, e events.ContentFetched, state *pipeline.State, deps pipeline.Deps) ([]events.Event, error) {
	page, ok := state.TakePage(e.URL)
	if !ok {
		return nil, nil
	}

	extracted, err := deps.Extractor.Extract(ctx, page.Content, e.URL, 1.0)
	if err != nil {
		return []events.Event{events.ExtractionFailed{URL: e.URL, CanonicalKey: e.CanonicalKey, Error: err.Error()}}, nil
	}

	// Dedup layer 1: fold signals whose normalized titles repeat within this
	// batch, keeping the first, before the batch is stashed.
	var folded []collaborators.ExtractedSignal
	seenTitles := map[string]struct{}{}
	for _, sig := range extracted.Signals {
		key := types.NormalizeTitle(sig.Title)
		if _, dup := seenTitles[key]; dup {
			continue
		}
		seenTitles[key] = struct{}{}
		folded = append(folded, sig)
	}

	state.StashBatch(e.URL, pipeline.ExtractedBatch{
		Content: page.Content,
		Nodes:   folded,
	})

	out := []events.Event{
		events.SignalsExtracted{URL: e.URL, CanonicalKey: e.CanonicalKey, Count: uint32(len(extracted.Signals))},
	}

	for _, link := range page.Links {
		out = append(out, events.LinkCollected{URL: link, DiscoveredOn: e.URL})
		if urlkit.SourceTypeFromURL(link) != "web" {
			out = append(out, events.SocialTopicCollected{Topic: urlkit.CanonicalValue(urlkit.SourceTypeFromURL(link), link)})
		}
	}
	for _, sig := range extracted.Signals {
		for _, q := range sig.ImpliedQueries {
			out = append(out, events.ExpansionQueryCollected{Query: q, SourceURL: e.URL})
		}
	}

	return out, nil
}
