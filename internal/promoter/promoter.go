// Package promoter turns outbound links discovered during scraping into new
// sources to scrape, per spec.md §4.11: filter non-content URLs, normalize
// and dedup what's left, cap the batch, and emit SourceDiscovered events for
// the projector to MERGE.
package promoter

import (
	"strings"

	"github.com/google/uuid"

	"github.com/fourthplaces/rootsignal/internal/events"
	"github.com/fourthplaces/rootsignal/internal/types"
	"github.com/fourthplaces/rootsignal/internal/urlkit"
)

// CollectedLink is one outbound link seen on a scraped page, carrying the
// page it was found on for gap_context.
type CollectedLink struct {
	URL          string
	DiscoveredOn string
}

type Config struct {
	MaxPerSource int
	MaxPerRun    int
}

func DefaultConfig() Config {
	return Config{MaxPerSource: 20, MaxPerRun: 100}
}

var skipPrefixes = []string{"mailto:", "tel:", "javascript:", "#", "data:"}

var skipExtensions = []string{
	".css", ".js", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".woff", ".woff2", ".ico", ".webp",
	".mp3", ".mp4",
}

// ExtractLinks filters a page's raw outbound links down to content-worthy
// http(s) URLs, strips tracking params, and dedups by canonical value.
func ExtractLinks(pageLinks []string) []string {
	seen := map[string]struct{}{}
	var results []string

	for _, link := range pageLinks {
		trimmed := strings.TrimSpace(link)

		if hasAnyPrefix(trimmed, skipPrefixes) {
			continue
		}
		if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
			continue
		}

		pathLower := strings.ToLower(firstBefore(trimmed, '?'))
		if hasAnySuffix(pathLower, skipExtensions) {
			continue
		}

		cleaned := urlkit.SanitizeURL(trimmed)
		cv := urlkit.CanonicalValue(types.SourceWeb, cleaned)
		if _, dup := seen[cv]; dup {
			continue
		}
		seen[cv] = struct{}{}
		results = append(results, cleaned)
	}

	return results
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

func firstBefore(s string, sep byte) string {
	if i := strings.IndexByte(s, sep); i >= 0 {
		return s[:i]
	}
	return s
}

// PromoteLinks strips tracking params from a run's collected links,
// deduplicates them by canonical value (keeping the first occurrence),
// caps the result at cfg.MaxPerRun, and
// builds a SourceNode per survivor — each inheriting the discovering page's
// URL as gap_context, not the region center.
func PromoteLinks(links []CollectedLink, cfg Config) []events.SourceNode {
	if len(links) == 0 {
		return nil
	}

	seen := map[string]struct{}{}
	var unique []CollectedLink
	for _, link := range links {
		link.URL = urlkit.SanitizeURL(link.URL)
		cv := urlkit.CanonicalValue(types.SourceWeb, link.URL)
		if _, dup := seen[cv]; dup {
			continue
		}
		seen[cv] = struct{}{}
		unique = append(unique, link)
		if len(unique) >= cfg.MaxPerRun {
			break
		}
	}

	sources := make([]events.SourceNode, 0, len(unique))
	for _, link := range unique {
		cv := urlkit.CanonicalValue(types.SourceWeb, link.URL)
		gapContext := "Linked from " + link.DiscoveredOn
		url := link.URL
		sources = append(sources, events.SourceNode{
			ID:              uuid.New(),
			CanonicalKey:    cv,
			CanonicalValue:  cv,
			URL:             &url,
			SourceType:      types.SourceWeb,
			DiscoveryMethod: types.DiscoveryLinkedFrom,
			Weight:          0.25,
			SourceRole:      types.RoleMixed,
			GapContext:      &gapContext,
		})
	}

	return sources
}

// DormancyCandidates returns the source IDs whose consecutive empty-run
// streak has reached the self-deactivation floor (3, per spec.md §4.11).
// Nothing outside its test calls it: no scheduling pass emits a
// SourceDeactivated from its result, and empty-run streaks are not tracked.
func DormancyCandidates(sourceIDs map[string]uuid.UUID, consecutiveEmptyRuns map[string]int) []uuid.UUID {
	const dormancyFloor = 3
	var ids []uuid.UUID
	for key, streak := range consecutiveEmptyRuns {
		if streak < dormancyFloor {
			continue
		}
		if id, ok := sourceIDs[key]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}
