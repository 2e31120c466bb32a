// Package enrichment implements the three ordered post-projection passes
// from spec.md §4.10: diversity, actor stats, and cause heat. All three are
// pure functions of graph state — on replay they recompute fresh rather than
// incrementally, so there is nothing to reconcile.
package enrichment

import (
	"net/url"
	"strings"
)

// EntityMapping groups a set of domains and social handles under one
// canonical entity, so diversity enrichment treats e.g. news.big.com and
// opinion.big.com as the same outlet rather than two distinct sources.
type EntityMapping struct {
	CanonicalKey string
	Domains      []string
	Instagram    []string
	Facebook     []string
	Reddit       []string
}

// ResolveEntity maps a raw URL to its entity key: the canonical key of the
// first mapping whose domain list contains the URL's host, falling back to
// the bare host itself when no mapping matches.
func ResolveEntity(rawURL string, mappings []EntityMapping) string {
	host := hostOf(rawURL)
	if host == "" {
		return rawURL
	}
	for _, m := range mappings {
		for _, d := range m.Domains {
			if strings.EqualFold(d, host) {
				return m.CanonicalKey
			}
		}
	}
	return host
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}
