// Package urlkit holds the two distinct URL-normalization functions the
// link/source promoter needs (spec.md §4.11): CanonicalValue, an identity
// key that must stay stable for dedup, and SanitizeURL, a display cleaner
// that strips tracking noise. They intentionally diverge — see each
// function's doc comment.
package urlkit

import (
	"net/url"
	"strings"

	"github.com/fourthplaces/rootsignal/internal/types"
)

// trackingParams are stripped by SanitizeURL but preserved by CanonicalValue.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"fbclid":       true,
	"gclid":        true,
	"si":           true,
	"source":       true,
	"igshid":       true,
	"ref":          true,
}

// SourceTypeFromURL infers which platform a link points at from its host.
func SourceTypeFromURL(rawURL string) types.SourceType {
	host := strings.ToLower(rawURL)
	switch {
	case strings.Contains(host, "instagram.com"):
		return types.SourceInstagram
	case strings.Contains(host, "facebook.com"):
		return types.SourceFacebook
	case strings.Contains(host, "reddit.com"):
		return types.SourceReddit
	case strings.Contains(host, "tiktok.com"):
		return types.SourceTikTok
	case strings.Contains(host, "twitter.com"), strings.Contains(host, "x.com"):
		return types.SourceTwitter
	case strings.Contains(host, "bsky.app"):
		return types.SourceBluesky
	default:
		return types.SourceWeb
	}
}

// CanonicalValue is the identity key used for source/signal dedup. For
// social platforms it extracts the handle (lowercased); for everything else
// it is the URL unchanged, tracking params and all — two links to the same
// page with different campaign tags are still the same identity, but this
// function does not attempt that distinction itself. It is intentionally
// simpler and more literal than SanitizeURL: callers that need display-grade
// cleanup use that function instead.
func CanonicalValue(sourceType types.SourceType, rawURL string) string {
	switch sourceType {
	case types.SourceInstagram:
		return firstPathSegmentAfter(rawURL, "instagram.com/")
	case types.SourceFacebook:
		return firstPathSegmentAfter(rawURL, "facebook.com/")
	case types.SourceReddit:
		if rest, ok := splitAfter(rawURL, "/r/"); ok {
			return firstSegment(rest)
		}
		return strings.ToLower(rawURL)
	case types.SourceTikTok:
		return firstPathSegmentAfter(rawURL, "tiktok.com/")
	case types.SourceTwitter:
		host := "twitter.com/"
		if strings.Contains(rawURL, "x.com/") {
			host = "x.com/"
		}
		return firstPathSegmentAfter(rawURL, host)
	case types.SourceBluesky:
		if rest, ok := splitAfter(rawURL, "/profile/"); ok {
			return firstSegment(rest)
		}
		return strings.ToLower(rawURL)
	default:
		return rawURL
	}
}

func firstPathSegmentAfter(rawURL, marker string) string {
	rest, ok := splitAfter(rawURL, marker)
	if !ok {
		return strings.ToLower(rawURL)
	}
	return firstSegment(rest)
}

func splitAfter(s, marker string) (string, bool) {
	idx := strings.Index(s, marker)
	if idx < 0 {
		return "", false
	}
	return s[idx+len(marker):], true
}

func firstSegment(s string) string {
	s = strings.Trim(s, "/")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(s)
}

// SanitizeURL is the single URL cleaner used for display and for content
// fetch deduplication: it strips tracking parameters (utm_*, fbclid, gclid,
// si, source, …) while preserving every other query parameter, fragment,
// and path. It deliberately does NOT collapse the URL to a platform handle
// the way CanonicalValue does — two different query strings on the same
// page are still different content as far as SanitizeURL is concerned.
func SanitizeURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}
	q := u.Query()
	for key := range q {
		if trackingParams[strings.ToLower(key)] {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
