package urlkit

import (
	"strings"
	"testing"

	"github.com/fourthplaces/rootsignal/internal/types"
)

func TestSourceTypeFromURL(t *testing.T) {
	cases := []struct {
		url  string
		want types.SourceType
	}{
		{"https://www.instagram.com/mpls_mutual_aid", types.SourceInstagram},
		{"https://facebook.com/somepage", types.SourceFacebook},
		{"https://reddit.com/r/Minneapolis", types.SourceReddit},
		{"https://www.tiktok.com/@someuser", types.SourceTikTok},
		{"https://twitter.com/user", types.SourceTwitter},
		{"https://x.com/user", types.SourceTwitter},
		{"https://bsky.app/profile/someone", types.SourceBluesky},
		{"https://www.startribune.com/article", types.SourceWeb},
	}
	for _, tc := range cases {
		if got := SourceTypeFromURL(tc.url); got != tc.want {
			t.Errorf("SourceTypeFromURL(%q) = %v, want %v", tc.url, got, tc.want)
		}
	}
}

func TestCanonicalValueInstagram(t *testing.T) {
	got := CanonicalValue(types.SourceInstagram, "https://www.instagram.com/MplsMutualAid/")
	if got != "mplsmutualaid" {
		t.Errorf("got %q, want %q", got, "mplsmutualaid")
	}
}

func TestCanonicalValueInstagramWithTrailingPath(t *testing.T) {
	got := CanonicalValue(types.SourceInstagram, "https://instagram.com/user123/reels")
	if got != "user123" {
		t.Errorf("got %q, want %q", got, "user123")
	}
}

func TestCanonicalValueReddit(t *testing.T) {
	got := CanonicalValue(types.SourceReddit, "https://reddit.com/r/Minneapolis/")
	if got != "minneapolis" {
		t.Errorf("got %q, want %q", got, "minneapolis")
	}
}

func TestCanonicalValueRedditWithComments(t *testing.T) {
	got := CanonicalValue(types.SourceReddit, "https://www.reddit.com/r/TwinCities/comments/abc123")
	if got != "twincities" {
		t.Errorf("got %q, want %q", got, "twincities")
	}
}

func TestCanonicalValueWebPreservesTrackingParams(t *testing.T) {
	url := "https://example.com/page?utm_source=ig&si=abc&important=yes"
	cv := CanonicalValue(types.SourceWeb, url)
	if !strings.Contains(cv, "utm_source") {
		t.Error("canonical value should preserve utm_source")
	}
	if !strings.Contains(cv, "si=") {
		t.Error("canonical value should preserve si param")
	}
}

func TestSanitizeURLStripsTrackingParams(t *testing.T) {
	url := "https://example.com/page?utm_source=ig&utm_medium=social&fbclid=abc123&important=yes"
	sanitized := SanitizeURL(url)
	if strings.Contains(sanitized, "utm_source") {
		t.Error("sanitized URL should not contain utm_source")
	}
	if strings.Contains(sanitized, "fbclid") {
		t.Error("sanitized URL should not contain fbclid")
	}
	if !strings.Contains(sanitized, "important=yes") {
		t.Error("sanitized URL should keep non-tracking params")
	}
}

func TestSanitizeURLCollapsesDifferentTrackingVariants(t *testing.T) {
	a := SanitizeURL("https://example.com/page?utm_source=ig&important=yes")
	b := SanitizeURL("https://example.com/page?utm_source=twitter&important=yes")
	if a != b {
		t.Errorf("sanitize should strip tracking so both collapse to the same URL: %q vs %q", a, b)
	}
}
