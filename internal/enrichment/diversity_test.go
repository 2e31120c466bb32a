package enrichment

import "testing"

func ev(url, channel string) Evidence { return Evidence{URL: url, Channel: channel} }

func TestNoEvidenceReturnsZeroDiversity(t *testing.T) {
	m := ComputeDiversityMetrics("https://example.com/article", nil, nil)
	if m.SourceDiversity != 0 || m.ChannelDiversity != 0 || m.ExternalRatio != 0.0 {
		t.Errorf("got %+v, want all zero", m)
	}
}

func TestSingleSameDomainEvidenceIsNotExternal(t *testing.T) {
	evidence := []Evidence{ev("https://example.com/other", "press")}
	m := ComputeDiversityMetrics("https://example.com/article", evidence, nil)
	if m.SourceDiversity != 1 {
		t.Errorf("SourceDiversity = %d, want 1 (same domain = same entity)", m.SourceDiversity)
	}
	if m.ExternalRatio != 0.0 {
		t.Errorf("ExternalRatio = %v, want 0", m.ExternalRatio)
	}
}

func TestDifferentDomainsCountAsSeparateEntities(t *testing.T) {
	evidence := []Evidence{
		ev("https://example.com/a", "press"),
		ev("https://other.org/b", "press"),
		ev("https://third.net/c", "press"),
	}
	m := ComputeDiversityMetrics("https://example.com/article", evidence, nil)
	if m.SourceDiversity != 3 {
		t.Errorf("SourceDiversity = %d, want 3", m.SourceDiversity)
	}
	want := 2.0 / 3.0
	if m.ExternalRatio != want {
		t.Errorf("ExternalRatio = %v, want %v", m.ExternalRatio, want)
	}
}

func TestChannelDiversityOnlyCountsChannelsWithExternalEntities(t *testing.T) {
	evidence := []Evidence{
		ev("https://example.com/a", "press"),    // same entity, press
		ev("https://other.org/b", "press"),      // external, press
		ev("https://example.com/c", "social"),   // same entity, social — not counted
		ev("https://third.net/d", "government"), // external, government
	}
	m := ComputeDiversityMetrics("https://example.com/article", evidence, nil)
	if m.ChannelDiversity != 2 {
		t.Errorf("ChannelDiversity = %d, want 2 (press + government)", m.ChannelDiversity)
	}
}

func TestEntityMappingGroupsSubdomainsIntoOneEntity(t *testing.T) {
	mappings := []EntityMapping{{
		CanonicalKey: "big-media",
		Domains:      []string{"news.big.com", "opinion.big.com"},
	}}
	evidence := []Evidence{
		ev("https://news.big.com/story", "press"),
		ev("https://opinion.big.com/take", "press"),
	}
	m := ComputeDiversityMetrics("https://news.big.com/original", evidence, mappings)
	if m.SourceDiversity != 1 {
		t.Errorf("SourceDiversity = %d, want 1 (both map to big-media)", m.SourceDiversity)
	}
	if m.ExternalRatio != 0.0 {
		t.Errorf("ExternalRatio = %v, want 0", m.ExternalRatio)
	}
}

func TestMixedInternalAndExternalComputesCorrectRatio(t *testing.T) {
	evidence := []Evidence{
		ev("https://example.com/a", "press"),
		ev("https://example.com/b", "press"),
		ev("https://external.org/c", "social"),
	}
	m := ComputeDiversityMetrics("https://example.com/article", evidence, nil)
	if m.SourceDiversity != 2 {
		t.Errorf("SourceDiversity = %d, want 2", m.SourceDiversity)
	}
	want := 1.0 / 3.0
	if m.ExternalRatio != want {
		t.Errorf("ExternalRatio = %v, want %v", m.ExternalRatio, want)
	}
	if m.ChannelDiversity != 1 {
		t.Errorf("ChannelDiversity = %d, want 1 (only social has external)", m.ChannelDiversity)
	}
}
