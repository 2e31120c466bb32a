package enrichment

// Evidence is one Citation's (url, channel_type) pair, as loaded for a
// single signal ahead of diversity computation.
type Evidence struct {
	URL     string
	Channel string
}

// DiversityMetrics are the derived properties diversity enrichment writes
// back onto a signal node.
type DiversityMetrics struct {
	SourceDiversity  int64
	ChannelDiversity int64
	ExternalRatio    float64
}

// ComputeDiversityMetrics resolves selfURL and every piece of evidence to an
// entity and aggregates source_diversity (distinct entities seen),
// channel_diversity (distinct channels with at least one external entity),
// and external_ratio (fraction of evidence from entities other than self).
func ComputeDiversityMetrics(selfURL string, evidence []Evidence, mappings []EntityMapping) DiversityMetrics {
	selfEntity := ResolveEntity(selfURL, mappings)

	entities := map[string]struct{}{}
	channelsWithExternal := map[string]struct{}{}
	var externalCount int64

	for _, e := range evidence {
		entity := ResolveEntity(e.URL, mappings)
		entities[entity] = struct{}{}
		if entity != selfEntity {
			externalCount++
			channelsWithExternal[e.Channel] = struct{}{}
		}
	}

	total := int64(len(evidence))
	externalRatio := 0.0
	if total > 0 {
		externalRatio = float64(externalCount) / float64(total)
	}

	return DiversityMetrics{
		SourceDiversity:  int64(len(entities)),
		ChannelDiversity: int64(len(channelsWithExternal)),
		ExternalRatio:    externalRatio,
	}
}
