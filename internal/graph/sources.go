package graph

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fourthplaces/rootsignal/internal/events"
	"github.com/fourthplaces/rootsignal/internal/types"
)

// SourceRegistry is cmd/scout's read/write path onto Source nodes: listing
// what's registered for the scheduler, and recording each run's
// last_content_hash/last_scraped_at so ScrapeSource's cross-run
// short-circuit (spec.md §4.6, DESIGN.md open question #5) has somewhere
// durable to read from.
type SourceRegistry struct {
	client Client
}

func NewSourceRegistry(client Client) *SourceRegistry {
	return &SourceRegistry{client: client}
}

// ListActive returns every Source node not marked deactivated.
func (s *SourceRegistry) ListActive(ctx context.Context) ([]events.SourceNode, error) {
	res, err := s.client.Query(ctx, `
		MATCH (src:Source)
		WHERE coalesce(src.status, 'registered') <> 'deactivated'
		RETURN src.id, src.canonical_key, src.canonical_value, src.url,
		       src.discovery_method, src.weight, src.source_role,
		       src.gap_context, src.cadence_hours
	`, nil)
	if err != nil {
		return nil, err
	}

	sources := make([]events.SourceNode, 0, len(res.Rows))
	for _, row := range res.Rows {
		idStr, ok := row[0].(string)
		if !ok {
			continue
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		canonicalKey, _ := row[1].(string)
		canonicalValue, _ := row[2].(string)
		weight, _ := row[5].(float64)

		sources = append(sources, events.SourceNode{
			ID:                   id,
			CanonicalKey:         canonicalKey,
			CanonicalValue:       canonicalValue,
			URL:                  strPtrFromAny(row[3]),
			DiscoveryMethod:      types.DiscoveryMethod(stringFromAny(row[4])),
			Weight:               weight,
			SourceRole:           types.SourceRoleFromString(stringFromAny(row[6])),
			GapContext:           strPtrFromAny(row[7]),
			CadenceHoursOverride: floatPtrFromAny(row[8]),
		})
	}
	return sources, nil
}

// LastScrapeTimes returns the last_scraped_at timestamp recorded for each
// canonical key that has one; keys with no prior run are simply absent.
func (s *SourceRegistry) LastScrapeTimes(ctx context.Context, canonicalKeys []string) (map[string]*time.Time, error) {
	out := map[string]*time.Time{}
	if len(canonicalKeys) == 0 {
		return out, nil
	}

	res, err := s.client.Query(ctx, `
		MATCH (src:Source)
		WHERE src.canonical_key IN $keys AND src.last_scraped_at IS NOT NULL
		RETURN src.canonical_key, src.last_scraped_at
	`, map[string]any{"keys": canonicalKeys})
	if err != nil {
		return nil, err
	}

	for _, row := range res.Rows {
		key, ok := row[0].(string)
		if !ok {
			continue
		}
		ts, ok := row[1].(string)
		if !ok {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			continue
		}
		out[key] = &parsed
	}
	return out, nil
}

// LastContentHash returns the content hash recorded on a source's previous
// successful fetch, or "" if it has never been fetched.
func (s *SourceRegistry) LastContentHash(ctx context.Context, canonicalKey string) (string, error) {
	res, err := s.client.Query(ctx, `
		MATCH (src:Source {canonical_key: $key})
		RETURN coalesce(src.last_content_hash, '')
	`, map[string]any{"key": canonicalKey})
	if err != nil {
		return "", err
	}
	if len(res.Rows) == 0 {
		return "", nil
	}
	hash, _ := res.Rows[0][0].(string)
	return hash, nil
}

// MarkScraped records this run's fetch outcome for canonicalKey, so the
// next run's ScrapeSource call can short-circuit on an unchanged hash.
func (s *SourceRegistry) MarkScraped(ctx context.Context, canonicalKey, contentHash string, at time.Time) error {
	_, err := s.client.Query(ctx, `
		MATCH (src:Source {canonical_key: $key})
		SET src.last_content_hash = $hash, src.last_scraped_at = $at
	`, map[string]any{
		"key":  canonicalKey,
		"hash": contentHash,
		"at":   at.Format(time.RFC3339),
	})
	return err
}

func stringFromAny(v any) string {
	s, _ := v.(string)
	return s
}

func strPtrFromAny(v any) *string {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}

func floatPtrFromAny(v any) *float64 {
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return &f
}
