package graph

import (
	"context"
	"math"

	"github.com/google/uuid"

	"github.com/fourthplaces/rootsignal/internal/collaborators"
	"github.com/fourthplaces/rootsignal/internal/types"
)

// SignalReader implements collaborators.SignalReader against the same graph
// store the Projector writes to, closing the read side of dedup (spec.md
// §4.7) that previously had no concrete implementation in this repo —
// cross-run title/URL/vector matches need a real query, not just the
// in-memory EmbedCache the dedup handler also consults.
type SignalReader struct {
	client Client
}

func NewSignalReader(client Client) *SignalReader {
	return &SignalReader{client: client}
}

// ExistingTitlesForURL returns every title already stored for signals
// sourced from url, for layer 2's same-URL title match.
func (r *SignalReader) ExistingTitlesForURL(ctx context.Context, url string) ([]string, error) {
	res, err := r.client.Query(ctx, `
		MATCH (s:Signal {source_url: $url})
		RETURN s.title
	`, map[string]any{"url": url})
	if err != nil {
		return nil, err
	}

	titles := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		if t, ok := row[0].(string); ok {
			titles = append(titles, t)
		}
	}
	return titles, nil
}

// FindByTitlesAndTypes resolves the global (normalized_title, node_type)
// dedup layer: one batched query rather than one round trip per candidate.
func (r *SignalReader) FindByTitlesAndTypes(ctx context.Context, pairs []collaborators.TitleTypePair) (map[collaborators.TitleTypePair]uuid.UUID, error) {
	out := make(map[collaborators.TitleTypePair]uuid.UUID, len(pairs))
	if len(pairs) == 0 {
		return out, nil
	}

	titles := make([]string, len(pairs))
	for i, p := range pairs {
		titles[i] = p.NormalizedTitle
	}

	res, err := r.client.Query(ctx, `
		MATCH (s:Signal)
		WHERE s.normalized_title IN $titles
		RETURN s.id, s.normalized_title, s.node_type
	`, map[string]any{"titles": titles})
	if err != nil {
		return nil, err
	}

	for _, row := range res.Rows {
		idStr, ok := row[0].(string)
		if !ok {
			continue
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		normalizedTitle, _ := row[1].(string)
		nodeType, _ := row[2].(string)
		key := collaborators.TitleTypePair{NormalizedTitle: normalizedTitle, NodeType: types.NodeType(nodeType)}

		if _, want := indexOf(pairs, key); want {
			out[key] = id
		}
	}
	return out, nil
}

func indexOf(pairs []collaborators.TitleTypePair, key collaborators.TitleTypePair) (int, bool) {
	for i, p := range pairs {
		if p == key {
			return i, true
		}
	}
	return -1, false
}

// FindDuplicate scans Signal nodes of nodeType within bbox carrying a stored
// embedding and returns the closest one above threshold by cosine
// similarity. The projector only persists an embedding once a signal's
// world event has been accepted (see Projector.mergeSignal), so a signal
// created before this repo's embedding-persistence change, or created by a
// teacher version of the projector, simply won't match here — an honest
// false negative rather than a fabricated one.
func (r *SignalReader) FindDuplicate(ctx context.Context, embedding []float32, nodeType types.NodeType, threshold float64, bbox types.BoundingBox) (collaborators.DuplicateMatch, bool, error) {
	res, err := r.client.Query(ctx, `
		MATCH (s:Signal)
		WHERE s.node_type = $node_type
		  AND s.embedding IS NOT NULL
		  AND (s.location_lat IS NULL OR (
		        s.location_lat >= $min_lat AND s.location_lat <= $max_lat AND
		        s.location_lng >= $min_lng AND s.location_lng <= $max_lng
		      ))
		RETURN s.id, s.source_url, s.embedding
	`, map[string]any{
		"node_type": string(nodeType),
		"min_lat":   bbox.MinLat,
		"max_lat":   bbox.MaxLat,
		"min_lng":   bbox.MinLng,
		"max_lng":   bbox.MaxLng,
	})
	if err != nil {
		return collaborators.DuplicateMatch{}, false, err
	}

	var best collaborators.DuplicateMatch
	bestSim := threshold
	found := false

	for _, row := range res.Rows {
		idStr, ok := row[0].(string)
		if !ok {
			continue
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		sourceURL, _ := row[1].(string)
		candidate, ok := toFloat32Slice(row[2])
		if !ok {
			continue
		}

		sim := cosineSimilarity(embedding, candidate)
		if sim >= bestSim {
			bestSim = sim
			best = collaborators.DuplicateMatch{ExistingID: id, SourceURL: sourceURL, Similarity: sim}
			found = true
		}
	}

	return best, found, nil
}

// ReadCorroborationCount reads the running count the projector maintains on
// ObservationCorroborated (spec.md §4.9).
func (r *SignalReader) ReadCorroborationCount(ctx context.Context, id uuid.UUID, nodeType types.NodeType) (int, error) {
	res, err := r.client.Query(ctx, `
		MATCH (s:Signal {id: $id})
		RETURN coalesce(s.corroboration_count, 0)
	`, map[string]any{"id": id.String()})
	if err != nil {
		return 0, err
	}
	if len(res.Rows) == 0 {
		return 0, nil
	}
	count, ok := res.Rows[0][0].(int64)
	if !ok {
		return 0, nil
	}
	return int(count), nil
}

// FindActorByCanonicalKey looks up an already-identified actor, for the
// creation handler's author-actor wiring.
func (r *SignalReader) FindActorByCanonicalKey(ctx context.Context, key string) (uuid.UUID, bool, error) {
	res, err := r.client.Query(ctx, `
		MATCH (a:Actor {canonical_key: $key})
		RETURN a.id
	`, map[string]any{"key": key})
	if err != nil {
		return uuid.UUID{}, false, err
	}
	if len(res.Rows) == 0 {
		return uuid.UUID{}, false, nil
	}
	idStr, ok := res.Rows[0][0].(string)
	if !ok {
		return uuid.UUID{}, false, nil
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.UUID{}, false, nil
	}
	return id, true, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func toFloat32Slice(v any) ([]float32, bool) {
	raw, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]float32, 0, len(raw))
	for _, item := range raw {
		switch n := item.(type) {
		case float64:
			out = append(out, float32(n))
		case float32:
			out = append(out, n)
		default:
			return nil, false
		}
	}
	return out, true
}
