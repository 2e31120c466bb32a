package enrichment

import (
	"context"
	"math"
	"sort"

	"github.com/fourthplaces/rootsignal/internal/graph"
	"github.com/fourthplaces/rootsignal/internal/types"
)

// signalLabels are every node label the diversity and cause-heat passes
// sweep over — every signal kind except Citation, which never itself
// carries diversity/cause_heat properties.
var signalLabels = []string{"Gathering", "Aid", "Need", "Notice", "Tension", "Condition", "Incident"}

// Stats summarizes one enrichment run, surfaced on the stats endpoint.
type Stats struct {
	DiversityUpdated  int
	ActorStatsUpdated int
	CauseHeatUpdated  int
}

// Pass runs the three enrichment sub-passes over a graph.Client, in the order
// diversity, actor stats, cause heat. Cause heat reads only embeddings and
// coordinates, not the source_diversity the diversity pass writes.
type Pass struct {
	client          graph.Client
	entityMappings  []EntityMapping
	causeHeatThresh float64
	bbox            types.BoundingBox
}

func NewPass(client graph.Client, mappings []EntityMapping, causeHeatThreshold float64, bbox types.BoundingBox) *Pass {
	return &Pass{client: client, entityMappings: mappings, causeHeatThresh: causeHeatThreshold, bbox: bbox}
}

func (p *Pass) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	diversityUpdated, err := p.runDiversity(ctx)
	if err != nil {
		return stats, err
	}
	stats.DiversityUpdated = diversityUpdated

	actorUpdated, err := p.runActorStats(ctx)
	if err != nil {
		return stats, err
	}
	stats.ActorStatsUpdated = actorUpdated

	heatUpdated, err := p.runCauseHeat(ctx)
	if err != nil {
		return stats, err
	}
	stats.CauseHeatUpdated = heatUpdated

	return stats, nil
}

type evidenceRow struct {
	id       string
	selfURL  string
	evidence []Evidence
}

func (p *Pass) runDiversity(ctx context.Context) (int, error) {
	updated := 0
	for _, label := range signalLabels {
		result, err := p.client.Query(ctx, `
			MATCH (n:`+label+`)
			OPTIONAL MATCH (n)-[:SOURCED_FROM]->(ev:Citation)
			RETURN n.id AS id, n.source_url AS self_url,
			       collect({url: ev.url, channel: coalesce(ev.channel_type, 'press')}) AS evidence
		`, nil)
		if err != nil {
			return updated, err
		}

		rows := decodeEvidenceRows(result)
		if len(rows) == 0 {
			continue
		}

		batch := make([]map[string]any, 0, len(rows))
		for _, row := range rows {
			m := ComputeDiversityMetrics(row.selfURL, row.evidence, p.entityMappings)
			batch = append(batch, map[string]any{
				"id":         row.id,
				"src_div":    m.SourceDiversity,
				"ch_div":     m.ChannelDiversity,
				"ext_ratio":  m.ExternalRatio,
			})
		}

		_, err = p.client.Query(ctx, `
			UNWIND $rows AS row
			MATCH (n:`+label+` {id: row.id})
			SET n.source_diversity = row.src_div,
			    n.channel_diversity = row.ch_div,
			    n.external_ratio = row.ext_ratio
		`, map[string]any{"rows": batch})
		if err != nil {
			return updated, err
		}
		updated += len(batch)
	}
	return updated, nil
}

// decodeEvidenceRows is intentionally permissive about the shape a graph
// driver hands back (columns keyed by name, values as loosely-typed any),
// since FalkorDB's Go client returns record values rather than a typed row.
func decodeEvidenceRows(result *graph.QueryResult) []evidenceRow {
	idx := columnIndex(result.Columns)
	var rows []evidenceRow
	for _, values := range result.Rows {
		id, _ := values[idx["id"]].(string)
		selfURL, _ := values[idx["self_url"]].(string)
		rawEvidence, _ := values[idx["evidence"]].([]any)

		var evidence []Evidence
		for _, re := range rawEvidence {
			m, ok := re.(map[string]any)
			if !ok {
				continue
			}
			url, _ := m["url"].(string)
			if url == "" {
				continue
			}
			channel, _ := m["channel"].(string)
			if channel == "" {
				channel = "press"
			}
			evidence = append(evidence, Evidence{URL: url, Channel: channel})
		}
		rows = append(rows, evidenceRow{id: id, selfURL: selfURL, evidence: evidence})
	}
	return rows
}

func columnIndex(cols []string) map[string]int {
	idx := make(map[string]int, len(cols))
	for i, c := range cols {
		idx[c] = i
	}
	return idx
}

func (p *Pass) runActorStats(ctx context.Context) (int, error) {
	result, err := p.client.Query(ctx, `
		MATCH (a:Actor)-[r:ACTED_IN]->()
		WITH a, count(r) AS cnt
		SET a.signal_count = cnt
		RETURN count(a) AS updated
	`, nil)
	if err != nil {
		return 0, err
	}
	if len(result.Rows) == 0 {
		return 0, nil
	}
	n, _ := result.Rows[0][0].(int64)
	return int(n), nil
}

type embeddedSignal struct {
	id        string
	embedding []float32
	lat, lng  float64
}

// runCauseHeat aggregates pairwise embedding similarity among signals within
// the configured bounding box: pairs at or above the threshold each
// contribute to the other's cause_heat. Signals outside the box, or with no
// recorded location, are left untouched (spec.md §4.10).
func (p *Pass) runCauseHeat(ctx context.Context) (int, error) {
	var all []embeddedSignal
	for _, label := range signalLabels {
		result, err := p.client.Query(ctx, `
			MATCH (n:`+label+`)
			WHERE n.embedding IS NOT NULL AND n.location_lat IS NOT NULL AND n.location_lng IS NOT NULL
			RETURN n.id AS id, n.embedding AS embedding, n.location_lat AS lat, n.location_lng AS lng
		`, nil)
		if err != nil {
			return 0, err
		}
		idx := columnIndex(result.Columns)
		for _, values := range result.Rows {
			id, _ := values[idx["id"]].(string)
			lat, _ := values[idx["lat"]].(float64)
			lng, _ := values[idx["lng"]].(float64)
			point := types.GeoPoint{Lat: lat, Lng: lng}
			if !p.bbox.Contains(point) {
				continue
			}
			rawEmb, _ := values[idx["embedding"]].([]any)
			emb := make([]float32, len(rawEmb))
			for i, v := range rawEmb {
				f, _ := v.(float64)
				emb[i] = float32(f)
			}
			all = append(all, embeddedSignal{id: id, embedding: emb, lat: lat, lng: lng})
		}
	}

	heat := map[string]float64{}
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			sim := cosineSimilarity(all[i].embedding, all[j].embedding)
			if sim >= p.causeHeatThresh {
				heat[all[i].id] += sim
				heat[all[j].id] += sim
			}
		}
	}

	if len(heat) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(heat))
	for id := range heat {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, map[string]any{"id": id, "heat": heat[id]})
	}

	for _, label := range signalLabels {
		if _, err := p.client.Query(ctx, `
			UNWIND $rows AS row
			MATCH (n:`+label+` {id: row.id})
			SET n.cause_heat = row.heat
		`, map[string]any{"rows": rows}); err != nil {
			return 0, err
		}
	}

	return len(heat), nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
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
