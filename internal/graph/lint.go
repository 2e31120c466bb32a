package graph

import (
	"context"

	"github.com/google/uuid"

	"github.com/fourthplaces/rootsignal/internal/investigator"
	"github.com/fourthplaces/rootsignal/internal/types"
)

// LintReader implements investigator.Reader over the graph store: Tension
// and Incident nodes are the only two labels the Investigator/Lint pass
// cares about (spec.md §2 row 12), so the Cypher query matches both labels
// directly rather than filtering on a node_type property.
type LintReader struct {
	client Client
}

func NewLintReader(client Client) *LintReader {
	return &LintReader{client: client}
}

var severityOrder = map[types.Severity]int{
	types.SeverityInfo:     0,
	types.SeverityModerate: 1,
	types.SeverityHigh:     2,
	types.SeverityCritical: 3,
}

// FindLintCandidates returns every Tension/Incident signal at or above
// minSeverity whose corroboration_count is at or below maxCorroboration.
// The severity floor is applied in Go rather than Cypher since severity is
// stored as its string label, not an orderable numeric property.
func (r *LintReader) FindLintCandidates(ctx context.Context, minSeverity types.Severity, maxCorroboration int) ([]investigator.LintCandidate, error) {
	res, err := r.client.Query(ctx, `
		MATCH (s:Signal)
		WHERE (s:Tension OR s:Incident)
		  AND s.severity IS NOT NULL
		  AND coalesce(s.corroboration_count, 0) <= $max_corroboration
		RETURN s.id, labels(s), s.title, s.severity, coalesce(s.corroboration_count, 0)
	`, map[string]any{"max_corroboration": maxCorroboration})
	if err != nil {
		return nil, err
	}

	var out []investigator.LintCandidate
	for _, row := range res.Rows {
		id, err := uuid.Parse(row[0].(string))
		if err != nil {
			continue
		}
		severity := types.Severity(row[3].(string))
		if severityOrder[severity] < severityOrder[minSeverity] {
			continue
		}

		out = append(out, investigator.LintCandidate{
			SignalID:           id,
			NodeType:           nodeTypeFromLabels(row[1]),
			Title:              row[2].(string),
			Severity:           severity,
			CorroborationCount: int(row[4].(int64)),
		})
	}
	return out, nil
}

func nodeTypeFromLabels(raw any) types.NodeType {
	labels, ok := raw.([]any)
	if !ok {
		return types.NodeTension
	}
	for _, l := range labels {
		if l == "Incident" {
			return types.NodeIncident
		}
	}
	return types.NodeTension
}
