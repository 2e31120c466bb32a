// Package classifier derives the editorial classification events a new
// signal gets at creation time (spec.md §4.8): sensitivity always, plus
// severity/urgency/tone where the node type calls for them. Grounded on
// kubernaut's own classifier package (pkg/signalprocessing/classifier,
// BR-SP-105 "Severity Determination via Rego Policy") — that package's
// concrete Rego source isn't in the retrieval pack (the repo only ships
// its test file), so the policy below is reconstructed from the test's
// stated business requirement rather than ported line-for-line.
package classifier

import (
	"context"
	_ "embed"
	"strings"

	"github.com/open-policy-agent/opa/rego"

	"github.com/fourthplaces/rootsignal/internal/apperrors"
	"github.com/fourthplaces/rootsignal/internal/types"
)

//go:embed policy.rego
var policySource string

// Classification is the full set of editorial reads the creation handler
// folds into SensitivityClassified/SeverityClassified/UrgencyClassified/
// ToneClassified events.
type Classification struct {
	Sensitivity types.Sensitivity
	Severity    *types.Severity
	Urgency     *types.Urgency
	Tone        *types.Tone
}

// Classifier evaluates the compiled policy against a signal's text and node
// type. It holds no per-call state, so one instance is shared across a run.
type Classifier struct {
	query rego.PreparedEvalQuery
}

func New(ctx context.Context) (*Classifier, error) {
	query, err := rego.New(
		rego.Query("data.rootsignal.classifier"),
		rego.Module("policy.rego", policySource),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "compile classifier policy")
	}
	return &Classifier{query: query}, nil
}

// Classify runs the policy over a signal's title+summary. Extractor-stated
// sensitivity always wins when present and more severe than the policy's
// read, since the LLM has seen content the keyword policy can't.
func (c *Classifier) Classify(ctx context.Context, nodeType types.NodeType, title, summary string, extractorSensitivity types.Sensitivity) (Classification, error) {
	text := strings.ToLower(title + " " + summary)
	input := map[string]any{
		"node_type": string(nodeType),
		"text":      text,
	}

	results, err := c.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Classification{}, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "evaluate classifier policy")
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Classification{Sensitivity: extractorSensitivity}, nil
	}

	bindings, _ := results[0].Expressions[0].Value.(map[string]any)

	sensitivity := maxSensitivity(extractorSensitivity, sensitivityFrom(bindings["sensitivity"]))

	out := Classification{Sensitivity: sensitivity}

	if nodeType == types.NodeNotice || nodeType == types.NodeTension {
		sev := severityFrom(bindings["severity"])
		out.Severity = &sev
	}
	if nodeType == types.NodeNeed {
		urg := urgencyFrom(bindings["urgency"])
		out.Urgency = &urg
	}
	tone := toneFrom(bindings["tone"])
	out.Tone = &tone

	return out, nil
}

func sensitivityFrom(v any) types.Sensitivity {
	s, _ := v.(string)
	switch types.Sensitivity(s) {
	case types.SensitivityElevated, types.SensitivitySensitive:
		return types.Sensitivity(s)
	default:
		return types.SensitivityGeneral
	}
}

func severityFrom(v any) types.Severity {
	s, _ := v.(string)
	switch types.Severity(s) {
	case types.SeverityModerate, types.SeverityHigh, types.SeverityCritical:
		return types.Severity(s)
	default:
		return types.SeverityInfo
	}
}

func urgencyFrom(v any) types.Urgency {
	s, _ := v.(string)
	switch types.Urgency(s) {
	case types.UrgencyMedium, types.UrgencyHigh, types.UrgencyCritical:
		return types.Urgency(s)
	default:
		return types.UrgencyLow
	}
}

func toneFrom(v any) types.Tone {
	s, _ := v.(string)
	if s == "" {
		return types.ToneNeutral
	}
	return types.Tone(s)
}

var sensitivityRank = map[types.Sensitivity]int{
	types.SensitivityGeneral:   0,
	types.SensitivityElevated:  1,
	types.SensitivitySensitive: 2,
}

func maxSensitivity(a, b types.Sensitivity) types.Sensitivity {
	if a == "" {
		a = types.SensitivityGeneral
	}
	if sensitivityRank[b] > sensitivityRank[a] {
		return b
	}
	return a
}
