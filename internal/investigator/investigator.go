// Package investigator is the optional Investigator/Lint pass (spec.md §2
// row 12): a post-enrichment sweep that re-reads low-corroboration,
// high-severity Tension/Incident signals and raises a Dispatch for each one
// an operator should look at, plus an optional outbound Slack notification.
// It is the minimal faithful slice of the original's lint/correction agent
// that doesn't require an LLM client — the correction/mutation side of that
// framework is out of scope (spec.md Non-goals).
package investigator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fourthplaces/rootsignal/internal/events"
	"github.com/fourthplaces/rootsignal/internal/types"
)

// LintCandidate is one signal the Reader surfaced as meeting the
// severity/corroboration thresholds.
type LintCandidate struct {
	SignalID           uuid.UUID
	NodeType           types.NodeType
	Title              string
	Severity           types.Severity
	CorroborationCount int
}

// Reader is the graph-read side the investigator needs, kept separate from
// the Projector (the graph's single writer) the same way
// collaborators.SignalReader is kept separate from it for the creation
// handler.
type Reader interface {
	FindLintCandidates(ctx context.Context, minSeverity types.Severity, maxCorroboration int) ([]LintCandidate, error)
}

// severityRank orders Severity for the ">= minSeverity" comparison; spec.md
// §4 lists the scale low to high as info/moderate/high/critical.
var severityRank = map[types.Severity]int{
	types.SeverityInfo:     0,
	types.SeverityModerate: 1,
	types.SeverityHigh:     2,
	types.SeverityCritical: 3,
}

// Notifier posts a human-readable summary of a dispatch somewhere an
// operator will see it. internal/notify's Slack client implements this;
// NoopNotifier is the default when no webhook is configured.
type Notifier interface {
	Notify(ctx context.Context, summary string) error
}

// NoopNotifier discards every summary. It's the zero-value-safe default so
// an Investigator built without a Notifier never nil-derefs.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, string) error { return nil }

// Investigator runs the lint pass: find qualifying signals, raise one
// Dispatch per signal, and notify.
type Investigator struct {
	reader          Reader
	notifier        Notifier
	minSeverity     types.Severity
	maxCorroboration int
}

// New returns an Investigator applying spec.md's §2 row 12 default
// thresholds: high severity or above, at most one corroborating
// observation. notifier may be nil, in which case dispatches are raised
// without any outbound notification.
func New(reader Reader, notifier Notifier) *Investigator {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Investigator{
		reader:           reader,
		notifier:         notifier,
		minSeverity:      types.SeverityHigh,
		maxCorroboration: 1,
	}
}

// NewWithThresholds allows an operator-tunable severity floor and
// corroboration ceiling, matching the operator-tunable-knob pattern the
// scheduler's NewWithPolicy already follows.
func NewWithThresholds(reader Reader, notifier Notifier, minSeverity types.Severity, maxCorroboration int) *Investigator {
	inv := New(reader, notifier)
	inv.minSeverity = minSeverity
	inv.maxCorroboration = maxCorroboration
	return inv
}

// Run reads every candidate meeting the threshold and emits one
// DispatchCreated system event per candidate, notifying for each. A
// notification failure is logged by the caller (Run returns the first such
// error; later ones are dropped) but doesn't stop the remaining dispatches — a flaky
// webhook shouldn't suppress the dispatch events themselves.
func (inv *Investigator) Run(ctx context.Context) ([]events.Event, error) {
	candidates, err := inv.reader.FindLintCandidates(ctx, inv.minSeverity, inv.maxCorroboration)
	if err != nil {
		return nil, err
	}

	var out []events.Event
	var notifyErr error
	for _, c := range candidates {
		if !meetsThreshold(c.Severity, inv.minSeverity) {
			continue
		}

		dispatchID := uuid.New()
		body := fmt.Sprintf("%s signal %q (%s) has only %d corroborating observation(s)",
			c.Severity, c.Title, c.NodeType, c.CorroborationCount)

		out = append(out, events.DispatchCreated{
			DispatchID:   dispatchID,
			Body:         body,
			SignalIDs:    []uuid.UUID{c.SignalID},
			DispatchType: "lint_alert",
		})

		if err := inv.notifier.Notify(ctx, body); err != nil && notifyErr == nil {
			notifyErr = err
		}
	}

	return out, notifyErr
}

// meetsThreshold reports whether a candidate's severity is at or above
// minSeverity. It is unexported, so Reader implementations in other
// packages keep their own ordering (graph.LintReader uses severityOrder).
func meetsThreshold(severity, minSeverity types.Severity) bool {
	return severityRank[severity] >= severityRank[minSeverity]
}
