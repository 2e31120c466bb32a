package graph

import (
	"context"
	"errors"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fourthplaces/rootsignal/internal/investigator"
	"github.com/fourthplaces/rootsignal/internal/types"
)

var _ = Describe("LintReader", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("maps query rows into LintCandidates and filters below minSeverity", func() {
		tensionID := uuid.New()
		incidentID := uuid.New()
		client := &fakeClient{result: &QueryResult{
			Rows: [][]any{
				{tensionID.String(), []any{"Signal", "Tension"}, "road closure", "moderate", int64(0)},
				{incidentID.String(), []any{"Signal", "Incident"}, "gas leak", "critical", int64(1)},
			},
		}}
		reader := NewLintReader(client)

		out, err := reader.FindLintCandidates(ctx, types.SeverityHigh, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(1))
		Expect(out[0]).To(Equal(investigator.LintCandidate{
			SignalID:           incidentID,
			NodeType:           types.NodeIncident,
			Title:              "gas leak",
			Severity:           types.SeverityCritical,
			CorroborationCount: 1,
		}))
	})

	It("binds max_corroboration as a query parameter", func() {
		client := &fakeClient{result: &QueryResult{}}
		reader := NewLintReader(client)

		_, err := reader.FindLintCandidates(ctx, types.SeverityModerate, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(client.queries).To(HaveLen(1))
		Expect(client.queries[0].params["max_corroboration"]).To(Equal(3))
	})

	It("propagates a query error", func() {
		client := &fakeClient{err: errors.New("connection reset")}
		reader := NewLintReader(client)

		_, err := reader.FindLintCandidates(ctx, types.SeverityHigh, 1)
		Expect(err).To(HaveOccurred())
	})

	It("skips a row whose id isn't a parseable UUID instead of failing the whole query", func() {
		client := &fakeClient{result: &QueryResult{
			Rows: [][]any{
				{"not-a-uuid", []any{"Signal", "Tension"}, "x", "high", int64(0)},
			},
		}}
		reader := NewLintReader(client)

		out, err := reader.FindLintCandidates(ctx, types.SeverityHigh, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(BeEmpty())
	})
})
