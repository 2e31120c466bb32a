package engine

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fourthplaces/rootsignal/internal/events"
	"github.com/fourthplaces/rootsignal/internal/eventstore"
)

func TestEngine(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Engine Suite")
}

// fakeState counts how many times each event type has been folded.
type fakeState struct {
	counts map[string]int
}

type fakeReducer struct{}

func (fakeReducer) Apply(state *fakeState, ev events.Event) {
	if state.counts == nil {
		state.counts = map[string]int{}
	}
	state.counts[ev.EventType()]++
}

// fakeRouter turns a ContentFetched into a SignalsExtracted, which in turn
// produces a NewSignalAccepted — exercising two causal layers deep.
type fakeRouter struct{}

func (fakeRouter) Route(_ context.Context, ev events.Event, _ eventstore.Handle, _ *fakeState, _ struct{}) ([]events.Event, error) {
	switch e := ev.(type) {
	case events.ContentFetched:
		return []events.Event{events.SignalsExtracted{URL: e.URL, CanonicalKey: e.CanonicalKey, Count: 1}}, nil
	case events.SignalsExtracted:
		return []events.Event{events.NewSignalAccepted{Title: "x", SourceURL: e.URL}}, nil
	default:
		return nil, nil
	}
}

var _ = Describe("Engine dispatch loop", func() {
	var (
		store *eventstore.MemoryStore
		eng   *Engine[fakeState, struct{}]
		state *fakeState
		ctx   context.Context
	)

	BeforeEach(func() {
		store = eventstore.NewMemoryStore()
		eng = New[fakeState, struct{}](store, fakeReducer{}, fakeRouter{})
		state = &fakeState{}
		ctx = context.Background()
	})

	It("should fold and persist the root event", func() {
		ev := events.ContentFetched{URL: "https://example.org", CanonicalKey: "example.org"}
		Expect(eng.Dispatch(ctx, ev, state, struct{}{}, RunContext{})).To(Succeed())

		Expect(state.counts["content_fetched"]).To(Equal(1))

		latest, err := store.LatestSeq(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(latest).To(BeNumerically(">=", int64(1)))
	})

	It("should recursively dispatch derived events depth-first", func() {
		ev := events.ContentFetched{URL: "https://example.org", CanonicalKey: "example.org"}
		Expect(eng.Dispatch(ctx, ev, state, struct{}{}, RunContext{})).To(Succeed())

		Expect(state.counts["content_fetched"]).To(Equal(1))
		Expect(state.counts["signals_extracted"]).To(Equal(1))
		Expect(state.counts["new_signal_accepted"]).To(Equal(1))
	})

	It("should keep every descendant under the root's caused_by_seq", func() {
		ev := events.ContentFetched{URL: "https://example.org", CanonicalKey: "example.org"}
		Expect(eng.Dispatch(ctx, ev, state, struct{}{}, RunContext{})).To(Succeed())

		all, err := store.ReadFrom(ctx, 1, 10)
		Expect(err).ToNot(HaveOccurred())
		Expect(all).To(HaveLen(3))

		root := all[0]
		for _, e := range all[1:] {
			Expect(e.CausedBySeq).ToNot(BeNil())
			Expect(*e.CausedBySeq).To(Equal(root.Seq))
		}
	})

	It("should not recurse when the router produces nothing", func() {
		ev := events.EngineStarted{RunID: "run-1"}
		Expect(eng.Dispatch(ctx, ev, state, struct{}{}, RunContext{})).To(Succeed())

		all, err := store.ReadFrom(ctx, 1, 10)
		Expect(err).ToNot(HaveOccurred())
		Expect(all).To(HaveLen(1))
	})
})
