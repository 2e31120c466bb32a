// Package breaker wraps each collaborators interface in its own
// sony/gobreaker circuit breaker, grounded on kubernaut's own circuit
// breaker wiring (test/integration/notification/suite_test.go:
// gobreaker.Settings{MaxRequests, Interval, Timeout, ReadyToTrip}) —
// adapted from their per-notification-channel breaker to one breaker per
// external collaborator (ingestor, extractor, embedder), since those are
// this repo's three external-call boundaries (spec.md §7's Transient error
// category: "retried with exponential backoff bounded by a per-run
// budget" — the breaker sits in front of that retry budget, so a
// collaborator that's already down fails fast instead of burning the
// budget on calls that will time out anyway).
package breaker

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/fourthplaces/rootsignal/internal/apperrors"
	"github.com/fourthplaces/rootsignal/internal/collaborators"
)

// Settings returns the default breaker policy: trip after 3 consecutive
// failures, half-open after 30s, allow 2 trial requests while half-open.
func Settings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 2,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
}

// Ingestor wraps a collaborators.Ingestor so an unhealthy upstream trips
// open instead of being hit on every scheduled source.
type Ingestor struct {
	inner collaborators.Ingestor
	cb    *gobreaker.CircuitBreaker[[]collaborators.RawPage]
}

func WrapIngestor(inner collaborators.Ingestor) *Ingestor {
	return &Ingestor{inner: inner, cb: gobreaker.NewCircuitBreaker[[]collaborators.RawPage](Settings("ingestor"))}
}

func (i *Ingestor) Discover(ctx context.Context, cfg collaborators.DiscoverConfig) ([]collaborators.RawPage, error) {
	return run(i.cb, func() ([]collaborators.RawPage, error) { return i.inner.Discover(ctx, cfg) })
}

func (i *Ingestor) FetchSpecific(ctx context.Context, urls []string) ([]collaborators.RawPage, error) {
	return run(i.cb, func() ([]collaborators.RawPage, error) { return i.inner.FetchSpecific(ctx, urls) })
}

// Extractor wraps a collaborators.Extractor.
type Extractor struct {
	inner collaborators.Extractor
	cb    *gobreaker.CircuitBreaker[collaborators.ExtractedSignals]
}

func WrapExtractor(inner collaborators.Extractor) *Extractor {
	return &Extractor{inner: inner, cb: gobreaker.NewCircuitBreaker[collaborators.ExtractedSignals](Settings("extractor"))}
}

func (e *Extractor) Extract(ctx context.Context, content, sourceURL string, trust float64) (collaborators.ExtractedSignals, error) {
	return run(e.cb, func() (collaborators.ExtractedSignals, error) {
		return e.inner.Extract(ctx, content, sourceURL, trust)
	})
}

// Embedder wraps a collaborators.Embedder. EmbedBatch carries its own
// breaker since its failure mode (a timed-out batch call) is independent
// of single-text Embed calls.
type Embedder struct {
	inner      collaborators.Embedder
	embedCB    *gobreaker.CircuitBreaker[[]float32]
	embedBatch *gobreaker.CircuitBreaker[[][]float32]
}

func WrapEmbedder(inner collaborators.Embedder) *Embedder {
	return &Embedder{
		inner:      inner,
		embedCB:    gobreaker.NewCircuitBreaker[[]float32](Settings("embedder")),
		embedBatch: gobreaker.NewCircuitBreaker[[][]float32](Settings("embedder_batch")),
	}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return run(e.embedCB, func() ([]float32, error) { return e.inner.Embed(ctx, text) })
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return run(e.embedBatch, func() ([][]float32, error) { return e.inner.EmbedBatch(ctx, texts) })
}

func run[T any](cb *gobreaker.CircuitBreaker[T], fn func() (T, error)) (T, error) {
	out, err := cb.Execute(fn)
	if err != nil && err != gobreaker.ErrOpenState && err != gobreaker.ErrTooManyRequests {
		return out, err
	}
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return out, apperrors.Wrap(err, apperrors.ErrorTypeTransient, "circuit breaker open")
	}
	return out, nil
}
