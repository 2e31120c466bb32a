// Package engine implements the reducer/router dispatch loop of spec.md
// §4.2: fold an event into state, persist it, route it to zero or more
// derived events, and recurse depth-first so that every descendant of a
// root event shares its caused_by_seq.
package engine

import (
	"context"

	"github.com/fourthplaces/rootsignal/internal/apperrors"
	"github.com/fourthplaces/rootsignal/internal/events"
	"github.com/fourthplaces/rootsignal/internal/eventstore"
)

// Reducer folds an event into state in place. It must be pure: no I/O, no
// side effects beyond mutating state.
type Reducer[S any] interface {
	Apply(state *S, ev events.Event)
}

// Router decides what an event causes. It may read state and external
// collaborators in deps, but must express every effect as a returned event
// rather than performing it directly — side effects happen when the engine
// later dispatches those derived events.
type Router[S any, D any] interface {
	Route(ctx context.Context, ev events.Event, handle eventstore.Handle, state *S, deps D) ([]events.Event, error)
}

// RunContext carries the ambient run_id/actor every event in a run is
// stamped with.
type RunContext struct {
	RunID *string
	Actor *string
}

// Engine wires the three dispatch-loop collaborators over a concrete state
// type S and dependency bundle D.
type Engine[S any, D any] struct {
	store   eventstore.Store
	reducer Reducer[S]
	router  Router[S, D]
}

func New[S any, D any](store eventstore.Store, reducer Reducer[S], router Router[S, D]) *Engine[S, D] {
	return &Engine[S, D]{store: store, reducer: reducer, router: router}
}

// Dispatch folds, persists, and routes a root event, then recursively
// dispatches every event it and its descendants produce. Dispatch is
// single-threaded with respect to state: callers must not invoke Dispatch
// concurrently against the same *S.
func (e *Engine[S, D]) Dispatch(ctx context.Context, ev events.Event, state *S, deps D, run RunContext) error {
	e.reducer.Apply(state, ev)

	payload, err := events.ToPayload(ev)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "serialize event for append")
	}
	handle, err := e.store.Append(ctx, events.PersistTypeString(ev), payload, run.RunID, run.Actor)
	if err != nil {
		return err
	}
	return e.routeAndRecurse(ctx, ev, handle, state, deps)
}

func (e *Engine[S, D]) routeAndRecurse(ctx context.Context, ev events.Event, handle eventstore.Handle, state *S, deps D) error {
	derived, err := e.router.Route(ctx, ev, handle, state, deps)
	if err != nil {
		return err
	}
	for _, d := range derived {
		e.reducer.Apply(state, d)

		payload, err := events.ToPayload(d)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "serialize derived event for append")
		}
		childHandle, err := e.store.AppendChild(ctx, handle, events.PersistTypeString(d), payload)
		if err != nil {
			return err
		}
		if err := e.routeAndRecurse(ctx, d, childHandle, state, deps); err != nil {
			return err
		}
	}
	return nil
}
