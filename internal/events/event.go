// Package events defines the three event layers described in spec.md §3.3:
// World (observed facts), System (editorial decisions), and Pipeline
// (internal bookkeeping). All three flow through the same engine dispatch
// loop and event store; only World and System are fed to the graph
// projector.
package events

import (
	"encoding/json"
	"fmt"
)

// Layer discriminates which of the three streams an event belongs to.
type Layer string

const (
	LayerWorld    Layer = "world"
	LayerSystem   Layer = "system"
	LayerPipeline Layer = "pipeline"
)

// Event is implemented by every concrete event struct. EventType returns the
// stable snake_case discriminator persisted in the event store's event_type
// column and embedded in the JSON payload.
type Event interface {
	EventType() string
	Layer() Layer
}

// projectable is implemented by pipeline events that are the sole exception
// to "pipeline events are never projected" — currently only SourceDiscovered.
type projectable interface {
	Projectable() bool
}

// Projectable reports whether e must be applied by the graph projector.
// World and System events always are; Pipeline events only if they opt in.
func Projectable(e Event) bool {
	switch e.Layer() {
	case LayerWorld, LayerSystem:
		return true
	case LayerPipeline:
		if p, ok := e.(projectable); ok {
			return p.Projectable()
		}
		return false
	default:
		return false
	}
}

// PersistTypeString prefixes pipeline events with "pipeline:" the way the
// original implementation does, so the event store's event_type column
// disambiguates pipeline bookkeeping from world/system facts sharing a name.
func PersistTypeString(e Event) string {
	if e.Layer() == LayerPipeline {
		return "pipeline:" + e.EventType()
	}
	return e.EventType()
}

// ToPayload serializes e to the JSON shape persisted in the event store:
// the event's own fields plus an embedded "type" discriminator, matching
// spec.md §6.1 ("a discriminated union keyed by a snake_case type field").
func ToPayload(e Event) (json.RawMessage, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event %s: %w", e.EventType(), err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decompose event %s: %w", e.EventType(), err)
	}
	typeJSON, _ := json.Marshal(e.EventType())
	fields["type"] = typeJSON
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("recompose event %s: %w", e.EventType(), err)
	}
	return out, nil
}

// decoderFunc unmarshals a raw payload into a concrete Event.
type decoderFunc func(json.RawMessage) (Event, error)

var registry = map[string]decoderFunc{}

func register(eventType string, fn decoderFunc) {
	registry[eventType] = fn
}

// Decode reconstructs a concrete Event from its stored event_type and JSON
// payload, used by the projector and by subscribers replaying the log.
// eventType may carry the "pipeline:" prefix PersistTypeString adds; it is
// stripped before lookup.
func Decode(eventType string, payload json.RawMessage) (Event, error) {
	bare := eventType
	if len(bare) > len("pipeline:") && bare[:len("pipeline:")] == "pipeline:" {
		bare = bare[len("pipeline:"):]
	}
	fn, ok := registry[bare]
	if !ok {
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}
	return fn(payload)
}
