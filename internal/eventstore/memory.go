package eventstore

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore is an in-process Store used by engine and pipeline tests that
// don't want a live Postgres instance. It implements the same gap-stopping
// and causal-linking semantics as PostgresStore.
type MemoryStore struct {
	mu     sync.Mutex
	events []StoredEvent
	subs   []chan int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) append(eventType string, payload json.RawMessage, parentSeq, causedBySeq *int64, runID, actor *string) Handle {
	s.mu.Lock()
	seq := int64(len(s.events)) + 1
	e := StoredEvent{
		Seq:         seq,
		EventType:   eventType,
		ParentSeq:   parentSeq,
		CausedBySeq: causedBySeq,
		RunID:       runID,
		Actor:       actor,
		Payload:     payload,
		SchemaV:     1,
	}
	s.events = append(s.events, e)
	subs := append([]chan int64(nil), s.subs...)
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- seq:
		default:
		}
	}
	causedBy := seq
	if causedBySeq != nil {
		causedBy = *causedBySeq
	}
	return Handle{Seq: seq, CausedBy: causedBy, RunID: runID, Actor: actor}
}

func (s *MemoryStore) Append(_ context.Context, eventType string, payload json.RawMessage, runID, actor *string) (Handle, error) {
	return s.append(eventType, payload, nil, nil, runID, actor), nil
}

func (s *MemoryStore) AppendChild(_ context.Context, parent Handle, eventType string, payload json.RawMessage) (Handle, error) {
	return s.append(eventType, payload, &parent.Seq, &parent.CausedBy, parent.RunID, parent.Actor), nil
}

func (s *MemoryStore) ReadFrom(_ context.Context, seqStart int64, limit int) ([]StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []StoredEvent
	for _, e := range s.events {
		if e.Seq < seqStart {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) ReadByType(_ context.Context, eventType string, seqStart int64, limit int) ([]StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []StoredEvent
	for _, e := range s.events {
		if e.Seq < seqStart || e.EventType != eventType {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) ReadByRun(_ context.Context, runID string) ([]StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []StoredEvent
	for _, e := range s.events {
		if e.RunID != nil && *e.RunID == runID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) ReadTree(_ context.Context, rootSeq int64) ([]StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inTree := map[int64]bool{rootSeq: true}
	var out []StoredEvent
	// Single pass is enough since children always have a higher seq than
	// their parent.
	for _, e := range s.events {
		if e.Seq == rootSeq || (e.ParentSeq != nil && inTree[*e.ParentSeq]) {
			inTree[e.Seq] = true
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) ReadChildren(_ context.Context, parentSeq int64) ([]StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []StoredEvent
	for _, e := range s.events {
		if e.ParentSeq != nil && *e.ParentSeq == parentSeq {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) LatestSeq(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return 0, nil
	}
	return s.events[len(s.events)-1].Seq, nil
}

func (s *MemoryStore) Subscribe(ctx context.Context) (<-chan int64, error) {
	ch := make(chan int64, 64)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, c := range s.subs {
			if c == ch {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

var _ Store = (*MemoryStore)(nil)
