// Package eventstore implements the append-only event log described in
// spec.md §4.1: a monotonic, causally-linked sequence of events backed by
// Postgres, with gap-aware reads and a best-effort NOTIFY-driven subscribe.
package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goerrors "github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fourthplaces/rootsignal/internal/apperrors"
)

// StoredEvent is a single row of the event log.
type StoredEvent struct {
	Seq         int64
	Ts          time.Time
	EventType   string
	ParentSeq   *int64
	CausedBySeq *int64
	RunID       *string
	Actor       *string
	Payload     json.RawMessage
	SchemaV     int
}

// Handle is returned by Append and carries what a caller needs to emit
// children of the event it just persisted, per spec.md §4.1.
type Handle struct {
	Seq      int64
	CausedBy int64
	RunID    *string
	Actor    *string
}

// Store is the Event Store's full interface, satisfied by PostgresStore for
// production use and by MemoryStore in tests that don't want a live database.
type Store interface {
	Append(ctx context.Context, eventType string, payload json.RawMessage, runID, actor *string) (Handle, error)
	AppendChild(ctx context.Context, parent Handle, eventType string, payload json.RawMessage) (Handle, error)
	ReadFrom(ctx context.Context, seqStart int64, limit int) ([]StoredEvent, error)
	ReadByType(ctx context.Context, eventType string, seqStart int64, limit int) ([]StoredEvent, error)
	ReadByRun(ctx context.Context, runID string) ([]StoredEvent, error)
	ReadTree(ctx context.Context, rootSeq int64) ([]StoredEvent, error)
	ReadChildren(ctx context.Context, parentSeq int64) ([]StoredEvent, error)
	LatestSeq(ctx context.Context) (int64, error)
	// Subscribe returns a channel of newly-committed seqs. It is a nudge,
	// not a delivery guarantee: a missed notification is recovered by the
	// caller polling ReadFrom from its last known seq.
	Subscribe(ctx context.Context) (<-chan int64, error)
}

// PostgresStore is the production Store, backed by a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an already-connected pool. Schema creation is left
// to an external migration step; see schema.sql in this package.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Append(ctx context.Context, eventType string, payload json.RawMessage, runID, actor *string) (Handle, error) {
	const q = `
INSERT INTO events (ts, event_type, parent_seq, caused_by_seq, run_id, actor, payload, schema_v)
VALUES (now(), $1, NULL, NULL, $2, $3, $4, 1)
RETURNING seq`
	var seq int64
	if err := s.pool.QueryRow(ctx, q, eventType, runID, actor, payload).Scan(&seq); err != nil {
		return Handle{}, apperrors.Wrap(goerrors.Wrap(err, "insert event"), apperrors.ErrorTypeDatabase, "append root event")
	}
	if err := s.notify(ctx, seq); err != nil {
		// A failed NOTIFY never invalidates a committed append; subscribers
		// fall back to polling.
		_ = err
	}
	return Handle{Seq: seq, CausedBy: seq, RunID: runID, Actor: actor}, nil
}

func (s *PostgresStore) AppendChild(ctx context.Context, parent Handle, eventType string, payload json.RawMessage) (Handle, error) {
	const q = `
INSERT INTO events (ts, event_type, parent_seq, caused_by_seq, run_id, actor, payload, schema_v)
VALUES (now(), $1, $2, $3, $4, $5, $6, 1)
RETURNING seq`
	var seq int64
	err := s.pool.QueryRow(ctx, q, eventType, parent.Seq, parent.CausedBy, parent.RunID, parent.Actor, payload).Scan(&seq)
	if err != nil {
		return Handle{}, apperrors.Wrap(goerrors.Wrap(err, "insert event"), apperrors.ErrorTypeDatabase, "append child event")
	}
	if err := s.notify(ctx, seq); err != nil {
		_ = err
	}
	return Handle{Seq: seq, CausedBy: parent.CausedBy, RunID: parent.RunID, Actor: parent.Actor}, nil
}

// notify sends a best-effort NOTIFY carrying only the new seq, per spec.md
// §4.1's "nudge, not a delivery guarantee."
func (s *PostgresStore) notify(ctx context.Context, seq int64) error {
	_, err := s.pool.Exec(ctx, `SELECT pg_notify('events', $1)`, seq)
	return err
}

func (s *PostgresStore) ReadFrom(ctx context.Context, seqStart int64, limit int) ([]StoredEvent, error) {
	const q = `
SELECT seq, ts, event_type, parent_seq, caused_by_seq, run_id, actor, payload, schema_v
FROM events WHERE seq >= $1 ORDER BY seq ASC LIMIT $2`
	rows, err := s.pool.Query(ctx, q, seqStart, limit)
	if err != nil {
		return nil, apperrors.Wrap(goerrors.Wrap(err, "select events"), apperrors.ErrorTypeDatabase, "read_from")
	}
	defer rows.Close()

	var out []StoredEvent
	expected := seqStart
	for rows.Next() {
		var e StoredEvent
		if err := rows.Scan(&e.Seq, &e.Ts, &e.EventType, &e.ParentSeq, &e.CausedBySeq, &e.RunID, &e.Actor, &e.Payload, &e.SchemaV); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "scan event row")
		}
		if e.Seq != expected {
			// Gap: a higher seq exists than the one we expected next — even
			// on the very first row, when seqStart itself is still
			// in-flight. Stop here so callers never observe a transaction
			// still in flight; the result starts at seqStart or is empty.
			break
		}
		out = append(out, e)
		expected = e.Seq + 1
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "iterate read_from")
	}
	return out, nil
}

func (s *PostgresStore) ReadByType(ctx context.Context, eventType string, seqStart int64, limit int) ([]StoredEvent, error) {
	const q = `
SELECT seq, ts, event_type, parent_seq, caused_by_seq, run_id, actor, payload, schema_v
FROM events WHERE event_type = $1 AND seq >= $2 ORDER BY seq ASC LIMIT $3`
	return s.queryAll(ctx, q, eventType, seqStart, limit)
}

func (s *PostgresStore) ReadByRun(ctx context.Context, runID string) ([]StoredEvent, error) {
	const q = `
SELECT seq, ts, event_type, parent_seq, caused_by_seq, run_id, actor, payload, schema_v
FROM events WHERE run_id = $1 ORDER BY seq ASC`
	return s.queryAll(ctx, q, runID)
}

func (s *PostgresStore) ReadTree(ctx context.Context, rootSeq int64) ([]StoredEvent, error) {
	const q = `
WITH RECURSIVE tree AS (
	SELECT * FROM events WHERE seq = $1
	UNION ALL
	SELECT e.* FROM events e JOIN tree t ON e.parent_seq = t.seq
)
SELECT seq, ts, event_type, parent_seq, caused_by_seq, run_id, actor, payload, schema_v
FROM tree ORDER BY seq ASC`
	return s.queryAll(ctx, q, rootSeq)
}

func (s *PostgresStore) ReadChildren(ctx context.Context, parentSeq int64) ([]StoredEvent, error) {
	const q = `
SELECT seq, ts, event_type, parent_seq, caused_by_seq, run_id, actor, payload, schema_v
FROM events WHERE parent_seq = $1 ORDER BY seq ASC`
	return s.queryAll(ctx, q, parentSeq)
}

func (s *PostgresStore) queryAll(ctx context.Context, q string, args ...any) ([]StoredEvent, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, apperrors.Wrap(goerrors.Wrap(err, "select events"), apperrors.ErrorTypeDatabase, "query events")
	}
	defer rows.Close()
	var out []StoredEvent
	for rows.Next() {
		var e StoredEvent
		if err := rows.Scan(&e.Seq, &e.Ts, &e.EventType, &e.ParentSeq, &e.CausedBySeq, &e.RunID, &e.Actor, &e.Payload, &e.SchemaV); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "scan event row")
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "iterate events")
	}
	return out, nil
}

func (s *PostgresStore) LatestSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM events`).Scan(&seq)
	if err != nil {
		return 0, apperrors.Wrap(goerrors.Wrap(err, "select max seq"), apperrors.ErrorTypeDatabase, "latest_seq")
	}
	return seq, nil
}

// Subscribe starts a dedicated LISTEN connection and relays nudges on the
// returned channel. The receive loop is the sole goroutine touching the
// dedicated connection, mirroring the single-writer discipline a pgx LISTEN
// connection requires.
func (s *PostgresStore) Subscribe(ctx context.Context) (<-chan int64, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, apperrors.Wrap(goerrors.Wrap(err, "acquire pool connection"), apperrors.ErrorTypeDatabase, "acquire listen connection")
	}
	if _, err := conn.Exec(ctx, "LISTEN events"); err != nil {
		conn.Release()
		return nil, apperrors.Wrap(goerrors.Wrap(err, "listen exec"), apperrors.ErrorTypeDatabase, "listen")
	}

	out := make(chan int64, 64)
	go func() {
		defer conn.Release()
		defer close(out)
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				return // context cancelled, or connection lost — caller polls to catch up
			}
			var seq int64
			if _, err := fmt.Sscan(n.Payload, &seq); err != nil {
				continue
			}
			select {
			case out <- seq:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
