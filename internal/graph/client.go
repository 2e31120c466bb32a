// Package graph wraps FalkorDB (a Redis-module property graph queried with
// Cypher) as the backing store for the Graph Projector (spec.md §4.9). The
// original system used Neo4j; FalkorDB is the nearest available substitute
// in the example pack and preserves the same MERGE-based idempotent upsert
// semantics the projector relies on (see DESIGN.md for the full rationale).
package graph

import (
	"context"
	"time"

	"github.com/FalkorDB/falkordb-go/v2"
	goerrors "github.com/go-faster/errors"

	"github.com/fourthplaces/rootsignal/internal/apperrors"
)

// QueryResult is the flattened shape this package hands back to callers,
// decoupling them from the falkordb package's own result type.
type QueryResult struct {
	Columns []string
	Rows    [][]any
	Stats   QueryStats
}

type QueryStats struct {
	NodesCreated         int
	NodesDeleted         int
	RelationshipsCreated int
	RelationshipsDeleted int
	PropertiesSet        int
	LabelsAdded          int
	ExecutionTime        time.Duration
}

// Client is the minimal interface the projector and enrichment pass need
// over a graph database.
type Client interface {
	Connect(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error
	Query(ctx context.Context, cypher string, params map[string]any) (*QueryResult, error)
}

type Config struct {
	Addr      string
	Password  string
	GraphName string
	PoolSize  int
}

func DefaultConfig() Config {
	return Config{Addr: "localhost:6379", GraphName: "rootsignal", PoolSize: 10}
}

type falkorClient struct {
	cfg   Config
	db    *falkordb.FalkorDB
	graph *falkordb.Graph
}

func NewClient(cfg Config) Client {
	return &falkorClient{cfg: cfg}
}

func (c *falkorClient) Connect(_ context.Context) error {
	opts := &falkordb.ConnectionOption{
		Addr:     c.cfg.Addr,
		Password: c.cfg.Password,
		PoolSize: c.cfg.PoolSize,
	}
	db, err := falkordb.FalkorDBNew(opts)
	if err != nil {
		return apperrors.Wrap(goerrors.Wrap(err, "falkordb dial"), apperrors.ErrorTypeDatabase, "connect to FalkorDB")
	}
	c.db = db
	c.graph = db.SelectGraph(c.cfg.GraphName)
	return nil
}

func (c *falkorClient) Close() error {
	if c.db != nil && c.db.Conn != nil {
		return c.db.Conn.Close()
	}
	return nil
}

func (c *falkorClient) Ping(_ context.Context) error {
	if c.graph == nil {
		return apperrors.New(apperrors.ErrorTypeDatabase, "graph client not connected")
	}
	_, err := c.graph.Query("RETURN 1", nil, nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "ping FalkorDB")
	}
	return nil
}

func (c *falkorClient) Query(_ context.Context, cypher string, params map[string]any) (*QueryResult, error) {
	if c.graph == nil {
		return nil, apperrors.New(apperrors.ErrorTypeDatabase, "graph client not connected")
	}
	start := time.Now()
	result, err := c.graph.Query(cypher, params, nil)
	if err != nil {
		return nil, apperrors.Wrapf(goerrors.Wrap(err, "cypher exec"), apperrors.ErrorTypeDatabase, "execute query: %s", cypher)
	}

	qr := &QueryResult{Stats: QueryStats{ExecutionTime: time.Since(start)}}
	first := true
	for result.Next() {
		record := result.Record()
		if first {
			qr.Columns = record.Keys()
			first = false
		}
		qr.Rows = append(qr.Rows, record.Values())
	}
	qr.Stats.NodesCreated = result.NodesCreated()
	qr.Stats.NodesDeleted = result.NodesDeleted()
	qr.Stats.RelationshipsCreated = result.RelationshipsCreated()
	qr.Stats.RelationshipsDeleted = result.RelationshipsDeleted()
	qr.Stats.PropertiesSet = result.PropertiesSet()
	qr.Stats.LabelsAdded = result.LabelsAdded()
	return qr, nil
}
