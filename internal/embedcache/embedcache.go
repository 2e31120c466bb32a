// Package embedcache implements the run-scoped vector index described in
// spec.md §4.3: an in-memory nearest-neighbor lookup over node embeddings,
// used to detect duplicate and cross-source-matching signals within a run.
package embedcache

import (
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/fourthplaces/rootsignal/internal/types"
)

// Entry is one indexed embedding alongside the node it identifies.
type Entry struct {
	Embedding []float32
	NodeID    uuid.UUID
	NodeType  types.NodeType
	URL       string
}

// Match is the result of a similarity lookup.
type Match struct {
	Entry      Entry
	Similarity float64
}

// Cache is the run-scoped embedding index. It is the one exception to "no
// state mutation outside the reducer" spec.md §4.3 calls out: every entry is
// reconstructable from the event stream, so interior mutability here costs
// nothing in determinism.
type Cache struct {
	mu      sync.RWMutex
	entries []Entry
}

func New() *Cache {
	return &Cache{}
}

// Add indexes an embedding against its producing node.
func (c *Cache) Add(embedding []float32, nodeID uuid.UUID, nodeType types.NodeType, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, Entry{Embedding: embedding, NodeID: nodeID, NodeType: nodeType, URL: url})
}

// FindMatch returns the highest-similarity entry at or above threshold, if
// any. Ties are broken by insertion order (earliest wins), giving
// deterministic behavior across runs replaying the same event stream.
func (c *Cache) FindMatch(embedding []float32, threshold float64) (Match, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var best Match
	found := false
	for _, e := range c.entries {
		sim := cosineSimilarity(embedding, e.Embedding)
		if sim >= threshold && (!found || sim > best.Similarity) {
			best = Match{Entry: e, Similarity: sim}
			found = true
		}
	}
	return best, found
}

// Len reports how many embeddings are currently indexed, used by tests and
// per-run stats.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
