package handlers

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/google/uuid"

	"github.com/fourthplaces/rootsignal/internal/collaborators"
	"github.com/fourthplaces/rootsignal/internal/types"
)

func TestHandlers(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Pipeline Handlers Suite")
}

// fakeIngestor returns all of its canned pages on every FetchSpecific call.
type fakeIngestor struct {
	pages []collaborators.RawPage
	err   error
}

func (f *fakeIngestor) Discover(ctx context.Context, cfg collaborators.DiscoverConfig) ([]collaborators.RawPage, error) {
	return nil, nil
}

func (f *fakeIngestor) FetchSpecific(ctx context.Context, urls []string) ([]collaborators.RawPage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pages, nil
}

// fakeExtractor returns one canned ExtractedSignals regardless of input.
type fakeExtractor struct {
	out collaborators.ExtractedSignals
	err error
}

func (f *fakeExtractor) Extract(ctx context.Context, content, sourceURL string, trust float64) (collaborators.ExtractedSignals, error) {
	if f.err != nil {
		return collaborators.ExtractedSignals{}, f.err
	}
	return f.out, nil
}

// fakeEmbedder returns a deterministic one-hot-ish vector per text, keyed by
// a caller-supplied lookup so tests can force specific cosine similarities.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors[text], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := f.vectors[t]
		if !ok {
			v = []float32{1, 0, 0}
		}
		out[i] = v
	}
	return out, nil
}

// fakeSignalReader is an in-memory stand-in for the graph's read side.
type fakeSignalReader struct {
	existingTitles    map[string][]string
	globalMatches     map[collaborators.TitleTypePair]uuid.UUID
	duplicate         *collaborators.DuplicateMatch
	corroborationCnt  int
	actorID           uuid.UUID
	actorFound        bool
}

func (f *fakeSignalReader) ExistingTitlesForURL(ctx context.Context, url string) ([]string, error) {
	return f.existingTitles[url], nil
}

func (f *fakeSignalReader) FindByTitlesAndTypes(ctx context.Context, pairs []collaborators.TitleTypePair) (map[collaborators.TitleTypePair]uuid.UUID, error) {
	out := map[collaborators.TitleTypePair]uuid.UUID{}
	for _, p := range pairs {
		if id, ok := f.globalMatches[p]; ok {
			out[p] = id
		}
	}
	return out, nil
}

func (f *fakeSignalReader) FindDuplicate(ctx context.Context, embedding []float32, nodeType types.NodeType, threshold float64, bbox types.BoundingBox) (collaborators.DuplicateMatch, bool, error) {
	if f.duplicate == nil {
		return collaborators.DuplicateMatch{}, false, nil
	}
	return *f.duplicate, true, nil
}

func (f *fakeSignalReader) ReadCorroborationCount(ctx context.Context, id uuid.UUID, nodeType types.NodeType) (int, error) {
	return f.corroborationCnt, nil
}

func (f *fakeSignalReader) FindActorByCanonicalKey(ctx context.Context, key string) (uuid.UUID, bool, error) {
	return f.actorID, f.actorFound, nil
}
