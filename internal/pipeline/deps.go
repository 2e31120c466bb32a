package pipeline

import (
	"github.com/fourthplaces/rootsignal/internal/classifier"
	"github.com/fourthplaces/rootsignal/internal/collaborators"
	"github.com/fourthplaces/rootsignal/internal/types"
)

// Region is the run's active geography: a center point plus a radius used
// to derive the bounding box that scopes vector dedup and cause-heat
// (spec.md §4.7, §4.10). A nil Region means the run is unscoped and dedup
// falls back to the global bounding box.
type Region struct {
	Center   types.GeoPoint
	RadiusKm float64
}

func (r *Region) BoundingBox() types.BoundingBox {
	if r == nil {
		return types.GlobalBoundingBox()
	}
	return types.BoundingBoxFromRadius(r.Center, r.RadiusKm)
}

// Deps bundles every external collaborator a pipeline handler may call,
// satisfying engine.Router's D type parameter. Handlers read these; apart
// from the stash helpers and embed cache that State documents as written
// directly by handlers, every effect is an emitted event.
type Deps struct {
	Ingestor     collaborators.Ingestor
	Extractor    collaborators.Extractor
	Embedder     collaborators.Embedder
	SignalReader collaborators.SignalReader
	Classifier   *classifier.Classifier

	Region              *Region
	DedupThreshold      float64
	PromoterMaxPerRun   int
}
