// Package scheduler decides which sources to scrape in a given run, per
// spec.md §4.5: a weight-derived cadence partitions sources into due and
// not-due, a small exploration slice samples stale low-weight sources, and
// the result is further split by source role into tension/response phases.
package scheduler

import (
	"math"
	"sort"
	"time"

	"github.com/fourthplaces/rootsignal/internal/events"
	"github.com/fourthplaces/rootsignal/internal/types"
)

// ScheduleReason records why a source was picked.
type ScheduleReason string

const (
	ReasonCadence      ScheduleReason = "cadence"
	ReasonNeverScraped ScheduleReason = "never_scraped"
	ReasonExploration  ScheduleReason = "exploration"
)

type ScheduledSource struct {
	CanonicalKey string
	Reason       ScheduleReason
}

// Result is the output of a single scheduling pass.
type Result struct {
	Scheduled    []ScheduledSource
	Exploration  []ScheduledSource
	Skipped      int
	TensionPhase []string
	ResponsePhase []string
}

// Scheduler partitions registered sources into what to scrape this run.
type Scheduler struct {
	explorationRatio          float64
	explorationWeightThreshold float64
	explorationMinStaleDays   int64
}

// New returns a Scheduler with spec.md's default policy (10% exploration
// ratio, 0.3 weight threshold, 14-day staleness floor).
func New() *Scheduler {
	return &Scheduler{
		explorationRatio:           0.10,
		explorationWeightThreshold: 0.3,
		explorationMinStaleDays:    14,
	}
}

// NewWithPolicy allows an operator-tunable exploration ratio (the knob
// spec.md's config section calls out as hot-reloadable).
func NewWithPolicy(explorationRatio, explorationWeightThreshold float64, explorationMinStaleDays int64) *Scheduler {
	return &Scheduler{
		explorationRatio:           explorationRatio,
		explorationWeightThreshold: explorationWeightThreshold,
		explorationMinStaleDays:    explorationMinStaleDays,
	}
}

// Schedule partitions sources into scheduled, exploration, and skipped, then
// splits the selected set by source role into tension/response phases.
func (s *Scheduler) Schedule(sources []events.SourceNode, lastScraped map[string]*time.Time, now time.Time) Result {
	var scheduled []ScheduledSource
	var explorationCandidates []events.SourceNode
	skipped := 0

	for _, src := range sources {
		last := lastScraped[src.CanonicalKey]
		if s.shouldScrape(src, last, now) {
			reason := ReasonCadence
			if last == nil {
				reason = ReasonNeverScraped
			}
			scheduled = append(scheduled, ScheduledSource{CanonicalKey: src.CanonicalKey, Reason: reason})
		} else if s.isExplorationCandidate(src, last, now) {
			explorationCandidates = append(explorationCandidates, src)
		} else {
			skipped++
		}
	}

	totalSlots := len(scheduled) + len(explorationCandidates)
	explorationSlots := 0
	if len(explorationCandidates) > 0 {
		explorationSlots = int(math.Ceil(float64(totalSlots) * s.explorationRatio))
		if explorationSlots < 1 {
			explorationSlots = 1
		}
	}

	sort.SliceStable(explorationCandidates, func(i, j int) bool {
		return staleDays(explorationCandidates[i], lastScraped, now) > staleDays(explorationCandidates[j], lastScraped, now)
	})
	if explorationSlots > len(explorationCandidates) {
		explorationSlots = len(explorationCandidates)
	}

	var exploration []ScheduledSource
	for _, src := range explorationCandidates[:explorationSlots] {
		exploration = append(exploration, ScheduledSource{CanonicalKey: src.CanonicalKey, Reason: ReasonExploration})
	}

	roleByKey := make(map[string]types.SourceRole, len(sources))
	for _, src := range sources {
		roleByKey[src.CanonicalKey] = src.SourceRole
	}

	var tensionPhase, responsePhase []string
	for _, sel := range scheduled {
		partitionByRole(sel.CanonicalKey, roleByKey, &tensionPhase, &responsePhase)
	}
	for _, sel := range exploration {
		partitionByRole(sel.CanonicalKey, roleByKey, &tensionPhase, &responsePhase)
	}

	return Result{
		Scheduled:     scheduled,
		Exploration:   exploration,
		Skipped:       skipped,
		TensionPhase:  tensionPhase,
		ResponsePhase: responsePhase,
	}
}

func partitionByRole(key string, roleByKey map[string]types.SourceRole, tension, response *[]string) {
	role, ok := roleByKey[key]
	if !ok {
		role = types.RoleMixed
	}
	if role == types.RoleResponse {
		*response = append(*response, key)
	} else {
		*tension = append(*tension, key)
	}
}

func staleDays(src events.SourceNode, lastScraped map[string]*time.Time, now time.Time) int64 {
	last := lastScraped[src.CanonicalKey]
	if last == nil {
		return math.MaxInt64
	}
	return int64(now.Sub(*last).Hours() / 24)
}

func (s *Scheduler) shouldScrape(src events.SourceNode, last *time.Time, now time.Time) bool {
	if last == nil {
		return true
	}
	cadence := CadenceHoursForWeight(src.Weight)
	if src.CadenceHoursOverride != nil {
		cadence = *src.CadenceHoursOverride
	}
	hoursSince := now.Sub(*last).Hours()
	return hoursSince >= cadence
}

func (s *Scheduler) isExplorationCandidate(src events.SourceNode, last *time.Time, now time.Time) bool {
	if src.Weight >= s.explorationWeightThreshold {
		return false
	}
	if last == nil {
		return true
	}
	days := int64(now.Sub(*last).Hours() / 24)
	return days >= s.explorationMinStaleDays
}

// CadenceHoursForWeight maps a source's weight to its scrape cadence.
func CadenceHoursForWeight(weight float64) float64 {
	switch {
	case weight > 0.8:
		return 6
	case weight > 0.5:
		return 24
	case weight > 0.2:
		return 72
	default:
		return 168
	}
}

// WeightInputs are the rolling per-source metrics compute_weight folds into
// a single scalar, recomputed once per run (spec.md §4.5).
type WeightInputs struct {
	SignalsProduced     uint32
	SignalsCorroborated uint32
	ScrapeCount         uint32
	TensionCount        uint32
	LastProducedSignal  *time.Time
}

// ComputeWeight implements the Bayesian-smoothed yield formula from
// spec.md §4.5: base_yield × tension_bonus × recency_factor ×
// diversity_factor, clamped to [0.1, 1.0].
func ComputeWeight(in WeightInputs, now time.Time) float64 {
	const priorYield = 0.3
	const k = 3.0

	n := float64(in.ScrapeCount)
	actualYield := 0.0
	if in.ScrapeCount > 0 {
		actualYield = math.Min(float64(in.SignalsProduced)/float64(in.ScrapeCount), 1.0)
	}
	baseYield := actualYield
	if n < 5.0 {
		baseYield = (actualYield*n + priorYield*k) / (n + k)
	}

	tensionBonus := 1.0
	if in.SignalsProduced > 0 {
		tensionBonus = math.Min(1.0+float64(in.TensionCount)/float64(in.SignalsProduced), 2.0)
	}

	recencyFactor := 0.7
	if in.LastProducedSignal != nil {
		days := now.Sub(*in.LastProducedSignal).Hours() / 24
		if days < 30 {
			recencyFactor = 1.0
		} else {
			recencyFactor = math.Max(0.5, 1.0-(days-30)/60.0)
		}
	}

	diversityFactor := 1.0
	if in.SignalsProduced > 0 && in.SignalsCorroborated > 0 {
		ratio := float64(in.SignalsCorroborated) / float64(in.SignalsProduced)
		diversityFactor = 1.0 + math.Min(ratio*0.5, 0.5)
	}

	raw := baseYield * tensionBonus * recencyFactor * diversityFactor
	return clamp(raw, 0.1, 1.0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
