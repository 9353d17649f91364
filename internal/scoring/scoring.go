// Package scoring converts raw detector findings into scored, ranked
// opportunity records. Every formula here is a documented constant or a
// configured weight; nothing is a hidden heuristic.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/opportunity-engine/internal/detector"
	"github.com/ignite/opportunity-engine/internal/domain"
)

// Saturation constants for score normalization.
const (
	// fullEvidencePeriods is the sample size at which data completeness
	// is considered full, across granularities.
	fullEvidencePeriods = 12

	// sigmaSaturation is the deviation (in standard deviations) at which
	// statistical strength maxes out.
	sigmaSaturation = 4.0

	// runSaturation is the consecutive-period run length at which
	// trend strength maxes out.
	runSaturation = 6.0

	// impactHalfVolume is the metric volume at which the normalized
	// impact component reaches 0.5; impact saturates toward 1 above it.
	impactHalfVolume = 1000.0

	// recencyHorizonDays is how long a finding takes to decay from full
	// urgency to none, based on its data period end.
	recencyHorizonDays = 30.0
)

// Priority bucket boundaries over the weighted score.
const (
	priorityHighAt   = 0.66
	priorityMediumAt = 0.33
)

// Weights combines the three component scores into the priority score.
// They are normalized before use, so only their ratios matter.
type Weights struct {
	Confidence float64 `yaml:"confidence"`
	Impact     float64 `yaml:"impact"`
	Urgency    float64 `yaml:"urgency"`
}

// DefaultWeights favors impact slightly over confidence, with urgency as
// the tiebreaker.
func DefaultWeights() Weights {
	return Weights{Confidence: 0.35, Impact: 0.40, Urgency: 0.25}
}

// normalized scales the weights to sum to one, falling back to the
// defaults when unset or invalid.
func (w Weights) normalized() Weights {
	sum := w.Confidence + w.Impact + w.Urgency
	if sum <= 0 {
		return DefaultWeights()
	}
	return Weights{
		Confidence: w.Confidence / sum,
		Impact:     w.Impact / sum,
		Urgency:    w.Urgency / sum,
	}
}

// Scores holds the component and combined scores for one finding.
type Scores struct {
	Confidence float64 `json:"confidence"`
	// Impact is the raw volume at risk, unbounded.
	Impact float64 `json:"impact"`
	// ImpactNorm is the saturating [0,1] form used in the weighted score.
	ImpactNorm float64         `json:"impact_norm"`
	Urgency    float64         `json:"urgency"`
	Weighted   float64         `json:"weighted"`
	Priority   domain.Priority `json:"priority"`
}

// Scorer builds scored opportunities from findings, using the registry's
// title and action templates for presentation.
type Scorer struct {
	registry *detector.Registry
	weights  Weights

	now func() time.Time
}

// NewScorer creates a scorer with the given combination weights.
func NewScorer(registry *detector.Registry, weights Weights) *Scorer {
	return &Scorer{
		registry: registry,
		weights:  weights.normalized(),
		now:      time.Now,
	}
}

// Score computes the component scores for a finding.
//
// Confidence averages data completeness (sample size against a full
// evidence window) with statistical strength (deviation sigma for
// single-period findings, run length for trends, correlation strength
// for driver findings). Impact is the raw volume at risk; its weighted
// form saturates so a single whale metric cannot drown the combination.
// Urgency blends recency of the data period with trend acceleration: a
// fresh single-period spike is urgent, a decelerating old decline is not.
func (s *Scorer) Score(f domain.Finding) Scores {
	confidence := s.confidence(f)
	impactNorm := f.Volume / (f.Volume + impactHalfVolume)
	urgency := s.urgency(f)

	weighted := s.weights.Confidence*confidence +
		s.weights.Impact*impactNorm +
		s.weights.Urgency*urgency

	return Scores{
		Confidence: round3(confidence),
		Impact:     f.Volume,
		ImpactNorm: round3(impactNorm),
		Urgency:    round3(urgency),
		Weighted:   round3(weighted),
		Priority:   PriorityFor(weighted),
	}
}

func (s *Scorer) confidence(f domain.Finding) float64 {
	completeness := clamp01(float64(f.SampleSize) / fullEvidencePeriods)

	var strength float64
	switch {
	case f.Evidence["sigma"] > 0:
		strength = clamp01(f.Evidence["sigma"] / sigmaSaturation)
	case f.ConsecutivePeriods > 0:
		strength = clamp01(float64(f.ConsecutivePeriods) / runSaturation)
	case len(f.Drivers) > 0:
		strength = clamp01(math.Abs(f.Drivers[0].Strength))
	default:
		strength = clamp01(math.Abs(f.MagnitudePct) / 100)
	}

	return clamp01(0.5*completeness + 0.5*strength)
}

func (s *Scorer) urgency(f domain.Finding) float64 {
	ageDays := s.now().UTC().Sub(f.DataPeriodEnd.UTC()).Hours() / 24
	recency := clamp01(1 - ageDays/recencyHorizonDays)

	var accel float64
	switch f.Acceleration {
	case "accelerating":
		accel = 1.0
	case "steady":
		accel = 0.5
	case "decelerating":
		accel = 0.25
	default:
		// Single-period deviations carry no shape; they are recent by
		// construction and sit between steady and accelerating.
		accel = 0.75
	}

	return clamp01(0.6*recency + 0.4*accel)
}

// PriorityFor buckets a weighted score. Boundaries are inclusive so a
// score landing exactly on one classifies the same way on every run.
func PriorityFor(weighted float64) domain.Priority {
	switch {
	case weighted >= priorityHighAt:
		return domain.PriorityHigh
	case weighted >= priorityMediumAt:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}

// Build converts a finding into a full opportunity record with scores,
// presentation fields from the registry templates, and status "new".
func (s *Scorer) Build(f domain.Finding) domain.Opportunity {
	scores := s.Score(f)
	now := s.now().UTC()

	title := f.Summary
	var actions []string
	if d, ok := s.registry.Get(f.DetectorID); ok {
		if d.Title != "" {
			title = d.Title
		}
		if d.Action != "" {
			actions = append(actions, d.Action)
		}
	}

	evidence := make(map[string]float64, len(f.Evidence))
	for k, v := range f.Evidence {
		evidence[k] = v
	}

	metricSet := []string{f.Metric}
	seen := map[string]bool{f.Metric: true}
	for _, d := range f.Drivers {
		if !seen[d.Metric] {
			seen[d.Metric] = true
			metricSet = append(metricSet, d.Metric)
		}
	}

	var hypothesis string
	if len(f.Drivers) > 0 {
		top := f.Drivers[0]
		hypothesis = fmt.Sprintf("%s moves with %s at lag %d (strength %.2f); association only, not proven cause",
			top.Metric, f.Metric, top.Lag, top.Strength)
	}

	return domain.Opportunity{
		ID:             uuid.NewString(),
		OrganizationID: f.OrganizationID,
		Category:       f.Category,
		Type:           f.Type,
		DetectorID:     f.DetectorID,
		EntityID:       f.EntityID,
		EntityType:     f.EntityType,

		Title:       title,
		Description: f.Summary,
		Hypothesis:  hypothesis,
		Evidence:    evidence,
		Metrics:     metricSet,

		ConfidenceScore:      scores.Confidence,
		PotentialImpactScore: scores.Impact,
		UrgencyScore:         scores.Urgency,

		Priority:           scores.Priority,
		Status:             domain.StatusNew,
		RecommendedActions: actions,

		DetectedAt:    now,
		UpdatedAt:     now,
		DataPeriodEnd: f.DataPeriodEnd,
	}
}

// BuildAll scores and converts a batch of findings.
func (s *Scorer) BuildAll(findings []domain.Finding) []domain.Opportunity {
	out := make([]domain.Opportunity, 0, len(findings))
	for _, f := range findings {
		out = append(out, s.Build(f))
	}
	Rank(out)
	return out
}

// Rank orders opportunities for presentation: potential impact
// descending, then detected_at descending, then id for a stable total
// order.
func Rank(opps []domain.Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		if opps[i].PotentialImpactScore != opps[j].PotentialImpactScore {
			return opps[i].PotentialImpactScore > opps[j].PotentialImpactScore
		}
		if !opps[i].DetectedAt.Equal(opps[j].DetectedAt) {
			return opps[i].DetectedAt.After(opps[j].DetectedAt)
		}
		return opps[i].ID < opps[j].ID
	})
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
