package domain

import "time"

// Direction indicates which way a metric moved relative to its baseline.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Finding is the raw output of a detector before scoring. One detector
// invocation may emit zero or more findings for an entity.
type Finding struct {
	DetectorID     string       `json:"detector_id"`
	Category       Category     `json:"category"`
	Type           string       `json:"type"`
	OrganizationID string       `json:"organization_id"`
	EntityID       string       `json:"entity_id"`
	EntityType     EntityType   `json:"entity_type"`
	Metric         string       `json:"metric"`
	Direction      Direction    `json:"direction"`

	// Evidence holds the numbers that triggered the finding, e.g.
	// current, baseline, delta_pct, std_dev, consecutive_periods.
	Evidence map[string]float64 `json:"evidence"`

	// MagnitudePct is the deviation (or decline) size driving urgency
	// and confidence. Signed: negative means the metric fell.
	MagnitudePct float64 `json:"magnitude_pct"`

	// Volume is the absolute size of the affected metric over the
	// window (revenue at risk, session volume) for impact scoring.
	Volume float64 `json:"volume"`

	// SampleSize is the number of populated periods backing the finding.
	SampleSize int `json:"sample_size"`

	// ConsecutivePeriods counts sustained movement for trend findings;
	// zero or one for single-period deviations.
	ConsecutivePeriods int `json:"consecutive_periods,omitempty"`

	// Acceleration classifies trend shape: "accelerating",
	// "decelerating", "steady", or empty when not applicable.
	Acceleration string `json:"acceleration,omitempty"`

	// Drivers lists associated driver candidates from lagged
	// correlation, strongest first. Association only, never causal fact.
	Drivers []DriverCandidate `json:"drivers,omitempty"`

	Summary       string    `json:"summary"`
	DataPeriodEnd time.Time `json:"data_period_end"`
}

// DriverCandidate is a metric whose movement is associated with the
// finding's target metric at some lag. Strength is the Pearson
// correlation at that lag; it is reported as association, not causation.
type DriverCandidate struct {
	Metric   string  `json:"metric"`
	Lag      int     `json:"lag_periods"`
	Strength float64 `json:"strength"`
}
