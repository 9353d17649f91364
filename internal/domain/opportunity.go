package domain

import (
	"fmt"
	"time"
)

// OpportunityStatus is the lifecycle state of an opportunity.
// Transitions: new -> dismissed (requires reason) and new -> completed.
// Both targets are terminal.
type OpportunityStatus string

const (
	StatusNew       OpportunityStatus = "new"
	StatusDismissed OpportunityStatus = "dismissed"
	StatusCompleted OpportunityStatus = "completed"
)

// ValidStatus reports whether s is a known lifecycle status.
func ValidStatus(s OpportunityStatus) bool {
	switch s {
	case StatusNew, StatusDismissed, StatusCompleted:
		return true
	}
	return false
}

// Priority buckets the weighted score for presentation.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Opportunity is a scored, actionable finding surfaced to the end user,
// with a lifecycle independent of the detection that created it.
type Opportunity struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	Category       Category   `json:"category"`
	Type           string     `json:"type"`
	DetectorID     string     `json:"detector_id"`
	EntityID       string     `json:"entity_id"`
	EntityType     EntityType `json:"entity_type"`

	Title       string             `json:"title"`
	Description string             `json:"description"`
	Hypothesis  string             `json:"hypothesis,omitempty"`
	Evidence    map[string]float64 `json:"evidence"`
	Metrics     []string           `json:"metrics"`

	ConfidenceScore      float64 `json:"confidence_score"`       // [0,1]
	PotentialImpactScore float64 `json:"potential_impact_score"` // >= 0, unbounded
	UrgencyScore         float64 `json:"urgency_score"`          // [0,1]

	Priority           Priority          `json:"priority"`
	Status             OpportunityStatus `json:"status"`
	StatusReason       string            `json:"status_reason,omitempty"`
	RecommendedActions []string          `json:"recommended_actions"`

	DetectedAt    time.Time `json:"detected_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	DataPeriodEnd time.Time `json:"data_period_end"`
}

// IdempotencyKey identifies "the same underlying finding" across repeated
// detection runs. Re-detections with an equal key must merge into the
// existing open record instead of inserting a duplicate.
func (o Opportunity) IdempotencyKey() string {
	return IdempotencyKey(o.OrganizationID, o.Category, o.EntityID, o.DetectorID, o.DataPeriodEnd)
}

// IdempotencyKey builds the dedup key for an opportunity. The period end
// is truncated to the day so intra-day re-runs collide as intended.
func IdempotencyKey(orgID string, category Category, entityID, detectorID string, periodEnd time.Time) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s",
		orgID, category, entityID, detectorID, periodEnd.UTC().Format("2006-01-02"))
}

// CooldownScope identifies the underlying condition a dismissal silences.
// It deliberately excludes the data period: a condition the user dismissed
// keeps producing fresh period ends while it persists, and those must not
// resurrect the nag during the cooldown window.
func (o Opportunity) CooldownScope() string {
	return CooldownScope(o.OrganizationID, o.Category, o.EntityID, o.DetectorID)
}

// CooldownScope builds the dismissal-cooldown key.
func CooldownScope(orgID string, category Category, entityID, detectorID string) string {
	return fmt.Sprintf("%s|%s|%s|%s", orgID, category, entityID, detectorID)
}
