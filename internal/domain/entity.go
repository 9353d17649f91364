package domain

import "time"

// EntityType classifies what a canonical entity represents.
type EntityType string

const (
	EntityPage      EntityType = "page"
	EntityCampaign  EntityType = "campaign"
	EntityKeyword   EntityType = "keyword"
	EntityProduct   EntityType = "product"
	EntityEmail     EntityType = "email"
	EntityRevenue   EntityType = "revenue"
	EntityAggregate EntityType = "aggregate"
	EntityDomain    EntityType = "domain"
)

// ValidEntityType reports whether t is a known entity type.
func ValidEntityType(t EntityType) bool {
	switch t {
	case EntityPage, EntityCampaign, EntityKeyword, EntityProduct,
		EntityEmail, EntityRevenue, EntityAggregate, EntityDomain:
		return true
	}
	return false
}

// CanonicalEntity is the organization-scoped, source-independent identity
// for a real-world object (a page, campaign, keyword, etc.). Entities are
// created lazily the first time a source references them and are never
// deleted, only merged by reference.
type CanonicalEntity struct {
	ID             string     `json:"id"`
	Type           EntityType `json:"type"`
	OrganizationID string     `json:"organization_id"`
	CreatedAt      time.Time  `json:"created_at"`
}

// SourceMapping links one provider-specific identifier to a canonical
// entity. A (source_system, source_entity_id) pair maps to at most one
// canonical entity per organization.
type SourceMapping struct {
	CanonicalEntityID string            `json:"canonical_entity_id"`
	OrganizationID    string            `json:"organization_id"`
	SourceSystem      string            `json:"source_system"`
	SourceEntityID    string            `json:"source_entity_id"`
	SourceMetadata    map[string]string `json:"source_metadata,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}
