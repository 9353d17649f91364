// Package entity implements the canonical entity resolver: the mapping
// from provider-specific identifiers to one organization-scoped canonical
// entity, so metrics from different sources about the same logical object
// can be joined.
package entity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ignite/opportunity-engine/internal/domain"
)

var (
	// ErrNotFound means no mapping exists for the source pair.
	ErrNotFound = errors.New("entity: mapping not found")
	// ErrMappingExists means the (source_system, source_entity_id) pair
	// is already bound to a canonical entity for the organization.
	ErrMappingExists = errors.New("entity: mapping already exists")
)

// MappingStore persists canonical entities and their source mappings.
// A (source_system, source_entity_id) pair maps to at most one canonical
// entity per organization; CreateMapping must reject a second binding
// with ErrMappingExists so concurrent resolvers converge on one entity.
type MappingStore interface {
	GetMapping(ctx context.Context, orgID, sourceSystem, sourceEntityID string) (*domain.SourceMapping, error)
	ListMappings(ctx context.Context, orgID string, entityType domain.EntityType) ([]domain.SourceMapping, error)
	CreateEntity(ctx context.Context, e domain.CanonicalEntity) error
	CreateMapping(ctx context.Context, m domain.SourceMapping) error
}

// MemoryStore is an in-memory MappingStore for tests and fixtures.
type MemoryStore struct {
	mu       sync.RWMutex
	entities map[string]domain.CanonicalEntity // by entity id
	mappings map[string]domain.SourceMapping   // by org|system|sourceID
	byOrg    map[string][]string               // org -> mapping keys, insertion order
}

// NewMemoryStore creates an empty in-memory mapping store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities: make(map[string]domain.CanonicalEntity),
		mappings: make(map[string]domain.SourceMapping),
		byOrg:    make(map[string][]string),
	}
}

func mappingKey(orgID, system, sourceID string) string {
	return orgID + "|" + system + "|" + sourceID
}

// GetMapping implements MappingStore.
func (s *MemoryStore) GetMapping(ctx context.Context, orgID, sourceSystem, sourceEntityID string) (*domain.SourceMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mappings[mappingKey(orgID, sourceSystem, sourceEntityID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := m
	return &cp, nil
}

// ListMappings implements MappingStore. entityType empty means all types.
func (s *MemoryStore) ListMappings(ctx context.Context, orgID string, entityType domain.EntityType) ([]domain.SourceMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.SourceMapping
	for _, key := range s.byOrg[orgID] {
		m := s.mappings[key]
		if entityType != "" {
			e, ok := s.entities[m.CanonicalEntityID]
			if !ok || e.Type != entityType {
				continue
			}
		}
		out = append(out, m)
	}
	return out, nil
}

// CreateEntity implements MappingStore.
func (s *MemoryStore) CreateEntity(ctx context.Context, e domain.CanonicalEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.entities[e.ID] = e
	return nil
}

// CreateMapping implements MappingStore.
func (s *MemoryStore) CreateMapping(ctx context.Context, m domain.SourceMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := mappingKey(m.OrganizationID, m.SourceSystem, m.SourceEntityID)
	if _, ok := s.mappings[key]; ok {
		return ErrMappingExists
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	s.mappings[key] = m
	s.byOrg[m.OrganizationID] = append(s.byOrg[m.OrganizationID], key)
	return nil
}

// Entity returns a stored canonical entity by id (test helper).
func (s *MemoryStore) Entity(id string) (domain.CanonicalEntity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	return e, ok
}
