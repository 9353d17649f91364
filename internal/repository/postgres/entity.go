package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/opportunity-engine/internal/domain"
	"github.com/ignite/opportunity-engine/internal/entity"
)

// EntityRepo implements entity.MappingStore against PostgreSQL.
type EntityRepo struct{ db *sql.DB }

// NewEntityRepo creates a Postgres-backed entity mapping repository.
func NewEntityRepo(db *sql.DB) *EntityRepo { return &EntityRepo{db: db} }

func (r *EntityRepo) GetMapping(ctx context.Context, orgID, sourceSystem, sourceEntityID string) (*domain.SourceMapping, error) {
	m := &domain.SourceMapping{}
	var metadata []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT canonical_entity_id, organization_id, source_system, source_entity_id,
		       COALESCE(source_metadata, '{}'), created_at
		FROM engine_entity_mappings
		WHERE organization_id = $1 AND source_system = $2 AND source_entity_id = $3
	`, orgID, sourceSystem, sourceEntityID).Scan(
		&m.CanonicalEntityID, &m.OrganizationID, &m.SourceSystem, &m.SourceEntityID,
		&metadata, &m.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get mapping: %w", err)
	}
	if err := json.Unmarshal(metadata, &m.SourceMetadata); err != nil {
		return nil, fmt.Errorf("decode mapping metadata: %w", err)
	}
	return m, nil
}

func (r *EntityRepo) ListMappings(ctx context.Context, orgID string, entityType domain.EntityType) ([]domain.SourceMapping, error) {
	q := `
		SELECT m.canonical_entity_id, m.organization_id, m.source_system, m.source_entity_id,
		       COALESCE(m.source_metadata, '{}'), m.created_at
		FROM engine_entity_mappings m`
	args := []interface{}{orgID}
	if entityType != "" {
		q += `
		JOIN engine_entities e ON e.id = m.canonical_entity_id
		WHERE m.organization_id = $1 AND e.entity_type = $2`
		args = append(args, string(entityType))
	} else {
		q += `
		WHERE m.organization_id = $1`
	}
	q += `
		ORDER BY m.created_at ASC, m.source_entity_id ASC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	defer rows.Close()

	var out []domain.SourceMapping
	for rows.Next() {
		var m domain.SourceMapping
		var metadata []byte
		if err := rows.Scan(
			&m.CanonicalEntityID, &m.OrganizationID, &m.SourceSystem, &m.SourceEntityID,
			&metadata, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan mapping: %w", err)
		}
		if err := json.Unmarshal(metadata, &m.SourceMetadata); err != nil {
			return nil, fmt.Errorf("decode mapping metadata: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *EntityRepo) CreateEntity(ctx context.Context, e domain.CanonicalEntity) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO engine_entities (id, organization_id, entity_type, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO NOTHING
	`, e.ID, e.OrganizationID, string(e.Type))
	if err != nil {
		return fmt.Errorf("create entity: %w", err)
	}
	return nil
}

// CreateMapping inserts a source binding. The unique index on
// (organization_id, source_system, source_entity_id) is what makes
// concurrent resolvers converge: the loser gets ErrMappingExists and
// re-reads the winner's mapping.
func (r *EntityRepo) CreateMapping(ctx context.Context, m domain.SourceMapping) error {
	metadata, err := json.Marshal(m.SourceMetadata)
	if err != nil {
		return fmt.Errorf("encode mapping metadata: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO engine_entity_mappings
			(canonical_entity_id, organization_id, source_system, source_entity_id, source_metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, m.CanonicalEntityID, m.OrganizationID, m.SourceSystem, m.SourceEntityID, metadata)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return entity.ErrMappingExists
	}
	if err != nil {
		return fmt.Errorf("create mapping: %w", err)
	}
	return nil
}
