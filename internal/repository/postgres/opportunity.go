package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/opportunity-engine/internal/domain"
	"github.com/ignite/opportunity-engine/internal/opportunity"
)

// OpportunityRepo implements opportunity.Store against PostgreSQL. The
// at-most-one live "new" record per idempotency key guarantee comes from
// the unique index on idempotency_key plus a conditional
// ON CONFLICT ... DO UPDATE; no external locking.
type OpportunityRepo struct {
	db       *sql.DB
	cooldown time.Duration
}

// NewOpportunityRepo creates a Postgres-backed opportunity store; zero
// cooldown means opportunity.DefaultCooldown.
func NewOpportunityRepo(db *sql.DB, cooldown time.Duration) *OpportunityRepo {
	if cooldown <= 0 {
		cooldown = opportunity.DefaultCooldown
	}
	return &OpportunityRepo{db: db, cooldown: cooldown}
}

const opportunityColumns = `
	id, organization_id, category, opportunity_type, detector_id, entity_id, entity_type,
	title, description, COALESCE(hypothesis,''), evidence, metrics,
	confidence_score, potential_impact_score, urgency_score,
	priority, status, COALESCE(status_reason,''), recommended_actions,
	detected_at, updated_at, data_period_end`

// Upsert implements the idempotent merge discipline. A conflicting key
// whose record is still "new" absorbs the re-detection in place; a
// dismissed record past the cooldown is resurfaced as "new" under the
// same id (reported as refreshed); anything else is suppressed.
func (r *OpportunityRepo) Upsert(ctx context.Context, opp domain.Opportunity) (opportunity.UpsertOutcome, error) {
	if opp.OrganizationID == "" || opp.EntityID == "" || opp.DetectorID == "" {
		return "", fmt.Errorf("upsert requires organization, entity, and detector ids")
	}
	if opp.ID == "" {
		opp.ID = uuid.New().String()
	}

	cutoff := time.Now().UTC().Add(-r.cooldown)

	// Dismissals silence the whole condition, not just one period.
	var inCooldown bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM engine_opportunities
			WHERE organization_id = $1 AND category = $2 AND entity_id = $3 AND detector_id = $4
			  AND status = 'dismissed' AND updated_at > $5
		)
	`, opp.OrganizationID, string(opp.Category), opp.EntityID, opp.DetectorID, cutoff).Scan(&inCooldown)
	if err != nil {
		return "", fmt.Errorf("check dismissal cooldown: %w", err)
	}
	if inCooldown {
		return opportunity.OutcomeSuppressed, nil
	}

	evidence, err := json.Marshal(opp.Evidence)
	if err != nil {
		return "", fmt.Errorf("encode evidence: %w", err)
	}
	metricNames, err := json.Marshal(opp.Metrics)
	if err != nil {
		return "", fmt.Errorf("encode metrics: %w", err)
	}
	actions, err := json.Marshal(opp.RecommendedActions)
	if err != nil {
		return "", fmt.Errorf("encode actions: %w", err)
	}

	var inserted bool
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO engine_opportunities
			(id, organization_id, idempotency_key, category, opportunity_type, detector_id,
			 entity_id, entity_type, title, description, hypothesis, evidence, metrics,
			 confidence_score, potential_impact_score, urgency_score, priority,
			 status, recommended_actions, detected_at, updated_at, data_period_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		        $14, $15, $16, $17, 'new', $18, NOW(), NOW(), $19)
		ON CONFLICT (idempotency_key) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			hypothesis = EXCLUDED.hypothesis,
			evidence = EXCLUDED.evidence,
			metrics = EXCLUDED.metrics,
			confidence_score = EXCLUDED.confidence_score,
			potential_impact_score = EXCLUDED.potential_impact_score,
			urgency_score = EXCLUDED.urgency_score,
			priority = EXCLUDED.priority,
			status = 'new',
			status_reason = NULL,
			recommended_actions = EXCLUDED.recommended_actions,
			updated_at = NOW()
		WHERE engine_opportunities.status = 'new'
		   OR (engine_opportunities.status = 'dismissed' AND engine_opportunities.updated_at <= $20)
		RETURNING (xmax = 0)
	`, opp.ID, opp.OrganizationID, opp.IdempotencyKey(), string(opp.Category), opp.Type,
		opp.DetectorID, opp.EntityID, string(opp.EntityType), opp.Title, opp.Description,
		opp.Hypothesis, evidence, metricNames,
		opp.ConfidenceScore, opp.PotentialImpactScore, opp.UrgencyScore, string(opp.Priority),
		actions, opp.DataPeriodEnd, cutoff).Scan(&inserted)
	if err == sql.ErrNoRows {
		// Conflicted with a terminal record for this period.
		return opportunity.OutcomeSuppressed, nil
	}
	if err != nil {
		return "", fmt.Errorf("upsert opportunity: %w", err)
	}
	if inserted {
		return opportunity.OutcomeInserted, nil
	}
	return opportunity.OutcomeRefreshed, nil
}

// Get fetches one opportunity by id.
func (r *OpportunityRepo) Get(ctx context.Context, id string) (domain.Opportunity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+opportunityColumns+` FROM engine_opportunities WHERE id = $1`, id)
	opp, err := scanOpportunity(row)
	if err == sql.ErrNoRows {
		return domain.Opportunity{}, opportunity.ErrNotFound
	}
	if err != nil {
		return domain.Opportunity{}, fmt.Errorf("get opportunity: %w", err)
	}
	return opp, nil
}

// UpdateStatus applies a lifecycle transition with a conditional write:
// only a record still in "new" can move.
func (r *OpportunityRepo) UpdateStatus(ctx context.Context, id string, status domain.OpportunityStatus, reason string) (domain.Opportunity, error) {
	if !domain.ValidStatus(status) || status == domain.StatusNew {
		return domain.Opportunity{}, opportunity.ErrInvalidTransition
	}
	if status == domain.StatusDismissed && reason == "" {
		return domain.Opportunity{}, opportunity.ErrReasonRequired
	}

	row := r.db.QueryRowContext(ctx, `
		UPDATE engine_opportunities
		SET status = $1, status_reason = $2, updated_at = NOW()
		WHERE id = $3 AND status = 'new'
		RETURNING `+opportunityColumns,
		string(status), reason, id)
	opp, err := scanOpportunity(row)
	if err == sql.ErrNoRows {
		// Distinguish a missing record from an immutable terminal one.
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return domain.Opportunity{}, getErr
		}
		return domain.Opportunity{}, opportunity.ErrInvalidTransition
	}
	if err != nil {
		return domain.Opportunity{}, fmt.Errorf("update opportunity status: %w", err)
	}
	return opp, nil
}

// List returns filtered opportunities in presentation order: potential
// impact descending, then detected_at descending.
func (r *OpportunityRepo) List(ctx context.Context, f opportunity.Filter) ([]domain.Opportunity, error) {
	q := `SELECT ` + opportunityColumns + ` FROM engine_opportunities WHERE 1=1`
	args := []interface{}{}
	idx := 1
	add := func(clause string, val interface{}) {
		q += fmt.Sprintf(" AND %s = $%d", clause, idx)
		args = append(args, val)
		idx++
	}

	if f.OrganizationID != "" {
		add("organization_id", f.OrganizationID)
	}
	if f.Status != "" {
		add("status", string(f.Status))
	}
	if f.Category != "" {
		add("category", string(f.Category))
	}
	if f.Priority != "" {
		add("priority", string(f.Priority))
	}

	start, end := f.PageBounds()
	q += fmt.Sprintf(" ORDER BY potential_impact_score DESC, detected_at DESC, id ASC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, end-start, start)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list opportunities: %w", err)
	}
	defer rows.Close()

	var out []domain.Opportunity
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan opportunity: %w", err)
		}
		out = append(out, opp)
	}
	return out, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOpportunity(s scanner) (domain.Opportunity, error) {
	var opp domain.Opportunity
	var evidence, metricNames, actions []byte
	err := s.Scan(
		&opp.ID, &opp.OrganizationID, &opp.Category, &opp.Type, &opp.DetectorID,
		&opp.EntityID, &opp.EntityType,
		&opp.Title, &opp.Description, &opp.Hypothesis, &evidence, &metricNames,
		&opp.ConfidenceScore, &opp.PotentialImpactScore, &opp.UrgencyScore,
		&opp.Priority, &opp.Status, &opp.StatusReason, &actions,
		&opp.DetectedAt, &opp.UpdatedAt, &opp.DataPeriodEnd,
	)
	if err != nil {
		return domain.Opportunity{}, err
	}
	if err := json.Unmarshal(evidence, &opp.Evidence); err != nil {
		return domain.Opportunity{}, fmt.Errorf("decode evidence: %w", err)
	}
	if err := json.Unmarshal(metricNames, &opp.Metrics); err != nil {
		return domain.Opportunity{}, fmt.Errorf("decode metrics: %w", err)
	}
	if err := json.Unmarshal(actions, &opp.RecommendedActions); err != nil {
		return domain.Opportunity{}, fmt.Errorf("decode actions: %w", err)
	}
	return opp, nil
}
