package opportunity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/opportunity-engine/internal/domain"
	"github.com/ignite/opportunity-engine/internal/scoring"
)

// MemoryStore is the in-memory Store used by tests and single-node runs.
// It keeps superseded records so dismissal history survives re-detection.
type MemoryStore struct {
	mu        sync.RWMutex
	byID      map[string]domain.Opportunity
	byKey     map[string]string    // idempotency key -> latest record id
	dismissed map[string]time.Time // cooldown scope -> dismissal time

	cooldown time.Duration
	now      func() time.Time
}

// NewMemoryStore creates an empty store with the given dismissal
// cooldown; zero means DefaultCooldown.
func NewMemoryStore(cooldown time.Duration) *MemoryStore {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &MemoryStore{
		byID:      make(map[string]domain.Opportunity),
		byKey:     make(map[string]string),
		dismissed: make(map[string]time.Time),
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Upsert implements the idempotent merge discipline.
func (s *MemoryStore) Upsert(ctx context.Context, opp domain.Opportunity) (UpsertOutcome, error) {
	if opp.OrganizationID == "" || opp.EntityID == "" || opp.DetectorID == "" {
		return "", fmt.Errorf("upsert requires organization, entity, and detector ids")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()

	scope := opp.CooldownScope()
	if at, ok := s.dismissed[scope]; ok {
		if now.Sub(at) < s.cooldown {
			return OutcomeSuppressed, nil
		}
		delete(s.dismissed, scope)
	}

	key := opp.IdempotencyKey()
	if id, ok := s.byKey[key]; ok {
		existing := s.byID[id]
		switch existing.Status {
		case domain.StatusNew:
			s.byID[id] = refresh(existing, opp, now)
			return OutcomeRefreshed, nil
		case domain.StatusCompleted:
			// Already handled for this period; nothing to resurface.
			return OutcomeSuppressed, nil
		case domain.StatusDismissed:
			// Cooldown expired above: fall through to a fresh record.
		}
	}

	if opp.ID == "" {
		opp.ID = uuid.NewString()
	}
	opp.Status = domain.StatusNew
	opp.StatusReason = ""
	if opp.DetectedAt.IsZero() {
		opp.DetectedAt = now
	}
	opp.UpdatedAt = now
	s.byID[opp.ID] = opp
	s.byKey[key] = opp.ID
	return OutcomeInserted, nil
}

// refresh merges a re-detection into the existing open record: identity
// and detection time survive, evidence and scores are replaced.
func refresh(existing, incoming domain.Opportunity, now time.Time) domain.Opportunity {
	existing.Title = incoming.Title
	existing.Description = incoming.Description
	existing.Hypothesis = incoming.Hypothesis
	existing.Evidence = incoming.Evidence
	existing.Metrics = incoming.Metrics
	existing.ConfidenceScore = incoming.ConfidenceScore
	existing.PotentialImpactScore = incoming.PotentialImpactScore
	existing.UrgencyScore = incoming.UrgencyScore
	existing.Priority = incoming.Priority
	existing.RecommendedActions = incoming.RecommendedActions
	existing.UpdatedAt = now
	return existing
}

// Get fetches one opportunity by id.
func (s *MemoryStore) Get(ctx context.Context, id string) (domain.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	opp, ok := s.byID[id]
	if !ok {
		return domain.Opportunity{}, ErrNotFound
	}
	return opp, nil
}

// UpdateStatus applies a lifecycle transition.
func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, status domain.OpportunityStatus, reason string) (domain.Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	opp, ok := s.byID[id]
	if !ok {
		return domain.Opportunity{}, ErrNotFound
	}
	if err := ValidateTransition(opp.Status, status, reason); err != nil {
		return domain.Opportunity{}, err
	}

	now := s.now().UTC()
	opp.Status = status
	opp.StatusReason = reason
	opp.UpdatedAt = now
	s.byID[id] = opp

	if status == domain.StatusDismissed {
		s.dismissed[opp.CooldownScope()] = now
	}
	return opp, nil
}

// List returns filtered opportunities in presentation order.
func (s *MemoryStore) List(ctx context.Context, f Filter) ([]domain.Opportunity, error) {
	s.mu.RLock()
	var out []domain.Opportunity
	for _, opp := range s.byID {
		if f.Matches(opp) {
			out = append(out, opp)
		}
	}
	s.mu.RUnlock()

	scoring.Rank(out)

	start, end := f.PageBounds()
	if start >= len(out) {
		return nil, nil
	}
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], nil
}
