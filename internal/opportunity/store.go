// Package opportunity persists scored opportunities and enforces their
// lifecycle: idempotent upserts keyed on the detection tuple, the
// new -> dismissed/completed state machine, and the dismissal cooldown
// that keeps acknowledged conditions from nagging.
package opportunity

import (
	"context"
	"errors"
	"time"

	"github.com/ignite/opportunity-engine/internal/domain"
)

var (
	// ErrNotFound means no opportunity exists with the given id.
	ErrNotFound = errors.New("opportunity not found")

	// ErrInvalidTransition means the requested status change is not
	// allowed by the state machine. Terminal states are immutable.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrReasonRequired means a dismissal was attempted without a reason.
	ErrReasonRequired = errors.New("dismissal requires a reason")
)

// Defaults for listing and the dismissal cooldown.
const (
	DefaultCooldown = 14 * 24 * time.Hour

	DefaultPageSize = 100
	MaxPageSize     = 500
)

// UpsertOutcome says what an idempotent upsert did.
type UpsertOutcome string

const (
	// OutcomeInserted means a fresh record was created.
	OutcomeInserted UpsertOutcome = "inserted"
	// OutcomeRefreshed means an existing "new" record absorbed the
	// re-detection's evidence and scores in place.
	OutcomeRefreshed UpsertOutcome = "refreshed"
	// OutcomeSuppressed means the record was dropped: the key is
	// completed for this period, or its scope is inside a dismissal
	// cooldown.
	OutcomeSuppressed UpsertOutcome = "suppressed"
)

// Filter narrows and pages a listing. Zero values mean "any".
type Filter struct {
	OrganizationID string
	Status         domain.OpportunityStatus
	Category       domain.Category
	Priority       domain.Priority

	// Page is 1-based; Limit defaults to DefaultPageSize and is capped
	// at MaxPageSize.
	Page  int
	Limit int
}

// PageBounds resolves the filter's paging to a half-open index range.
func (f Filter) PageBounds() (start, end int) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	start = (page - 1) * limit
	return start, start + limit
}

// Matches reports whether an opportunity passes the filter.
func (f Filter) Matches(o domain.Opportunity) bool {
	if f.OrganizationID != "" && o.OrganizationID != f.OrganizationID {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.Category != "" && o.Category != f.Category {
		return false
	}
	if f.Priority != "" && o.Priority != f.Priority {
		return false
	}
	return true
}

// Store is the lifecycle store contract. Implementations must guarantee
// at-most-one live "new" record per idempotency key via a conditional
// write on the key, never via external locking.
type Store interface {
	// Upsert applies the idempotent merge discipline for the
	// opportunity's key and reports what happened.
	Upsert(ctx context.Context, opp domain.Opportunity) (UpsertOutcome, error)

	// Get fetches one opportunity by id.
	Get(ctx context.Context, id string) (domain.Opportunity, error)

	// UpdateStatus applies a lifecycle transition and returns the
	// updated record. Violations return ErrInvalidTransition or
	// ErrReasonRequired.
	UpdateStatus(ctx context.Context, id string, status domain.OpportunityStatus, reason string) (domain.Opportunity, error)

	// List returns filtered opportunities ordered by potential impact
	// descending, then detected_at descending.
	List(ctx context.Context, f Filter) ([]domain.Opportunity, error)
}

// ValidateTransition enforces the state machine shared by every store
// implementation: new -> dismissed (reason required) and new -> completed
// only; dismissed and completed are terminal.
func ValidateTransition(from, to domain.OpportunityStatus, reason string) error {
	if !domain.ValidStatus(to) {
		return ErrInvalidTransition
	}
	if from != domain.StatusNew || to == domain.StatusNew {
		return ErrInvalidTransition
	}
	if to == domain.StatusDismissed && reason == "" {
		return ErrReasonRequired
	}
	return nil
}
