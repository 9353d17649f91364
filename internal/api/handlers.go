package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/opportunity-engine/internal/detector"
	"github.com/ignite/opportunity-engine/internal/domain"
	"github.com/ignite/opportunity-engine/internal/opportunity"
	"github.com/ignite/opportunity-engine/internal/pkg/httputil"
	"github.com/ignite/opportunity-engine/internal/scoring"
	"github.com/ignite/opportunity-engine/internal/storage"
)

// Handlers holds the API dependencies. Archive and cooldown cache are
// optional; nil disables them.
type Handlers struct {
	store     opportunity.Store
	runner    *detector.Runner
	scorer    *scoring.Scorer
	registry  *detector.Registry
	archive   *storage.RunArchive
	cooldowns *opportunity.CooldownCache

	startTime time.Time
}

// NewHandlers wires the API over the engine components.
func NewHandlers(store opportunity.Store, runner *detector.Runner, scorer *scoring.Scorer, registry *detector.Registry) *Handlers {
	return &Handlers{
		store:     store,
		runner:    runner,
		scorer:    scorer,
		registry:  registry,
		startTime: time.Now(),
	}
}

// WithRunArchive enables S3 archiving of detection run reports.
func (h *Handlers) WithRunArchive(archive *storage.RunArchive) *Handlers {
	h.archive = archive
	return h
}

// WithCooldownCache enables the Redis dismissal-cooldown cache.
func (h *Handlers) WithCooldownCache(cache *opportunity.CooldownCache) *Handlers {
	h.cooldowns = cache
	return h
}

// HealthCheck reports basic liveness.
//
//	GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.startTime).Truncate(time.Second).String(),
	})
}

// ListOpportunities returns a page of opportunities ordered by potential
// impact descending, then detection time descending.
//
//	GET /api/opportunities?organization_id=&status=&category=&priority=&page=&limit=
func (h *Handlers) ListOpportunities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orgID := q.Get("organization_id")
	if orgID == "" {
		httputil.BadRequest(w, "organization_id is required")
		return
	}

	f := opportunity.Filter{
		OrganizationID: orgID,
		Status:         domain.OpportunityStatus(q.Get("status")),
		Category:       domain.Category(q.Get("category")),
		Priority:       domain.Priority(q.Get("priority")),
	}
	if f.Status != "" && !domain.ValidStatus(f.Status) {
		httputil.BadRequest(w, "unknown status")
		return
	}

	p := ParsePagination(r, opportunity.DefaultPageSize, opportunity.MaxPageSize)
	f.Page = p.Page
	f.Limit = p.Limit

	opps, err := h.store.List(r.Context(), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if opps == nil {
		opps = []domain.Opportunity{}
	}
	httputil.OK(w, PaginatedResponse{Data: opps, Page: p.Page, Limit: p.Limit, Count: len(opps)})
}

type statusUpdateRequest struct {
	Status domain.OpportunityStatus `json:"status"`
	Reason string                   `json:"reason"`
}

// UpdateOpportunityStatus applies a lifecycle transition.
//
//	POST /api/opportunities/{id}/status {"status": "...", "reason": "..."}
func (h *Handlers) UpdateOpportunityStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req statusUpdateRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	opp, err := h.store.UpdateStatus(r.Context(), id, req.Status, req.Reason)
	switch {
	case errors.Is(err, opportunity.ErrNotFound):
		httputil.NotFound(w, "opportunity not found")
		return
	case errors.Is(err, opportunity.ErrReasonRequired):
		httputil.BadRequest(w, "dismissal requires a reason")
		return
	case errors.Is(err, opportunity.ErrInvalidTransition):
		httputil.Error(w, http.StatusConflict, "invalid status transition")
		return
	case err != nil:
		httputil.InternalError(w, err)
		return
	}

	if req.Status == domain.StatusDismissed && h.cooldowns != nil {
		if err := h.cooldowns.MarkDismissed(r.Context(), opp.CooldownScope()); err != nil {
			log.Printf("[api] cooldown cache update failed: %v", err)
		}
	}
	httputil.OK(w, opp)
}

type detectRequest struct {
	OrganizationID string              `json:"organization_id"`
	CadenceLayer   domain.CadenceLayer `json:"cadence_layer,omitempty"`
}

// RunSummary is the response of an on-demand detection run.
type RunSummary struct {
	OrganizationID     string          `json:"organization_id"`
	TotalOpportunities int             `json:"total_opportunities"`
	PerCategoryCounts  map[string]int  `json:"per_category_counts"`
	Skipped            []detector.Skip `json:"skipped,omitempty"`
	DurationMS         int64           `json:"duration_ms"`
}

// RunDetection triggers an on-demand detection run. The run is
// idempotent: re-detections merge into existing "new" opportunities
// instead of duplicating them.
//
//	POST /api/detect {"organization_id": "...", "cadence_layer": "fast"}
func (h *Handlers) RunDetection(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.OrganizationID == "" {
		httputil.BadRequest(w, "organization_id is required")
		return
	}

	var layers []domain.CadenceLayer
	if req.CadenceLayer != "" {
		if !domain.ValidLayer(req.CadenceLayer) {
			httputil.BadRequest(w, "unknown cadence_layer")
			return
		}
		layers = []domain.CadenceLayer{req.CadenceLayer}
	}

	result, err := h.runner.Run(r.Context(), req.OrganizationID, layers...)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	summary := RunSummary{
		OrganizationID:    req.OrganizationID,
		PerCategoryCounts: make(map[string]int),
		Skipped:           result.Skipped,
		DurationMS:        result.Duration.Milliseconds(),
	}
	for _, opp := range h.scorer.BuildAll(result.Findings) {
		// Cheap cooldown pre-check; the store re-checks authoritatively.
		if h.cooldowns != nil {
			inCooldown, err := h.cooldowns.InCooldown(r.Context(), opp.CooldownScope())
			if err != nil {
				log.Printf("[api] cooldown cache check failed: %v", err)
			} else if inCooldown {
				continue
			}
		}
		outcome, err := h.store.Upsert(r.Context(), opp)
		if err != nil {
			httputil.InternalError(w, err)
			return
		}
		if outcome == opportunity.OutcomeSuppressed {
			continue
		}
		summary.TotalOpportunities++
		summary.PerCategoryCounts[string(opp.Category)]++
	}

	if h.archive != nil {
		report := storage.BuildRunReport(result, summary.TotalOpportunities, summary.PerCategoryCounts)
		// Archival is best-effort; the run already succeeded.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := h.archive.Save(ctx, report); err != nil {
				log.Printf("[api] run report archive failed: %v", err)
			}
		}()
	}

	httputil.OK(w, summary)
}

// ListDetectors returns the detector catalog with computed status.
//
//	GET /api/detectors
func (h *Handlers) ListDetectors(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]interface{}{
		"detectors": h.registry.List(),
	})
}
