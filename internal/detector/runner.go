package detector

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ignite/opportunity-engine/internal/domain"
	"github.com/ignite/opportunity-engine/internal/metrics"
)

// Lookback windows per cadence layer, in periods. Bounded so per-entity
// latency stays predictable regardless of history length.
const (
	fastLookbackDays       = 40 // room for a 28-period baseline plus gaps
	trendLookbackWeeks     = 26
	strategicLookbackMonth = 24 // two years for same-month-last-year
)

// Skip records why a detector did not produce findings for an entity.
type Skip struct {
	DetectorID string `json:"detector_id"`
	EntityID   string `json:"entity_id,omitempty"`
	Reason     string `json:"reason"`
}

// RunResult is the outcome of running one organization's detection.
// Partial results are normal: skipped detector/entity pairs are reported
// rather than failing the run.
type RunResult struct {
	OrganizationID string                `json:"organization_id"`
	Layers         []domain.CadenceLayer `json:"layers"`
	Findings       []domain.Finding      `json:"findings"`
	Skipped        []Skip                `json:"skipped,omitempty"`
	StartedAt      time.Time             `json:"started_at"`
	Duration       time.Duration         `json:"duration"`
}

// Runner executes active detectors against metric snapshots.
type Runner struct {
	registry   *Registry
	store      metrics.Store
	thresholds Thresholds

	// maxConcurrentOrgs bounds parallel organizations in RunMany.
	maxConcurrentOrgs int

	now func() time.Time
}

// NewRunner creates a runner over the registry and metric store.
func NewRunner(registry *Registry, store metrics.Store, thresholds Thresholds) *Runner {
	return &Runner{
		registry:          registry,
		store:             store,
		thresholds:        thresholds.withDefaults(),
		maxConcurrentOrgs: 4,
		now:               time.Now,
	}
}

// SetMaxConcurrentOrgs adjusts the organization-level parallelism bound.
func (r *Runner) SetMaxConcurrentOrgs(n int) {
	if n > 0 {
		r.maxConcurrentOrgs = n
	}
}

// Run executes the given cadence layers for one organization. Detector
// units are independent: a detector failing on one entity is logged and
// skipped without aborting the batch.
func (r *Runner) Run(ctx context.Context, orgID string, layers ...domain.CadenceLayer) (RunResult, error) {
	if orgID == "" {
		return RunResult{}, fmt.Errorf("detector: run requires an organization id")
	}
	if len(layers) == 0 {
		layers = domain.AllLayers()
	}
	for _, l := range layers {
		if !domain.ValidLayer(l) {
			return RunResult{}, fmt.Errorf("detector: unknown cadence layer %q", l)
		}
	}

	started := r.now()
	result := RunResult{OrganizationID: orgID, Layers: layers, StartedAt: started}

	for _, layer := range layers {
		findings, skips, err := r.runLayer(ctx, orgID, layer)
		if err != nil {
			// A layer whose metric query fails is reported as skipped;
			// other layers still run (partial results over no results).
			log.Printf("[runner] org=%s layer=%s query failed: %v", orgID, layer, err)
			result.Skipped = append(result.Skipped, Skip{
				DetectorID: "*",
				Reason:     fmt.Sprintf("layer %s: metric query failed: %v", layer, err),
			})
			continue
		}
		result.Findings = append(result.Findings, findings...)
		result.Skipped = append(result.Skipped, skips...)
	}

	result.Duration = r.now().Sub(started)
	return result, nil
}

// runLayer queries one immutable window of metric points for the layer
// and evaluates every active detector against every eligible entity.
func (r *Runner) runLayer(ctx context.Context, orgID string, layer domain.CadenceLayer) ([]domain.Finding, []Skip, error) {
	active := r.registry.Active(layer)
	if len(active) == 0 {
		return nil, nil, nil
	}

	granularity := layer.Granularity()
	from, to := r.window(layer)

	points, err := r.store.Query(ctx, metrics.QueryParams{
		OrganizationID: orgID,
		MetricNames:    r.registry.RequiredMetrics(layer),
		From:           from,
		To:             to,
		Granularity:    granularity,
	})
	if err != nil {
		return nil, nil, err
	}

	snapshots := metrics.BuildSnapshots(points, granularity)

	var findings []domain.Finding
	var skips []Skip
	for _, d := range active {
		for _, snap := range snapshots {
			if !snap.HasAll(d.RequiredMetrics) {
				skips = append(skips, Skip{
					DetectorID: d.ID,
					EntityID:   snap.EntityID,
					Reason:     "missing required metrics",
				})
				continue
			}
			out, err := r.invoke(d, snap)
			if err != nil {
				log.Printf("[runner] org=%s detector=%s entity=%s failed: %v", orgID, d.ID, snap.EntityID, err)
				skips = append(skips, Skip{
					DetectorID: d.ID,
					EntityID:   snap.EntityID,
					Reason:     fmt.Sprintf("detector failure: %v", err),
				})
				continue
			}
			findings = append(findings, out...)
		}
	}
	return findings, skips, nil
}

// invoke runs one detector against one entity, converting a panic into
// an error so a single bad detector x entity pair never aborts a batch.
func (r *Runner) invoke(d Detector, snap metrics.EntitySnapshot) (out []domain.Finding, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out = nil
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return d.Run(snap, r.thresholds), nil
}

// window computes the metric query range for a layer.
func (r *Runner) window(layer domain.CadenceLayer) (time.Time, time.Time) {
	to := r.now().UTC().Truncate(24 * time.Hour)
	switch layer {
	case domain.LayerTrend:
		return to.AddDate(0, 0, -7*trendLookbackWeeks), to
	case domain.LayerStrategic:
		return to.AddDate(0, -strategicLookbackMonth, 0), to
	default:
		return to.AddDate(0, 0, -fastLookbackDays), to
	}
}

// RunMany runs detection for several organizations in parallel with a
// bounded worker pool. Each organization is a bulkhead: one failing or
// panicking run never affects the others. Results are keyed by
// organization id; an organization whose run errored maps to a result
// whose Skipped explains the failure.
func (r *Runner) RunMany(ctx context.Context, orgIDs []string, layers ...domain.CadenceLayer) map[string]RunResult {
	results := make(map[string]RunResult, len(orgIDs))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, r.maxConcurrentOrgs)

	for _, orgID := range orgIDs {
		wg.Add(1)
		go func(orgID string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			defer func() {
				if rec := recover(); rec != nil {
					log.Printf("[runner] org=%s run panicked: %v", orgID, rec)
					mu.Lock()
					results[orgID] = RunResult{
						OrganizationID: orgID,
						Skipped:        []Skip{{DetectorID: "*", Reason: fmt.Sprintf("run panicked: %v", rec)}},
					}
					mu.Unlock()
				}
			}()

			res, err := r.Run(ctx, orgID, layers...)
			if err != nil {
				res = RunResult{
					OrganizationID: orgID,
					Skipped:        []Skip{{DetectorID: "*", Reason: err.Error()}},
				}
			}
			mu.Lock()
			results[orgID] = res
			mu.Unlock()
		}(orgID)
	}

	wg.Wait()
	return results
}
