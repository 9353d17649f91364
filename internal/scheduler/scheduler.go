// Package scheduler drives detection runs on the cadence layers'
// configured intervals: fast daily, trend weekly, strategic monthly.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/opportunity-engine/internal/config"
	"github.com/ignite/opportunity-engine/internal/detector"
	"github.com/ignite/opportunity-engine/internal/domain"
	"github.com/ignite/opportunity-engine/internal/opportunity"
	"github.com/ignite/opportunity-engine/internal/pkg/distlock"
	"github.com/ignite/opportunity-engine/internal/pkg/logger"
	"github.com/ignite/opportunity-engine/internal/scoring"
	"github.com/ignite/opportunity-engine/internal/storage"
)

// LockTTL bounds how long a crashed instance can hold a layer lock.
const LockTTL = 30 * time.Minute

// LockFactory builds a distributed lock for a cadence layer. Nil means
// single-instance deployment; runs proceed without locking.
type LockFactory func(layer domain.CadenceLayer) distlock.DistLock

// LayerSummary aggregates one scheduled run of a layer across all
// configured organizations.
type LayerSummary struct {
	Layer              domain.CadenceLayer `json:"layer"`
	Organizations      int                 `json:"organizations"`
	TotalOpportunities int                 `json:"total_opportunities"`
	Skipped            int                 `json:"skipped"`
}

// Scheduler runs the detector pipeline for every configured organization
// on each layer's interval.
type Scheduler struct {
	cfg       config.DetectionConfig
	runner    *detector.Runner
	scorer    *scoring.Scorer
	store     opportunity.Store
	archive   *storage.RunArchive
	locks     LockFactory
	cooldowns *opportunity.CooldownCache
}

// New creates a scheduler. Archive and lock factory are optional.
func New(cfg config.DetectionConfig, runner *detector.Runner, scorer *scoring.Scorer, store opportunity.Store) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		runner: runner,
		scorer: scorer,
		store:  store,
	}
}

// WithRunArchive enables S3 archiving of per-organization run reports.
func (s *Scheduler) WithRunArchive(archive *storage.RunArchive) *Scheduler {
	s.archive = archive
	return s
}

// WithLocks enables distributed locking so only one instance runs a
// layer at a time.
func (s *Scheduler) WithLocks(factory LockFactory) *Scheduler {
	s.locks = factory
	return s
}

// WithCooldownCache enables the Redis dismissal pre-check so
// re-detections of dismissed conditions skip the store round trip.
func (s *Scheduler) WithCooldownCache(cache *opportunity.CooldownCache) *Scheduler {
	s.cooldowns = cache
	return s
}

// Start launches one ticker goroutine per cadence layer and blocks until
// the context is canceled. Each layer also runs once at startup.
func (s *Scheduler) Start(ctx context.Context) {
	intervals := map[domain.CadenceLayer]time.Duration{
		domain.LayerFast:      s.cfg.FastInterval(),
		domain.LayerTrend:     s.cfg.TrendInterval(),
		domain.LayerStrategic: s.cfg.StrategicInterval(),
	}

	for layer, interval := range intervals {
		go s.loop(ctx, layer, interval)
	}
	<-ctx.Done()
}

func (s *Scheduler) loop(ctx context.Context, layer domain.CadenceLayer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunLayer(ctx, layer); err != nil {
			logger.Error("scheduled run failed", "layer", layer, "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunLayer executes one layer for every configured organization. When a
// lock factory is set and the lock is already held, the run is skipped
// silently; another instance is doing the work.
func (s *Scheduler) RunLayer(ctx context.Context, layer domain.CadenceLayer) (LayerSummary, error) {
	summary := LayerSummary{Layer: layer}
	if len(s.cfg.Organizations) == 0 {
		return summary, nil
	}

	if s.locks != nil {
		lock := s.locks(layer)
		acquired, err := lock.Acquire(ctx)
		if err != nil {
			return summary, fmt.Errorf("acquire %s lock: %w", layer, err)
		}
		if !acquired {
			logger.Info("layer lock held elsewhere, skipping", "layer", layer)
			return summary, nil
		}
		defer func() {
			if err := lock.Release(ctx); err != nil {
				logger.Warn("layer lock release failed", "layer", layer, "error", err)
			}
		}()
	}

	results := s.runner.RunMany(ctx, s.cfg.Organizations, layer)
	for orgID, result := range results {
		total, perCategory, err := s.persist(ctx, result)
		if err != nil {
			logger.Error("persisting findings failed", "org", orgID, "layer", layer, "error", err)
			continue
		}
		summary.Organizations++
		summary.TotalOpportunities += total
		summary.Skipped += len(result.Skipped)

		if s.archive != nil {
			report := storage.BuildRunReport(result, total, perCategory)
			if err := s.archive.Save(ctx, report); err != nil {
				logger.Warn("run report archive failed", "org", orgID, "error", err)
			}
		}
	}

	logger.Info("cadence run complete",
		"layer", layer,
		"organizations", summary.Organizations,
		"opportunities", summary.TotalOpportunities,
		"skipped", summary.Skipped)
	return summary, nil
}

// persist scores the run's findings and upserts the resulting
// opportunities. Suppressed upserts do not count toward the total.
func (s *Scheduler) persist(ctx context.Context, result detector.RunResult) (int, map[string]int, error) {
	var total int
	perCategory := make(map[string]int)
	for _, opp := range s.scorer.BuildAll(result.Findings) {
		// Cheap cooldown pre-check; the store re-checks authoritatively.
		if s.cooldowns != nil {
			inCooldown, err := s.cooldowns.InCooldown(ctx, opp.CooldownScope())
			if err != nil {
				logger.Warn("cooldown cache check failed", "scope", opp.CooldownScope(), "error", err)
			} else if inCooldown {
				continue
			}
		}
		outcome, err := s.store.Upsert(ctx, opp)
		if err != nil {
			return total, perCategory, err
		}
		if outcome == opportunity.OutcomeSuppressed {
			continue
		}
		total++
		perCategory[string(opp.Category)]++
	}
	return total, perCategory, nil
}
