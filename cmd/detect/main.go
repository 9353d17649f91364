// One-shot detection run for a single organization. Useful for cron
// jobs and for inspecting what a cadence layer would produce without
// starting the API server.
//
// Usage:
//
//	detect -org org-123 [-layer fast|trend|strategic] [-config config/config.yaml]
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/ignite/opportunity-engine/internal/config"
	"github.com/ignite/opportunity-engine/internal/detector"
	"github.com/ignite/opportunity-engine/internal/domain"
	"github.com/ignite/opportunity-engine/internal/metrics"
	"github.com/ignite/opportunity-engine/internal/opportunity"
	"github.com/ignite/opportunity-engine/internal/repository/postgres"
	"github.com/ignite/opportunity-engine/internal/scoring"
)

func main() {
	orgID := flag.String("org", "", "organization id to run detection for")
	layerFlag := flag.String("layer", "", "cadence layer (fast, trend, strategic); empty runs all")
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	dryRun := flag.Bool("dry-run", false, "score findings but do not persist opportunities")
	flag.Parse()

	if *orgID == "" {
		flag.Usage()
		os.Exit(2)
	}

	var layers []domain.CadenceLayer
	if *layerFlag != "" {
		layer := domain.CadenceLayer(*layerFlag)
		if !domain.ValidLayer(layer) {
			log.Fatalf("unknown cadence layer %q", *layerFlag)
		}
		layers = []domain.CadenceLayer{layer}
	}

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var db *sql.DB
	if cfg.Database.URL != "" {
		db, err = sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
	}

	var metricStore metrics.Store
	switch {
	case cfg.Snowflake.Enabled:
		sf, err := metrics.NewSnowflakeStore(metrics.SnowflakeConfig{
			Account:   cfg.Snowflake.Account,
			User:      cfg.Snowflake.User,
			Password:  cfg.Snowflake.Password,
			Database:  cfg.Snowflake.Database,
			Schema:    cfg.Snowflake.Schema,
			Warehouse: cfg.Snowflake.Warehouse,
			Table:     cfg.Snowflake.Table,
		})
		if err != nil {
			log.Fatalf("Failed to open Snowflake: %v", err)
		}
		defer sf.Close()
		metricStore = sf
	case db != nil:
		metricStore = postgres.NewMetricRepo(db)
	default:
		log.Fatal("no metric source configured: set snowflake.enabled or database.url")
	}

	registry := detector.NewRegistry()
	runner := detector.NewRunner(registry, metricStore, cfg.Detection.Thresholds)
	scorer := scoring.NewScorer(registry, cfg.Detection.ScoreWeights)

	result, err := runner.Run(ctx, *orgID, layers...)
	if err != nil {
		log.Fatalf("Run failed: %v", err)
	}

	opps := scorer.BuildAll(result.Findings)

	var inserted, refreshed, suppressed int
	if !*dryRun {
		if db == nil {
			log.Fatal("persisting requires database.url; use -dry-run otherwise")
		}
		store := postgres.NewOpportunityRepo(db, cfg.Detection.Cooldown())
		for _, opp := range opps {
			outcome, err := store.Upsert(ctx, opp)
			if err != nil {
				log.Fatalf("Upsert failed for %s: %v", opp.IdempotencyKey(), err)
			}
			switch outcome {
			case opportunity.OutcomeInserted:
				inserted++
			case opportunity.OutcomeRefreshed:
				refreshed++
			case opportunity.OutcomeSuppressed:
				suppressed++
			}
		}
	}

	fmt.Printf("Organization:  %s\n", result.OrganizationID)
	fmt.Printf("Layers:        %v\n", result.Layers)
	fmt.Printf("Duration:      %s\n", result.Duration.Truncate(time.Millisecond))
	fmt.Printf("Findings:      %d\n", len(result.Findings))
	fmt.Printf("Skipped:       %d\n", len(result.Skipped))
	if !*dryRun {
		fmt.Printf("Inserted:      %d\n", inserted)
		fmt.Printf("Refreshed:     %d\n", refreshed)
		fmt.Printf("Suppressed:    %d\n", suppressed)
	}

	for _, opp := range opps {
		fmt.Printf("  [%s/%s] %s  entity=%s impact=%.1f priority=%s\n",
			opp.Category, opp.DetectorID, opp.Title, opp.EntityID, opp.PotentialImpactScore, opp.Priority)
	}
	for _, skip := range result.Skipped {
		if skip.Reason == "missing required metrics" {
			continue
		}
		fmt.Printf("  skip [%s] entity=%s: %s\n", skip.DetectorID, skip.EntityID, skip.Reason)
	}
}
