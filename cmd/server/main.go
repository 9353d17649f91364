package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/opportunity-engine/internal/api"
	"github.com/ignite/opportunity-engine/internal/config"
	"github.com/ignite/opportunity-engine/internal/detector"
	"github.com/ignite/opportunity-engine/internal/domain"
	"github.com/ignite/opportunity-engine/internal/metrics"
	"github.com/ignite/opportunity-engine/internal/opportunity"
	"github.com/ignite/opportunity-engine/internal/pkg/distlock"
	"github.com/ignite/opportunity-engine/internal/repository/postgres"
	"github.com/ignite/opportunity-engine/internal/scheduler"
	"github.com/ignite/opportunity-engine/internal/scoring"
	"github.com/ignite/opportunity-engine/internal/storage"
)

// checkPortAvailable verifies that the target port is not already in use.
// This prevents confusion from stale processes occupying the port.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

func openPostgres(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func main() {
	log.Println("Starting Opportunity Engine server...")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	host := cfg.Server.GetHost()
	if err := checkPortAvailable(host, cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	// Postgres backs entity mappings, metric points, and (by default)
	// the opportunity store.
	var db *sql.DB
	if cfg.Database.URL != "" {
		db, err = openPostgres(cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		log.Println("Connected to database")
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("[redis] ping failed, cooldown cache and locks disabled: %v", err)
			redisClient = nil
		}
		cancel()
	}

	// Metric store: warehouse when enabled, Postgres rows otherwise.
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
		log.Println("Metric store: snowflake")
	case db != nil:
		metricStore = postgres.NewMetricRepo(db)
		log.Println("Metric store: postgres")
	default:
		metricStore = metrics.NewMemoryStore()
		log.Println("Metric store: memory (no database configured)")
	}

	cooldown := cfg.Detection.Cooldown()
	var store opportunity.Store
	switch cfg.Storage.Type {
	case "dynamodb":
		awsCfg, err := storage.LoadAWSConfig(context.Background(), cfg.Storage.AWSRegion, cfg.Storage.GetAWSProfile())
		if err != nil {
			log.Fatalf("Failed to load AWS config: %v", err)
		}
		store = storage.NewDynamoOpportunityStore(awsCfg, cfg.Storage.DynamoDBTable, cfg.Storage.DynamoIDIndex, cooldown)
		log.Printf("Opportunity store: dynamodb (%s)", cfg.Storage.DynamoDBTable)
	case "memory":
		store = opportunity.NewMemoryStore(cooldown)
		log.Println("Opportunity store: memory")
	default:
		if db == nil {
			log.Fatal("storage type postgres requires database.url")
		}
		store = postgres.NewOpportunityRepo(db, cooldown)
		log.Println("Opportunity store: postgres")
	}

	registry := detector.NewRegistry()
	runner := detector.NewRunner(registry, metricStore, cfg.Detection.Thresholds)
	runner.SetMaxConcurrentOrgs(cfg.Detection.MaxConcurrentOrgs)
	scorer := scoring.NewScorer(registry, cfg.Detection.ScoreWeights)

	var archive *storage.RunArchive
	if cfg.Storage.S3Bucket != "" {
		awsCfg, err := storage.LoadAWSConfig(context.Background(), cfg.Storage.AWSRegion, cfg.Storage.GetAWSProfile())
		if err != nil {
			log.Fatalf("Failed to load AWS config for S3 archive: %v", err)
		}
		archive = storage.NewRunArchive(awsCfg, cfg.Storage.S3Bucket)
		log.Printf("Run archive: s3://%s", cfg.Storage.S3Bucket)
	}

	var cooldowns *opportunity.CooldownCache
	if redisClient != nil {
		cooldowns = opportunity.NewCooldownCache(redisClient, cooldown)
	}

	handlers := api.NewHandlers(store, runner, scorer, registry)
	if archive != nil {
		handlers.WithRunArchive(archive)
	}
	if cooldowns != nil {
		handlers.WithCooldownCache(cooldowns)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(cfg.Detection, runner, scorer, store)
	if archive != nil {
		sched.WithRunArchive(archive)
	}
	if cooldowns != nil {
		sched.WithCooldownCache(cooldowns)
	}
	if redisClient != nil || db != nil {
		sched.WithLocks(func(layer domain.CadenceLayer) distlock.DistLock {
			return distlock.NewLock(redisClient, db, "detect:"+string(layer), scheduler.LockTTL)
		})
	}
	go sched.Start(ctx)
	log.Printf("Scheduler started for %d organization(s)", len(cfg.Detection.Organizations))

	server := api.NewServer(handlers)
	go func() {
		addr := fmt.Sprintf("%s:%d", host, cfg.Server.Port)
		log.Printf("API listening on http://%s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
