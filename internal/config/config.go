package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ignite/opportunity-engine/internal/detector"
	"github.com/ignite/opportunity-engine/internal/scoring"
)

// Config holds all configuration for the engine.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Snowflake SnowflakeConfig `yaml:"snowflake"`
	Storage   StorageConfig   `yaml:"storage"`
	Detection DetectionConfig `yaml:"detection"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with ECS detection.
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds Redis settings for the dismissal-cooldown cache and
// scheduler locks.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

// SnowflakeConfig holds warehouse settings for the metric store.
type SnowflakeConfig struct {
	Account   string `yaml:"account"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	Database  string `yaml:"database"`
	Schema    string `yaml:"schema"`
	Warehouse string `yaml:"warehouse"`
	Table     string `yaml:"table"`
	Enabled   bool   `yaml:"enabled"`
}

// StorageConfig selects the opportunity store backend and AWS settings.
type StorageConfig struct {
	// Type is "postgres", "dynamodb", or "memory".
	Type          string `yaml:"type"`
	DynamoDBTable string `yaml:"dynamodb_table"`
	DynamoIDIndex string `yaml:"dynamo_id_index"`
	S3Bucket      string `yaml:"s3_bucket"`
	AWSRegion     string `yaml:"aws_region"`
	AWSProfile    string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
}

// GetAWSProfile returns the AWS profile, with environment variable override.
func (c StorageConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return "" // Use default credential chain (IAM role)
		}
		return envProfile
	}
	// On ECS/Lambda, don't use a profile - use IAM role
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// DetectionConfig holds detector thresholds, score weights, and the
// cadence scheduler settings. Thresholds and weights left at zero fall
// back to their documented defaults.
type DetectionConfig struct {
	Thresholds   detector.Thresholds `yaml:"thresholds"`
	ScoreWeights scoring.Weights     `yaml:"score_weights"`

	CooldownDays      int `yaml:"cooldown_days"`
	MaxConcurrentOrgs int `yaml:"max_concurrent_orgs"`

	// Cadence intervals per layer, in hours.
	FastEveryHours      int `yaml:"fast_every_hours"`
	TrendEveryHours     int `yaml:"trend_every_hours"`
	StrategicEveryHours int `yaml:"strategic_every_hours"`

	// Organizations the scheduler runs. On-demand runs via the API are
	// not limited to this list.
	Organizations []string `yaml:"organizations"`
}

// Cooldown returns the dismissal cooldown as a duration.
func (c DetectionConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownDays) * 24 * time.Hour
}

// FastInterval returns the fast-layer scheduler interval.
func (c DetectionConfig) FastInterval() time.Duration {
	return time.Duration(c.FastEveryHours) * time.Hour
}

// TrendInterval returns the trend-layer scheduler interval.
func (c DetectionConfig) TrendInterval() time.Duration {
	return time.Duration(c.TrendEveryHours) * time.Hour
}

// StrategicInterval returns the strategic-layer scheduler interval.
func (c DetectionConfig) StrategicInterval() time.Duration {
	return time.Duration(c.StrategicEveryHours) * time.Hour
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Snowflake.Database == "" {
		cfg.Snowflake.Database = "IGNITE_DATA_LAKE"
	}
	if cfg.Snowflake.Schema == "" {
		cfg.Snowflake.Schema = "MARKETING_METRICS"
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "postgres"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-west-2"
	}
	if cfg.Detection.CooldownDays == 0 {
		cfg.Detection.CooldownDays = 14
	}
	if cfg.Detection.MaxConcurrentOrgs == 0 {
		cfg.Detection.MaxConcurrentOrgs = 4
	}
	if cfg.Detection.FastEveryHours == 0 {
		cfg.Detection.FastEveryHours = 24
	}
	if cfg.Detection.TrendEveryHours == 0 {
		cfg.Detection.TrendEveryHours = 7 * 24
	}
	if cfg.Detection.StrategicEveryHours == 0 {
		cfg.Detection.StrategicEveryHours = 30 * 24
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env
// vars, so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SNOWFLAKE_ACCOUNT"); v != "" {
		cfg.Snowflake.Account = v
	}
	if v := os.Getenv("SNOWFLAKE_USER"); v != "" {
		cfg.Snowflake.User = v
	}
	if v := os.Getenv("SNOWFLAKE_PASSWORD"); v != "" {
		cfg.Snowflake.Password = v
	}
	if v := os.Getenv("DYNAMODB_TABLE"); v != "" {
		cfg.Storage.DynamoDBTable = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Storage.AWSRegion = v
	}
	if v := os.Getenv("COOLDOWN_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			cfg.Detection.CooldownDays = days
		}
	}

	return cfg, nil
}
