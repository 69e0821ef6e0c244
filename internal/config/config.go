package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ignite/event-crm/internal/domain"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Worker   WorkerConfig   `yaml:"worker"`
	AWS      AWSConfig      `yaml:"aws"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with ECS detection
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

// DatabaseConfig holds the PostgreSQL connection. An empty URL runs the
// server on the in-memory store.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// RedisConfig holds the Redis connection used for the event cache and
// worker locks. An empty URL disables both.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// PipelineConfig holds the tenant-wide funnel defaults.
type PipelineConfig struct {
	DefaultStages        []string `yaml:"default_stages"`
	DefaultAudienceTypes []string `yaml:"default_audience_types"`
	DefaultAudienceType  string   `yaml:"default_audience_type"`
	EventCacheTTLSeconds int      `yaml:"event_cache_ttl_seconds"`
}

// Stages returns the normalized default stage list.
func (c PipelineConfig) Stages() []domain.Stage {
	return domain.NormalizeStages(c.DefaultStages)
}

// AudienceTypes returns the normalized default audience types.
func (c PipelineConfig) AudienceTypes() []domain.AudienceType {
	out := make([]domain.AudienceType, 0, len(c.DefaultAudienceTypes))
	for _, a := range c.DefaultAudienceTypes {
		if at := domain.NormalizeAudienceType(a); at != "" && !domain.ContainsAudienceType(out, at) {
			out = append(out, at)
		}
	}
	return out
}

// EventCacheTTL returns the event cache entry lifetime.
func (c PipelineConfig) EventCacheTTL() time.Duration {
	return time.Duration(c.EventCacheTTLSeconds) * time.Second
}

// WorkerConfig holds the graduation reconciler settings.
type WorkerConfig struct {
	GraduationIntervalSeconds int `yaml:"graduation_interval_seconds"`
	BatchSize                 int `yaml:"batch_size"`
	LockTTLSeconds            int `yaml:"lock_ttl_seconds"`
}

// Interval returns the reconciler tick interval.
func (c WorkerConfig) Interval() time.Duration {
	return time.Duration(c.GraduationIntervalSeconds) * time.Second
}

// LockTTL returns the reconciler lock lifetime.
func (c WorkerConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// AWSConfig holds the AWS integrations. Empty queue URL or bucket disables
// the matching feature.
type AWSConfig struct {
	Region             string `yaml:"region"`
	GraduationQueueURL string `yaml:"graduation_queue_url"`
	RosterExportBucket string `yaml:"roster_export_bucket"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Pretty    bool   `yaml:"pretty"`
	RedactPII bool   `yaml:"redact_pii"`
}

// Load reads and parses the configuration file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Config{Logging: LoggingConfig{RedactPII: true}}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if len(cfg.Pipeline.DefaultStages) == 0 {
		cfg.Pipeline.DefaultStages = []string{"member", "soft_commit", "paid"}
	}
	if len(cfg.Pipeline.DefaultAudienceTypes) == 0 {
		cfg.Pipeline.DefaultAudienceTypes = []string{"org_member", "friend_spouse", "community_partner"}
	}
	if cfg.Pipeline.DefaultAudienceType == "" {
		cfg.Pipeline.DefaultAudienceType = "org_member"
	}
	if cfg.Pipeline.EventCacheTTLSeconds == 0 {
		cfg.Pipeline.EventCacheTTLSeconds = 300
	}
	if cfg.Worker.GraduationIntervalSeconds == 0 {
		cfg.Worker.GraduationIntervalSeconds = 60
	}
	if cfg.Worker.BatchSize == 0 {
		cfg.Worker.BatchSize = 200
	}
	if cfg.Worker.LockTTLSeconds == 0 {
		cfg.Worker.LockTTLSeconds = 300
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "us-west-2"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("PIPELINE_DEFAULT_STAGES"); v != "" {
		cfg.Pipeline.DefaultStages = splitList(v)
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.AWS.Region = v
	}
	if v := os.Getenv("GRADUATION_QUEUE_URL"); v != "" {
		cfg.AWS.GraduationQueueURL = v
	}
	if v := os.Getenv("ROSTER_EXPORT_BUCKET"); v != "" {
		cfg.AWS.RosterExportBucket = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		cfg.Logging.Pretty, _ = strconv.ParseBool(v)
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
