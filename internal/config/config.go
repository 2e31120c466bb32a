// Package config loads the ingestion core's YAML configuration, following
// the same Load/validate/loadFromEnv shape kubernaut's internal/config uses,
// adapted to this system's operational knobs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig            `yaml:"server"`
	Database  DatabaseConfig          `yaml:"database"`
	Graph     GraphConfig             `yaml:"graph"`
	Scheduler SchedulerConfig         `yaml:"scheduler"`
	Dedup     DedupConfig             `yaml:"dedup"`
	Promoter  PromoterConfig          `yaml:"promoter"`
	Logging   LoggingConfig           `yaml:"logging"`
	RateLimit RateLimitConfig         `yaml:"rate_limit"`
	Notify    NotifyConfig            `yaml:"notify"`
	Ingestor  IngestorConfig          `yaml:"ingestor"`
	Extractor  ServiceConfig           `yaml:"extractor"`
	Embedder   ServiceConfig           `yaml:"embedder"`
	Enrichment EnrichmentConfig        `yaml:"enrichment"`
	Regions    map[string]RegionConfig `yaml:"regions"`
}

// RegionConfig names one of spec.md §6.4's `scout <region>` arguments: a
// center point and radius the CLI resolves into a pipeline.Region.
type RegionConfig struct {
	Lat      float64 `yaml:"lat"`
	Lng      float64 `yaml:"lng"`
	RadiusKm float64 `yaml:"radius_km"`
}

// IngestorConfig parameterizes the HTTP page fetcher.
type IngestorConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// ServiceConfig points at an external HTTP service implementing the
// Extractor or Embedder collaborator contract (spec.md §6.2 treats both as
// summarized interfaces; the LLM/embedding model itself is out of scope
// here, reached over HTTP rather than a bundled SDK).
type ServiceConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type ServerConfig struct {
	StatsPort      string   `yaml:"stats_port"`
	MetricsPort    string   `yaml:"metrics_port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" validate:"required"`
	MaxConns        int           `yaml:"max_conns"`
	NotifyChannel   string        `yaml:"notify_channel"`
	PollingInterval time.Duration `yaml:"polling_interval"`
}

type GraphConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	GraphName string `yaml:"graph_name"`
}

type SchedulerConfig struct {
	ExplorationRatio        float64 `yaml:"exploration_ratio" validate:"gte=0,lte=1"`
	ExplorationThreshold    float64 `yaml:"exploration_weight_threshold"`
	ExplorationMinStaleDays int     `yaml:"exploration_min_stale_days"`
}

type DedupConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" validate:"gt=0,lte=1"`
	EmbedCacheCapacity  int     `yaml:"embed_cache_capacity"`
}

type PromoterConfig struct {
	MaxPerRun    int `yaml:"max_per_run" validate:"gt=0"`
	MaxPerSource int `yaml:"max_per_source"`
}

// EnrichmentConfig parameterizes the post-projection diversity/actor-stats/
// cause-heat pass (spec.md §4.10), run once at the end of each scout run.
type EnrichmentConfig struct {
	CauseHeatThreshold float64 `yaml:"cause_heat_threshold" validate:"gt=0,lte=1"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

// RateLimitConfig bounds the scrape worker pool's per-source-host request
// rate (spec.md §5: "Parallelism... bounded by a rate-limit per source
// host"), backed by Redis so the limit holds across process restarts and
// (if ever run with more than one scout process) across instances.
type RateLimitConfig struct {
	Addr            string        `yaml:"addr"`
	Password        string        `yaml:"password"`
	DB              int           `yaml:"db"`
	RequestsPerHost int           `yaml:"requests_per_host" validate:"gt=0"`
	Window          time.Duration `yaml:"window"`
}

// NotifyConfig is the Investigator/Lint pass's outbound Slack notifier.
// Off by default: an empty WebhookURL makes the notifier a no-op rather
// than an error, so a deployment that doesn't want dispatch alerts doesn't
// need to stub anything out.
type NotifyConfig struct {
	WebhookURL string        `yaml:"webhook_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			StatsPort:      "8090",
			MetricsPort:    "9090",
			AllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			MaxConns:        10,
			NotifyChannel:   "events",
			PollingInterval: 2 * time.Second,
		},
		Graph: GraphConfig{
			Addr:      "localhost:6379",
			GraphName: "rootsignal",
		},
		Scheduler: SchedulerConfig{
			ExplorationRatio:        0.10,
			ExplorationThreshold:    0.3,
			ExplorationMinStaleDays: 14,
		},
		Dedup: DedupConfig{
			SimilarityThreshold: 0.85,
			EmbedCacheCapacity:  4096,
		},
		Promoter: PromoterConfig{
			MaxPerRun:    100,
			MaxPerSource: 20,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
		RateLimit: RateLimitConfig{
			Addr:            "localhost:6379",
			RequestsPerHost: 5,
			Window:          10 * time.Second,
		},
		Notify: NotifyConfig{
			Timeout: 5 * time.Second,
		},
		Ingestor: IngestorConfig{
			Timeout:   15 * time.Second,
			UserAgent: "rootsignal-scout/1.0",
		},
		Extractor:  ServiceConfig{Timeout: 30 * time.Second},
		Embedder:   ServiceConfig{Timeout: 10 * time.Second},
		Enrichment: EnrichmentConfig{CauseHeatThreshold: 0.3},
	}
}

// Load reads a YAML config file from path, applies defaults for absent
// fields, overlays environment variables, and validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFromEnv(cfg *Config) error {
	if v := os.Getenv("ROOTSIGNAL_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("ROOTSIGNAL_GRAPH_ADDR"); v != "" {
		cfg.Graph.Addr = v
	}
	if v := os.Getenv("ROOTSIGNAL_STATS_PORT"); v != "" {
		cfg.Server.StatsPort = v
	}
	if v := os.Getenv("ROOTSIGNAL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ROOTSIGNAL_EXPLORATION_RATIO"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid ROOTSIGNAL_EXPLORATION_RATIO: %w", err)
		}
		cfg.Scheduler.ExplorationRatio = parsed
	}
	if v := os.Getenv("ROOTSIGNAL_RATE_LIMIT_ADDR"); v != "" {
		cfg.RateLimit.Addr = v
	}
	if v := os.Getenv("ROOTSIGNAL_NOTIFY_WEBHOOK_URL"); v != "" {
		cfg.Notify.WebhookURL = v
	}
	return nil
}

var validate10 = validator.New()

// validate checks struct tags on every section in one pass rather than a
// hand-rolled field-by-field chain — the tags above double as the
// documentation of what's actually required.
func validate(cfg *Config) error {
	if err := validate10.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
