package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration. Values come from defaults, an
// optional YAML file, then GOBIKE_* environment variables, in that order.
type Config struct {
	DBPath      string `yaml:"db_path" validate:"required"`
	DataDir     string `yaml:"data_dir" validate:"required"`
	LedgerPath  string `yaml:"ledger_path" validate:"required"`
	CatalogPath string `yaml:"catalog_path" validate:"required"`
	Port        int    `yaml:"port" validate:"gt=0,lte=65535"`
	City        string `yaml:"city" validate:"required"`

	Ingest IngestConfig `yaml:"ingest"`
}

// IngestConfig tunes the trip ingestion pipeline.
type IngestConfig struct {
	Strategy           string  `yaml:"strategy" validate:"required"`
	MaxDistance        float64 `yaml:"max_distance" validate:"gt=0"`
	BatchSize          int     `yaml:"batch_size" validate:"gt=0"`
	CheckpointInterval int     `yaml:"checkpoint_interval" validate:"gt=0"`
	MinGraphSize       int     `yaml:"min_graph_size" validate:"gte=0"`
}

func defaults() *Config {
	return &Config{
		DBPath:      "./gobike.db",
		DataDir:     "./data",
		LedgerPath:  "./ingestion_ledger.jsonl",
		CatalogPath: "./data/cities.json",
		Port:        8080,
		City:        "Madrid",
		Ingest: IngestConfig{
			Strategy:           "shortest",
			MaxDistance:        150,
			BatchSize:          100,
			CheckpointInterval: 50,
			MinGraphSize:       1000,
		},
	}
}

// Load builds the configuration. An empty path skips the YAML file.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.DBPath = envStr("GOBIKE_DB_PATH", c.DBPath)
	c.DataDir = envStr("GOBIKE_DATA_DIR", c.DataDir)
	c.LedgerPath = envStr("GOBIKE_LEDGER_PATH", c.LedgerPath)
	c.CatalogPath = envStr("GOBIKE_CATALOG_PATH", c.CatalogPath)
	c.Port = envInt("GOBIKE_PORT", c.Port)
	c.City = envStr("GOBIKE_CITY", c.City)

	c.Ingest.Strategy = envStr("GOBIKE_STRATEGY", c.Ingest.Strategy)
	c.Ingest.MaxDistance = envFloat("GOBIKE_MAX_DISTANCE", c.Ingest.MaxDistance)
	c.Ingest.BatchSize = envInt("GOBIKE_BATCH_SIZE", c.Ingest.BatchSize)
	c.Ingest.CheckpointInterval = envInt("GOBIKE_CHECKPOINT_INTERVAL", c.Ingest.CheckpointInterval)
	c.Ingest.MinGraphSize = envInt("GOBIKE_MIN_GRAPH_SIZE", c.Ingest.MinGraphSize)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
