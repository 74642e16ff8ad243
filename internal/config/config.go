package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DataDir          string `yaml:"data_dir"`
	DatabasePath     string `yaml:"database_path"`
	ComboDBPath      string `yaml:"combo_db_path"`
	CollectionDBPath string `yaml:"collection_db_path"`
	PriceCachePath   string `yaml:"price_cache_path"`

	BulkMetaURL      string `yaml:"bulk_meta_url"`
	SetsURL          string `yaml:"sets_url"`
	PriceLookupURL   string `yaml:"price_lookup_url"`
	ComboReleasesURL string `yaml:"combo_releases_url"`

	HTTPTimeout time.Duration `yaml:"http_timeout"`
	BatchSize   int           `yaml:"batch_size"`
	UserAgent   string        `yaml:"user_agent"`
	LogLevel    string        `yaml:"log_level"`
}

const (
	defaultBulkMetaURL      = "https://api.scryfall.com/bulk-data"
	defaultSetsURL          = "https://api.scryfall.com/sets"
	defaultPriceLookupURL   = "https://api.scryfall.com/cards/collection"
	defaultComboReleasesURL = "https://api.github.com/repos/SpaceCowMedia/commander-spellbook-backend/releases"
)

// Load builds the configuration from an optional YAML file (CARDBASE_CONFIG,
// falling back to ./cardbase.yaml when present) overlaid by CARDBASE_*
// environment variables. Environment wins over file, file wins over defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:          "./data",
		BulkMetaURL:      defaultBulkMetaURL,
		SetsURL:          defaultSetsURL,
		PriceLookupURL:   defaultPriceLookupURL,
		ComboReleasesURL: defaultComboReleasesURL,
		HTTPTimeout:      2 * time.Minute,
		BatchSize:        5000,
		UserAgent:        "cardbase/1.0",
		LogLevel:         "info",
	}

	path := os.Getenv("CARDBASE_CONFIG")
	if path == "" {
		if _, err := os.Stat("cardbase.yaml"); err == nil {
			path = "cardbase.yaml"
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.DataDir = getEnv("CARDBASE_DATA_DIR", cfg.DataDir)
	cfg.DatabasePath = getEnv("CARDBASE_DB", cfg.DatabasePath)
	cfg.ComboDBPath = getEnv("CARDBASE_COMBO_DB", cfg.ComboDBPath)
	cfg.CollectionDBPath = getEnv("CARDBASE_COLLECTION_DB", cfg.CollectionDBPath)
	cfg.PriceCachePath = getEnv("CARDBASE_PRICE_CACHE", cfg.PriceCachePath)
	cfg.BulkMetaURL = getEnv("CARDBASE_BULK_META_URL", cfg.BulkMetaURL)
	cfg.SetsURL = getEnv("CARDBASE_SETS_URL", cfg.SetsURL)
	cfg.PriceLookupURL = getEnv("CARDBASE_PRICE_LOOKUP_URL", cfg.PriceLookupURL)
	cfg.ComboReleasesURL = getEnv("CARDBASE_COMBO_RELEASES_URL", cfg.ComboReleasesURL)
	cfg.UserAgent = getEnv("CARDBASE_USER_AGENT", cfg.UserAgent)
	cfg.LogLevel = getEnv("CARDBASE_LOG_LEVEL", cfg.LogLevel)

	if v := os.Getenv("CARDBASE_HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CARDBASE_HTTP_TIMEOUT: %w", err)
		}
		cfg.HTTPTimeout = d
	}
	if v := os.Getenv("CARDBASE_BATCH_SIZE"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid CARDBASE_BATCH_SIZE: %q", v)
		}
		cfg.BatchSize = n
	}

	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.DataDir, "cards.db")
	}
	if cfg.ComboDBPath == "" {
		cfg.ComboDBPath = filepath.Join(cfg.DataDir, "combos.db")
	}
	if cfg.CollectionDBPath == "" {
		cfg.CollectionDBPath = filepath.Join(cfg.DataDir, "collection.db")
	}
	if cfg.PriceCachePath == "" {
		cfg.PriceCachePath = filepath.Join(cfg.DataDir, "prices.json")
	}

	return cfg, nil
}

// SetDataDir moves the data directory after Load, re-deriving every path that
// still sits at its default location under the previous directory. Paths the
// user set explicitly are left alone.
func (c *Config) SetDataDir(dir string) {
	old := c.DataDir
	c.DataDir = dir
	if c.DatabasePath == filepath.Join(old, "cards.db") {
		c.DatabasePath = filepath.Join(dir, "cards.db")
	}
	if c.ComboDBPath == filepath.Join(old, "combos.db") {
		c.ComboDBPath = filepath.Join(dir, "combos.db")
	}
	if c.CollectionDBPath == filepath.Join(old, "collection.db") {
		c.CollectionDBPath = filepath.Join(dir, "collection.db")
	}
	if c.PriceCachePath == filepath.Join(old, "prices.json") {
		c.PriceCachePath = filepath.Join(dir, "prices.json")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
