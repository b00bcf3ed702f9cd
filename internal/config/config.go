// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/boardwatch/boardwatch/internal/scrape"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Scrape   ScrapeConfig   `mapstructure:"scrape"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Detector DetectorConfig `mapstructure:"detector"`
	Extract  ExtractConfig  `mapstructure:"extract"`
	Health   HealthConfig   `mapstructure:"health"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Sources  []SourceConfig `mapstructure:"sources"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// ScrapeConfig governs dispatcher and per-source pipeline behavior.
type ScrapeConfig struct {
	Concurrency         int    `mapstructure:"concurrency"`
	UserAgent           string `mapstructure:"user_agent"`
	MaxPages            int    `mapstructure:"max_pages"`
	SourceBudgetSeconds int    `mapstructure:"source_budget_seconds"`
	IntervalMinutes     int    `mapstructure:"interval_minutes"`
}

// HTTPConfig configures fetch timeout and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
	MaxBodyBytes     int `mapstructure:"max_body_bytes"`
}

// HeadlessConfig configures the render fallback subsystem.
type HeadlessConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	MaxParallel   int    `mapstructure:"max_parallel"`
	NavTimeoutSec int    `mapstructure:"nav_timeout_seconds"`
	WaitSelector  string `mapstructure:"wait_selector"`
}

// DetectorConfig tunes the JS-shell heuristics.
type DetectorConfig struct {
	MinVisibleText int `mapstructure:"min_visible_text"`
	MinBodyBytes   int `mapstructure:"min_body_bytes"`
	ScriptCoverage int `mapstructure:"script_coverage_pct"`
}

// ExtractConfig tunes the generic extraction pipeline.
type ExtractConfig struct {
	MinPostings      int `mapstructure:"min_postings"`
	MinBlockSiblings int `mapstructure:"min_block_siblings"`
}

// HealthConfig tunes merge closure and health classification.
type HealthConfig struct {
	CloseAfterMisses int `mapstructure:"close_after_misses"`
	BrokenAfter      int `mapstructure:"broken_after"`
	StaleAfterHours  int `mapstructure:"stale_after_hours"`
}

// StorageConfig sets snapshot archive destinations.
type StorageConfig struct {
	GCSBucket   string `mapstructure:"gcs_bucket"`
	LocalDir    string `mapstructure:"local_dir"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxConns        int    `mapstructure:"max_conns"`
	MinConns        int    `mapstructure:"min_conns"`
	ConnLifetimeMin int    `mapstructure:"conn_lifetime_minutes"`
}

// PubSubConfig holds metadata for run-report notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// SourceConfig is one configured page source.
type SourceConfig struct {
	ID            string   `mapstructure:"id"`
	URL           string   `mapstructure:"url"`
	Adapter       string   `mapstructure:"adapter"`
	LocationTerms []string `mapstructure:"location_terms"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BOARDWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 30)
	v.SetDefault("scrape.concurrency", 4)
	v.SetDefault("scrape.user_agent", "boardwatch-bot/0.1")
	v.SetDefault("scrape.max_pages", 10)
	v.SetDefault("scrape.source_budget_seconds", 120)
	v.SetDefault("scrape.interval_minutes", 60)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("http.max_body_bytes", 10<<20)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("detector.min_visible_text", 200)
	v.SetDefault("detector.min_body_bytes", 2048)
	v.SetDefault("detector.script_coverage_pct", 25)
	v.SetDefault("extract.min_postings", 1)
	v.SetDefault("extract.min_block_siblings", 3)
	v.SetDefault("health.close_after_misses", 3)
	v.SetDefault("health.broken_after", 5)
	v.SetDefault("health.stale_after_hours", 48)
	v.SetDefault("storage.prefix", "snapshots")
	v.SetDefault("storage.content_type", "text/html; charset=utf-8")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scrape.Concurrency <= 0 {
		return fmt.Errorf("scrape.concurrency must be > 0")
	}
	if c.Scrape.MaxPages <= 0 {
		return fmt.Errorf("scrape.max_pages must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Health.CloseAfterMisses < 1 {
		return fmt.Errorf("health.close_after_misses must be >= 1")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	seen := map[string]bool{}
	for _, s := range c.Sources {
		if s.ID == "" || s.URL == "" {
			return fmt.Errorf("sources entries require id and url")
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate source id %q", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// SourceBudget converts the per-source budget into a duration.
func (c Config) SourceBudget() time.Duration {
	return time.Duration(c.Scrape.SourceBudgetSeconds) * time.Second
}

// PageSources converts configured sources into pipeline inputs,
// preserving order.
func (c Config) PageSources() []scrape.PageSource {
	out := make([]scrape.PageSource, 0, len(c.Sources))
	for _, s := range c.Sources {
		out = append(out, scrape.PageSource{
			ID:            s.ID,
			URL:           s.URL,
			Adapter:       s.Adapter,
			LocationTerms: s.LocationTerms,
		})
	}
	return out
}
