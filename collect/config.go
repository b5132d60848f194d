package collect

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/striezel/corona-sub001/collect/internal/apiclient"
	"github.com/striezel/corona-sub001/collect/internal/rangeselect"
)

// Config holds all collector configuration.
type Config struct {
	DBPath        string         `yaml:"db_path"`
	MetricsDBPath string         `yaml:"metrics_db_path"` // empty: no metrics or run events
	API           APIConfig      `yaml:"api"`
	Concurrency   int            `yaml:"concurrency"`
	MaxRecentDays int            `yaml:"max_recent_days"`
	Countries     []string       `yaml:"countries"` // empty: whole catalog
	Continent     string         `yaml:"continent"`
	Precheck      PrecheckConfig `yaml:"precheck"`
	TraceSQL      bool           `yaml:"trace_sql"` // trace records-store statements into the metrics database
	BusyTimeout   time.Duration  `yaml:"busy_timeout"`
}

// APIConfig controls the upstream client.
type APIConfig struct {
	BaseURL           string        `yaml:"base_url"`
	UserAgent         string        `yaml:"user_agent"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxAttempts       int           `yaml:"max_attempts"`
	BaseBackoff       time.Duration `yaml:"base_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
	MaxRetryAfter     time.Duration `yaml:"max_retry_after"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	BreakerThreshold  int           `yaml:"breaker_threshold"`
	BreakerReset      time.Duration `yaml:"breaker_reset"`
	MaxBytes          int64         `yaml:"max_bytes"`
	AllowPrivate      bool          `yaml:"allow_private"`
}

// PrecheckConfig sets the SQLite version thresholds.
type PrecheckConfig struct {
	MinVersion         string `yaml:"min_version"`
	RecommendedVersion string `yaml:"recommended_version"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "corona.db"
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = 10 * time.Second
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.MaxRecentDays == 0 {
		c.MaxRecentDays = rangeselect.DefaultMaxRecentDays
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = apiclient.DefaultBaseURL
	}
	if c.API.MaxAttempts <= 0 {
		c.API.MaxAttempts = 3
	}
}

func (a APIConfig) client() apiclient.Config {
	return apiclient.Config{
		BaseURL:           a.BaseURL,
		UserAgent:         a.UserAgent,
		Timeout:           a.Timeout,
		MaxAttempts:       a.MaxAttempts,
		BaseBackoff:       a.BaseBackoff,
		MaxBackoff:        a.MaxBackoff,
		MaxRetryAfter:     a.MaxRetryAfter,
		RequestsPerSecond: a.RequestsPerSecond,
		Burst:             a.Burst,
		BreakerThreshold:  a.BreakerThreshold,
		BreakerReset:      a.BreakerReset,
		MaxBytes:          a.MaxBytes,
		AllowPrivate:      a.AllowPrivate,
	}
}

// LoadConfigFile reads a YAML config file. Unknown keys are rejected.
func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := &Config{}
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("collect: config %s: %w", path, err)
	}
	return cfg, nil
}
