// ABOUTME: Configuration loading and parsing for parley
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete parley configuration
type Config struct {
	LLM     LLMConfig     `yaml:"llm"`
	Search  SearchConfig  `yaml:"search"`
	Storage StorageConfig `yaml:"storage"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig holds the chat completion service configuration
type LLMConfig struct {
	BaseURL      string `yaml:"base_url"`
	APIKey       string `yaml:"api_key"`
	Model        string `yaml:"model"`
	SystemPrompt string `yaml:"system_prompt"`
}

// SearchConfig holds the web search provider configuration
type SearchConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	NumResults int    `yaml:"num_results"`
	Highlights bool   `yaml:"highlights"`
}

// StorageConfig holds the per-owner database directory
type StorageConfig struct {
	Dir string `yaml:"dir"`
}

// CacheConfig holds connection pool sizing and eviction timing
type CacheConfig struct {
	Capacity int `yaml:"capacity"`

	TTL           time.Duration `yaml:"-"`
	SweepInterval time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	TTLRaw           string `yaml:"ttl"`
	SweepIntervalRaw string `yaml:"sweep_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in values that are safe to leave out of the file.
func applyDefaults(cfg *Config) {
	if cfg.Cache.Capacity == 0 {
		cfg.Cache.Capacity = 32
	}
	if cfg.Cache.TTLRaw == "" {
		cfg.Cache.TTLRaw = "30m"
	}
	if cfg.Cache.SweepIntervalRaw == "" {
		cfg.Cache.SweepIntervalRaw = "5m"
	}
	if cfg.Search.NumResults == 0 {
		cfg.Search.NumResults = 5
	}
	if cfg.LLM.SystemPrompt == "" {
		cfg.LLM.SystemPrompt = "You are a helpful assistant."
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir is required")
	}
	if c.Cache.Capacity < 1 {
		return fmt.Errorf("cache.capacity must be at least 1")
	}
	if c.Cache.TTL < time.Millisecond {
		return fmt.Errorf("cache.ttl must be at least 1ms")
	}
	if c.Cache.SweepInterval < time.Millisecond {
		return fmt.Errorf("cache.sweep_interval must be at least 1ms")
	}
	if c.Search.Enabled && c.Search.APIKey == "" {
		return fmt.Errorf("search.api_key is required when search is enabled")
	}
	if c.Search.Enabled && c.Search.BaseURL == "" {
		return fmt.Errorf("search.base_url is required when search is enabled")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Cache.TTLRaw != "" {
		cfg.Cache.TTL, err = time.ParseDuration(cfg.Cache.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing cache.ttl %q: %w", cfg.Cache.TTLRaw, err)
		}
	}

	if cfg.Cache.SweepIntervalRaw != "" {
		cfg.Cache.SweepInterval, err = time.ParseDuration(cfg.Cache.SweepIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing cache.sweep_interval %q: %w", cfg.Cache.SweepIntervalRaw, err)
		}
	}

	return nil
}
