package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all clausewatch settings.
// Precedence: CLI flags, CLAUSEWATCH_* env vars, config file, defaults.
type Config struct {
	Scoring      ScoringConfig     `yaml:"scoring" mapstructure:"scoring"`
	Diff         DiffConfig        `yaml:"diff" mapstructure:"diff"`
	HTTP         HTTPConfig        `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig       `yaml:"cache" mapstructure:"cache"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Concurrency  ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Storage      StorageConfig     `yaml:"storage" mapstructure:"storage"`
	LLM          LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Log          LogConfig         `yaml:"log" mapstructure:"log"`
	Metrics      MetricsConfig     `yaml:"metrics" mapstructure:"metrics"`
}

// ScoringConfig controls the clause scorer and regression detection
type ScoringConfig struct {
	Weights             map[string]float64 `yaml:"weights" mapstructure:"weights" validate:"required,dive,gte=0,lte=1"`
	RegressionThreshold float64            `yaml:"regression_threshold" mapstructure:"regression_threshold" validate:"gte=0,lte=1"`
	SuggestionThreshold float64            `yaml:"suggestion_threshold" mapstructure:"suggestion_threshold" validate:"gte=0,lte=1"`
	CriteriaPath        string             `yaml:"criteria_path" mapstructure:"criteria_path"` // empty = built-in criteria
	WatchCriteria       bool               `yaml:"watch_criteria" mapstructure:"watch_criteria"`
}

// DiffConfig controls the diff engine
type DiffConfig struct {
	AutoJunk bool `yaml:"auto_junk" mapstructure:"auto_junk"` // faster on long texts, collapses similarity on repetitive ones
}

// HTTPConfig controls document fetching
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent" validate:"required"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes" validate:"gt=0"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// CacheConfig controls the fetch response cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// RateLimitConfig holds per-domain request limits
type RateLimitConfig struct {
	RequestsPerMinute float64            `yaml:"requests_per_minute" mapstructure:"requests_per_minute" validate:"gt=0"`
	BurstSize         int                `yaml:"burst_size" mapstructure:"burst_size" validate:"gte=1"`
	Domains           map[string]float64 `yaml:"domains,omitempty" mapstructure:"domains" validate:"omitempty,dive,gt=0"` // requests per minute overrides
}

// ConcurrencyConfig holds worker counts
type ConcurrencyConfig struct {
	Workers       int `yaml:"workers" mapstructure:"workers" validate:"gte=1"`
	ClauseWorkers int `yaml:"clause_workers" mapstructure:"clause_workers" validate:"gte=1"`
}

// StorageConfig holds the version store location
type StorageConfig struct {
	DatabasePath string `yaml:"database_path" mapstructure:"database_path" validate:"required"`
}

// LLMConfig holds the optional summary provider settings
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider" validate:"omitempty,oneof=openai ollama"`
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"-" mapstructure:"api_key"` // never written to disk
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level       string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development" mapstructure:"development"`
}

// MetricsConfig controls the Prometheus endpoint for long-running commands
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty" mapstructure:"addr"` // empty = disabled
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	weights := make(map[string]float64)
	for c, w := range DefaultWeights() {
		weights[string(c)] = w
	}

	return &Config{
		Scoring: ScoringConfig{
			Weights:             weights,
			RegressionThreshold: 0.05,
			SuggestionThreshold: 0.5,
		},
		Diff: DiffConfig{
			AutoJunk: false,
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "clausewatch/0.1 (+https://github.com/ppiankov/clausewatch)",
			MaxBodyBytes:  5_000_000,
			RespectRobots: true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".clausewatch-cache",
			MemoryTTL: 10 * time.Minute,
			DiskTTL:   6 * time.Hour,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerMinute: 3,
			BurstSize:         1,
		},
		Concurrency: ConcurrencyConfig{
			Workers:       4,
			ClauseWorkers: 8,
		},
		Storage: StorageConfig{
			DatabasePath: "clausewatch.db",
		},
		LLM: LLMConfig{
			Timeout:   30,
			MaxTokens: 600,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Weights returns the scoring weights keyed by criterion
func (c *Config) Weights() Weights {
	return WeightsFromMap(c.Scoring.Weights)
}

// Validate checks struct constraints and the weight sum.
// Any failure is returned as a *ConfigError.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ConfigError{
				Field:  fe.Namespace(),
				Reason: fmt.Sprintf("failed %q constraint (value %v)", fe.Tag(), fe.Value()),
			}
		}
		return &ConfigError{Reason: "validate", Err: err}
	}

	return c.Weights().Validate()
}
