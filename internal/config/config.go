// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a YAML file and HYPERLOCAL_* environment variables on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// MaxBodyBytes caps POST /events bodies.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`

	// MaxBatchSize caps the number of events in one submission.
	MaxBatchSize int `koanf:"max_batch_size"`

	// EventQueueSize bounds the in-memory event queue.
	EventQueueSize int `koanf:"queue_size"`

	// DedupeSize sets how many ingress event ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// FeatureIntervalMS is the featuring tick period.
	FeatureIntervalMS int `koanf:"feature_interval_ms"`

	// StoryTimeoutMS bounds a single story fetch over HTTP.
	StoryTimeoutMS int `koanf:"story_timeout_ms"`

	// StoryConcurrency bounds story fetches in flight.
	StoryConcurrency int `koanf:"story_concurrency"`

	// StoryCacheSize bounds the resolved-story cache; 0 means unbounded.
	StoryCacheSize int `koanf:"story_cache_size"`

	// StoryMaxBytes caps a fetched story body.
	StoryMaxBytes int64 `koanf:"story_max_bytes"`

	// StoriesDir, when set, serves stories from local files first.
	StoriesDir string `koanf:"stories_dir"`

	// StoryHTTP enables fetching stories over HTTP(S).
	StoryHTTP bool `koanf:"story_http"`

	// MissingDirectoryPolicy handles events without receiverDirectory:
	// reject or empty-key.
	MissingDirectoryPolicy string `koanf:"missing_directory_policy"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Addr:                   ":9080",
		MaxBodyBytes:           1 << 20,
		MaxBatchSize:           1000,
		EventQueueSize:         10_000,
		DedupeSize:             50_000,
		FeatureIntervalMS:      8000,
		StoryTimeoutMS:         5000,
		StoryConcurrency:       16,
		StoryCacheSize:         10_000,
		StoryMaxBytes:          1 << 20,
		StoryHTTP:              true,
		MissingDirectoryPolicy: "reject",
	}
}

// FeatureInterval returns the featuring period.
func (c *Config) FeatureInterval() time.Duration {
	return time.Duration(c.FeatureIntervalMS) * time.Millisecond
}

// StoryTimeout returns the per-fetch timeout.
func (c *Config) StoryTimeout() time.Duration {
	return time.Duration(c.StoryTimeoutMS) * time.Millisecond
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.EventQueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.FeatureIntervalMS <= 0:
		return fmt.Errorf("%w: feature_interval_ms must be positive", ErrInvalidConfig)
	case c.StoryConcurrency <= 0:
		return fmt.Errorf("%w: story_concurrency must be positive", ErrInvalidConfig)
	case c.StoryTimeoutMS <= 0:
		return fmt.Errorf("%w: story_timeout_ms must be positive", ErrInvalidConfig)
	case c.MaxBodyBytes <= 0:
		return fmt.Errorf("%w: max_body_bytes must be positive", ErrInvalidConfig)
	case c.MaxBatchSize <= 0:
		return fmt.Errorf("%w: max_batch_size must be positive", ErrInvalidConfig)
	case c.StoryCacheSize < 0:
		return fmt.Errorf("%w: story_cache_size must not be negative", ErrInvalidConfig)
	case c.StoryMaxBytes <= 0:
		return fmt.Errorf("%w: story_max_bytes must be positive", ErrInvalidConfig)
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	switch strings.ToLower(c.MissingDirectoryPolicy) {
	case "reject", "empty-key":
	default:
		return fmt.Errorf("%w: missing_directory_policy %q", ErrInvalidConfig, c.MissingDirectoryPolicy)
	}
	return nil
}
