// Package config loads the resolver's typed configuration. The resolver
// itself never reads an environment variable or a config file directly —
// per spec.md §9 ("reimplement as a typed configuration record"), every
// knob arrives as a field on Config, and env vars are just one way for a
// caller (the CLI in cmd/elevresolve) to populate it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jcom-dev/elevresolve/internal/model"
)

// ScoringWeights are the Campaign Scorer's sub-score weights. They are
// validated to sum to 1.0 (within floating-point tolerance) at Load time;
// an unbalanced set of weights is a ConfigError, not a silent renormalize.
type ScoringWeights struct {
	Resolution float64
	Temporal   float64
	Spatial    float64
	Provider   float64
}

// DefaultScoringWeights are spec.md §4.2's defaults.
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{Resolution: 0.50, Temporal: 0.30, Spatial: 0.15, Provider: 0.05}
}

func (w ScoringWeights) Validate() error {
	sum := w.Resolution + w.Temporal + w.Spatial + w.Provider
	if sum < 0.999 || sum > 1.001 {
		return model.NewError(model.KindConfigError, fmt.Sprintf("scoring weights must sum to 1.0, got %.4f", sum), nil)
	}
	return nil
}

// ReliabilityConfig tunes the circuit breaker and timeout/concurrency
// defaults from spec.md §4.7. The exact thresholds are an explicitly
// flagged Open Question in spec.md §9 — these are the "most common values
// observed" defaults, made tunable as required.
type ReliabilityConfig struct {
	BreakerWindowSamples int           // N: rolling window sample count
	BreakerWindowPeriod  time.Duration // T: rolling window period
	BreakerErrorRatio    float64       // trip threshold
	BreakerMinSamples    int           // minimum samples before tripping
	BreakerCoolOff       time.Duration

	ObjectStoreTimeout time.Duration
	HTTPAPITimeout     time.Duration
	BatchTimeout       time.Duration

	ProviderConcurrency int // default per-provider semaphore size
	GlobalHighWaterMark int // global in-flight cap before Overloaded
}

func DefaultReliabilityConfig() ReliabilityConfig {
	return ReliabilityConfig{
		BreakerWindowSamples: 20,
		BreakerWindowPeriod:  30 * time.Second,
		BreakerErrorRatio:    0.5,
		BreakerMinSamples:    5,
		BreakerCoolOff:       30 * time.Second,

		ObjectStoreTimeout: 2 * time.Second,
		HTTPAPITimeout:     3 * time.Second,
		BatchTimeout:       10 * time.Second,

		ProviderConcurrency: 64,
		GlobalHighWaterMark: 512,
	}
}

// CacheConfig bounds the two Bounded Cache (§4.8) LRUs.
type CacheConfig struct {
	HeaderCacheEntries int
	HeaderCacheBytes   int64
	HeaderCacheTTL     time.Duration

	PointCacheEntries int
	PointCacheBytes   int64
	PointCacheTTL     time.Duration
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		HeaderCacheEntries: 2048,
		HeaderCacheBytes:   128 * 1024 * 1024,
		HeaderCacheTTL:     time.Hour,

		PointCacheEntries: 100_000,
		PointCacheBytes:   16 * 1024 * 1024,
		PointCacheTTL:     5 * time.Minute,
	}
}

// BatchConfig tunes the Batch Planner worker pool (§4.6).
type BatchConfig struct {
	WorkerPoolSize  int
	MaxBatchPoints  int
	HTTPChunkSize   int
}

func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		WorkerPoolSize: 32,
		MaxBatchPoints: 1000,
		HTTPChunkSize:  512,
	}
}

// Config is the resolver's fully typed, validated configuration.
type Config struct {
	IndexArtifactPath string
	Providers         []model.Provider
	Weights           ScoringWeights
	Reliability       ReliabilityConfig
	Cache             CacheConfig
	Batch             BatchConfig

	RedisURL string // optional; empty disables the shared daily-quota counter
}

// Load reads configuration from environment variables (optionally seeded
// from a .env file, as every teacher cmd/* does via godotenv) and validates
// it. Returns a *model.Error with KindConfigError on any problem, which
// callers must treat as fatal before accepting traffic (§7).
func Load() (*Config, error) {
	cfg := &Config{
		IndexArtifactPath: getenv("ELEVRESOLVE_INDEX_PATH", "index.json"),
		Weights:           DefaultScoringWeights(),
		Reliability:       DefaultReliabilityConfig(),
		Cache:             DefaultCacheConfig(),
		Batch:             DefaultBatchConfig(),
		RedisURL:          os.Getenv("REDIS_URL"),
	}

	if v := os.Getenv("ELEVRESOLVE_WEIGHT_RESOLUTION"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, model.NewError(model.KindConfigError, "invalid ELEVRESOLVE_WEIGHT_RESOLUTION", err)
		}
		cfg.Weights.Resolution = f
	}
	if v := os.Getenv("ELEVRESOLVE_WEIGHT_TEMPORAL"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, model.NewError(model.KindConfigError, "invalid ELEVRESOLVE_WEIGHT_TEMPORAL", err)
		}
		cfg.Weights.Temporal = f
	}
	if v := os.Getenv("ELEVRESOLVE_WEIGHT_SPATIAL"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, model.NewError(model.KindConfigError, "invalid ELEVRESOLVE_WEIGHT_SPATIAL", err)
		}
		cfg.Weights.Spatial = f
	}
	if v := os.Getenv("ELEVRESOLVE_WEIGHT_PROVIDER"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, model.NewError(model.KindConfigError, "invalid ELEVRESOLVE_WEIGHT_PROVIDER", err)
		}
		cfg.Weights.Provider = f
	}
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}

	if err := cfg.loadProviders(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
