// Package config loads the engine's environment-driven configuration
// (spec §6). Everything has a default except the two upstream URLs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the fully resolved, validated process configuration.
type Config struct {
	Port int

	UpstreamDefaultURL  string
	UpstreamFallbackURL string
	UpstreamPayPath     string

	AuthHeaderName  string
	AuthHeaderValue string

	RequestTimeout time.Duration
	HedgeDelay     time.Duration

	ConcurrencyLimit int

	CBFailRate    float64
	CBMinSamples  int
	CBOpenSeconds time.Duration

	CacheCapacity int
	CacheTTL      time.Duration

	// RedisAddr, when non-empty, enables the optional async idempotency
	// mirror. Not part of spec §6's table; an operational addition (see
	// SPEC_FULL.md §11).
	RedisAddr string
}

// Load reads configuration from the process environment, applying
// defaults and validating required fields and value ranges.
func Load() (Config, error) {
	cfg := Config{
		UpstreamPayPath:  "/payments",
		RequestTimeout:   50 * time.Millisecond,
		HedgeDelay:       5 * time.Millisecond,
		ConcurrencyLimit: 2048,
		CBFailRate:       0.30,
		CBMinSamples:     20,
		CBOpenSeconds:    5 * time.Second,
		CacheCapacity:    500_000,
		CacheTTL:         30 * time.Second,
	}

	var err error
	if cfg.Port, err = intEnv("PORT", 9999); err != nil {
		return Config{}, err
	}

	cfg.UpstreamDefaultURL = os.Getenv("UPSTREAM_A_URL")
	if cfg.UpstreamDefaultURL == "" {
		return Config{}, fmt.Errorf("config: UPSTREAM_A_URL is required")
	}
	cfg.UpstreamFallbackURL = os.Getenv("UPSTREAM_B_URL")
	if cfg.UpstreamFallbackURL == "" {
		return Config{}, fmt.Errorf("config: UPSTREAM_B_URL is required")
	}
	if v, ok := os.LookupEnv("UPSTREAM_PAY_PATH"); ok {
		cfg.UpstreamPayPath = v
	}

	cfg.AuthHeaderName = os.Getenv("AUTH_HEADER_NAME")
	cfg.AuthHeaderValue = os.Getenv("AUTH_HEADER_VALUE")

	if ms, err := intEnv("REQUEST_TIMEOUT_MS", 50); err != nil {
		return Config{}, err
	} else {
		cfg.RequestTimeout = time.Duration(ms) * time.Millisecond
	}
	if ms, err := intEnv("HEDGE_DELAY_MS", 5); err != nil {
		return Config{}, err
	} else {
		cfg.HedgeDelay = time.Duration(ms) * time.Millisecond
	}
	if cfg.HedgeDelay >= cfg.RequestTimeout {
		return Config{}, fmt.Errorf("config: HEDGE_DELAY_MS must be less than REQUEST_TIMEOUT_MS")
	}

	if cfg.ConcurrencyLimit, err = intEnv("CONCURRENCY_LIMIT", 2048); err != nil {
		return Config{}, err
	}

	if v, ok := os.LookupEnv("CB_FAIL_RATE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("config: CB_FAIL_RATE: %w", err)
		}
		cfg.CBFailRate = f
	}
	if cfg.CBMinSamples, err = intEnv("CB_MIN_SAMPLES", 20); err != nil {
		return Config{}, err
	}
	if secs, err := intEnv("CB_OPEN_SECS", 5); err != nil {
		return Config{}, err
	} else {
		cfg.CBOpenSeconds = time.Duration(secs) * time.Second
	}

	if cfg.CacheCapacity, err = intEnv("CACHE_CAPACITY", 500_000); err != nil {
		return Config{}, err
	}
	if secs, err := intEnv("CACHE_TTL_SECONDS", 30); err != nil {
		return Config{}, err
	} else {
		cfg.CacheTTL = time.Duration(secs) * time.Second
	}

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")

	return cfg, nil
}

func intEnv(name string, def int) (int, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", name, err)
	}
	return n, nil
}
