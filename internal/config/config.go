// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Veltrix Contributors

// Package config loads host-level dispatch settings (rate limiting tuning,
// telemetry, the default name comparer) from an optional YAML file layered
// under environment-variable overrides, using koanf as the teacher's
// command package would a configuration layer it never had occasion to
// build.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/veltrix/dispatch/internal/argsource"
	"github.com/veltrix/dispatch/internal/condition"
)

// envPrefix is prepended to each override name applyEnvOverrides looks up,
// e.g. DISPATCH_RATELIMIT_BURST overrides the file's ratelimit.burst. The
// environment is read directly into Config, not merged into the koanf tree.
const envPrefix = "DISPATCH_"

// Config is the subset of host behavior this module exposes as
// configuration rather than code: rate-limiter tuning, the default
// comparer for named arguments, and structured-logging verbosity.
type Config struct {
	NameComparer   argsource.Comparer
	LogLevel       string
	RateLimiter    condition.RateLimiterConfig
	MetricsEnabled bool
	MetricsAddr    string
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() Config {
	return Config{
		NameComparer: argsource.OrdinalIgnoreCase,
		LogLevel:     "info",
		RateLimiter: condition.RateLimiterConfig{
			BurstCapacity: condition.DefaultBurstCapacity,
			SustainedRate: condition.DefaultSustainedRate,
		},
		MetricsEnabled: false,
		MetricsAddr:    ":9090",
	}
}

// Load reads path (a YAML file) if it exists, applies DISPATCH_*
// environment overrides, and returns the merged Config. A missing file is
// not an error — Default() plus environment overrides is a valid outcome
// for a host that configures entirely via environment.
func Load(path string) (Config, error) {
	cfg := Default()

	k := koanf.New(".")
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, err
		}
	}

	if k.Exists("name_comparer") && strings.EqualFold(k.String("name_comparer"), "ordinal") {
		cfg.NameComparer = argsource.Ordinal
	}
	if k.Exists("log_level") {
		cfg.LogLevel = k.String("log_level")
	}
	if k.Exists("ratelimit.burst") {
		cfg.RateLimiter.BurstCapacity = k.Int("ratelimit.burst")
	}
	if k.Exists("ratelimit.sustained_rate") {
		cfg.RateLimiter.SustainedRate = k.Float64("ratelimit.sustained_rate")
	}
	if k.Exists("ratelimit.session_max_age") {
		cfg.RateLimiter.SessionMaxAge = k.Duration("ratelimit.session_max_age")
	}
	if k.Exists("metrics.enabled") {
		cfg.MetricsEnabled = k.Bool("metrics.enabled")
	}
	if k.Exists("metrics.addr") {
		cfg.MetricsAddr = k.String("metrics.addr")
	}

	// Environment overrides apply last so a host can override a checked-in
	// file without editing it.
	applyEnvOverrides(&cfg)

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := lookupEnv("NAME_COMPARER"); ok && strings.EqualFold(v, "ordinal") {
		cfg.NameComparer = argsource.Ordinal
	}
	if v, ok := lookupEnv("LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := lookupEnv("RATELIMIT_BURST"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimiter.BurstCapacity = n
		}
	}
	if v, ok := lookupEnv("RATELIMIT_SUSTAINED_RATE"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimiter.SustainedRate = f
		}
	}
	if v, ok := lookupEnv("RATELIMIT_SESSION_MAX_AGE"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RateLimiter.SessionMaxAge = d
		}
	}
	if v, ok := lookupEnv("METRICS_ENABLED"); ok {
		cfg.MetricsEnabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v, ok := lookupEnv("METRICS_ADDR"); ok {
		cfg.MetricsAddr = v
	}
}

func lookupEnv(suffix string) (string, bool) {
	return os.LookupEnv(envPrefix + suffix)
}
