// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-josekit.
//
// go-josekit is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package config loads the engine configuration from YAML with JOSE_*
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-josekit/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-josekit/pkg/adapters/logger"
	"github.com/jeremyhahn/go-josekit/pkg/crypto/aead"
	"github.com/jeremyhahn/go-josekit/pkg/jose"
	"github.com/jeremyhahn/go-josekit/pkg/jose/jwe"
	"github.com/jeremyhahn/go-josekit/pkg/jose/zip"
	"github.com/jeremyhahn/go-josekit/pkg/memory"
	"github.com/jeremyhahn/go-josekit/pkg/metrics"
)

// Config represents the complete engine configuration
type Config struct {
	Pool    PoolConfig    `yaml:"pool"`
	JOSE    JOSEConfig    `yaml:"jose"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// PoolConfig controls the secure memory pool
type PoolConfig struct {
	MaxRetained          int           `yaml:"max_retained"`
	HousekeepingInterval time.Duration `yaml:"housekeeping_interval"` // 0 disables housekeeping
	HighPressureLoad     float64       `yaml:"high_pressure_load"`
	TrimRatio            float64       `yaml:"trim_ratio"`
	LockMemory           bool          `yaml:"lock_memory"`
}

// JOSEConfig controls encoder and decoder behavior
type JOSEConfig struct {
	PBES2Iterations          int      `yaml:"pbes2_iterations"`
	MaxPBES2Iterations       int      `yaml:"max_pbes2_iterations"`
	MaxDecompressedSize      int      `yaml:"max_decompressed_size"`
	AllowUnsecured           bool     `yaml:"allow_unsecured"`
	DefaultContentEncryption string   `yaml:"default_content_encryption"` // empty selects by CPU features
	AllowedAlgorithms        []string `yaml:"allowed_algorithms,omitempty"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls Prometheus instrumentation
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Pool: PoolConfig{
			MaxRetained:          memory.DefaultMaxRetained,
			HousekeepingInterval: memory.DefaultHousekeepingInterval,
			HighPressureLoad:     memory.DefaultHighPressureLoad,
			TrimRatio:            memory.DefaultTrimRatio,
			LockMemory:           true,
		},
		JOSE: JOSEConfig{
			PBES2Iterations:     jwe.DefaultPBES2Iterations,
			MaxPBES2Iterations:  jwe.DefaultMaxPBES2Iterations,
			MaxDecompressedSize: zip.DefaultMaxDecompressedSize,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load reads configuration from a YAML file over the defaults and applies
// environment variable overrides. An empty path loads only the defaults
// and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		// #nosec G304 - Config file path is provided by the user
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies JOSE_* environment variables to cfg
func applyEnvOverrides(cfg *Config) error {
	ints := map[string]*int{
		"JOSE_POOL_MAX_RETAINED":     &cfg.Pool.MaxRetained,
		"JOSE_PBES2_ITERATIONS":      &cfg.JOSE.PBES2Iterations,
		"JOSE_MAX_PBES2_ITERATIONS":  &cfg.JOSE.MaxPBES2Iterations,
		"JOSE_MAX_DECOMPRESSED_SIZE": &cfg.JOSE.MaxDecompressedSize,
	}
	for name, dst := range ints {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", name, err)
			}
			*dst = n
		}
	}

	bools := map[string]*bool{
		"JOSE_POOL_LOCK_MEMORY": &cfg.Pool.LockMemory,
		"JOSE_ALLOW_UNSECURED":  &cfg.JOSE.AllowUnsecured,
		"JOSE_METRICS_ENABLED":  &cfg.Metrics.Enabled,
	}
	for name, dst := range bools {
		if v := os.Getenv(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", name, err)
			}
			*dst = b
		}
	}

	if v := os.Getenv("JOSE_POOL_HOUSEKEEPING_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid JOSE_POOL_HOUSEKEEPING_INTERVAL: %w", err)
		}
		cfg.Pool.HousekeepingInterval = d
	}
	if v := os.Getenv("JOSE_DEFAULT_CONTENT_ENCRYPTION"); v != "" {
		cfg.JOSE.DefaultContentEncryption = v
	}
	if v := os.Getenv("JOSE_ALLOWED_ALGORITHMS"); v != "" {
		cfg.JOSE.AllowedAlgorithms = strings.Split(v, ",")
	}
	if v := os.Getenv("JOSE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("JOSE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Pool.MaxRetained < 0 {
		return fmt.Errorf("invalid pool max_retained: %d", c.Pool.MaxRetained)
	}
	if c.Pool.HousekeepingInterval < 0 {
		return fmt.Errorf("invalid pool housekeeping_interval: %s", c.Pool.HousekeepingInterval)
	}
	if c.Pool.HighPressureLoad <= 0 || c.Pool.HighPressureLoad > 1 {
		return fmt.Errorf("invalid pool high_pressure_load: %v (must be in (0, 1])", c.Pool.HighPressureLoad)
	}
	if c.Pool.TrimRatio <= 0 || c.Pool.TrimRatio > 1 {
		return fmt.Errorf("invalid pool trim_ratio: %v (must be in (0, 1])", c.Pool.TrimRatio)
	}

	if c.JOSE.PBES2Iterations < kdf.MinPBKDF2Iterations {
		return fmt.Errorf("invalid jose pbes2_iterations: %d (minimum %d)", c.JOSE.PBES2Iterations, kdf.MinPBKDF2Iterations)
	}
	if c.JOSE.MaxPBES2Iterations < c.JOSE.PBES2Iterations {
		return fmt.Errorf("invalid jose max_pbes2_iterations: %d is below pbes2_iterations %d",
			c.JOSE.MaxPBES2Iterations, c.JOSE.PBES2Iterations)
	}
	if c.JOSE.MaxDecompressedSize <= 0 {
		return fmt.Errorf("invalid jose max_decompressed_size: %d", c.JOSE.MaxDecompressedSize)
	}
	if enc := c.JOSE.DefaultContentEncryption; enc != "" && !slices.Contains(aead.Codes(), enc) {
		return fmt.Errorf("invalid jose default_content_encryption: %s (must be one of %s)",
			enc, strings.Join(aead.Codes(), ", "))
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	validFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}
	return nil
}

// NewLogger builds the configured structured logger.
func (c *Config) NewLogger() logger.Logger {
	return logger.NewSlogAdapter(&logger.SlogConfig{
		Level:  logger.ParseLevel(c.Logging.Level),
		Format: c.Logging.Format,
	})
}

// NewPool creates a secure memory pool from the pool section. The caller
// disposes it.
func (c *Config) NewPool(log logger.Logger) *memory.Pool {
	pc := &memory.PoolConfig{
		MaxRetained:       c.Pool.MaxRetained,
		DisableMemoryLock: !c.Pool.LockMemory,
		Logger:            log,
	}
	if c.Pool.HousekeepingInterval > 0 {
		pc.Housekeeping = &memory.HousekeepingConfig{
			Interval:         c.Pool.HousekeepingInterval,
			HighPressureLoad: c.Pool.HighPressureLoad,
			TrimRatio:        c.Pool.TrimRatio,
		}
	}
	return memory.NewPool(pc)
}

// EngineConfig maps the jose section onto an engine configuration and
// applies the metrics switch.
func (c *Config) EngineConfig(pool *memory.Pool, log logger.Logger) *jose.Config {
	if c.Metrics.Enabled {
		metrics.Enable()
	} else {
		metrics.Disable()
	}
	return &jose.Config{
		Pool:                     pool,
		Logger:                   log,
		PBES2Iterations:          c.JOSE.PBES2Iterations,
		MaxPBES2Iterations:       c.JOSE.MaxPBES2Iterations,
		MaxDecompressedSize:      c.JOSE.MaxDecompressedSize,
		DefaultContentEncryption: c.JOSE.DefaultContentEncryption,
		AllowUnsecured:           c.JOSE.AllowUnsecured,
		AllowedAlgorithms:        c.JOSE.AllowedAlgorithms,
	}
}
