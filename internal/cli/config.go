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

package cli

import (
	"fmt"

	"github.com/jeremyhahn/go-josekit/internal/config"
	"github.com/jeremyhahn/go-josekit/pkg/adapters/logger"
	"github.com/jeremyhahn/go-josekit/pkg/jose"
	"github.com/jeremyhahn/go-josekit/pkg/memory"
)

// Config holds global CLI configuration
type Config struct {
	// ConfigFile is the path to the engine configuration file
	ConfigFile string

	// OutputFormat controls output formatting (json, text, table)
	OutputFormat string

	// Verbose enables verbose logging
	Verbose bool
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		OutputFormat: string(OutputFormatText),
		Verbose:      false,
	}
}

// Validate checks the global flags.
func (c *Config) Validate() error {
	switch OutputFormat(c.OutputFormat) {
	case OutputFormatText, OutputFormatJSON, OutputFormatTable:
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", c.OutputFormat)
	}
}

// session is the engine a single command runs against. Close disposes the
// pool and every key rented from it.
type session struct {
	engine *config.Config
	log    logger.Logger
	pool   *memory.Pool
	enc    *jose.Encoder
	dec    *jose.Decoder
}

// openSession loads the engine configuration and builds an encoder and
// decoder sharing one pool.
func (c *Config) openSession() (*session, error) {
	engineCfg, err := config.Load(c.ConfigFile)
	if err != nil {
		return nil, err
	}
	if c.Verbose {
		engineCfg.Logging.Level = "debug"
	}

	log := engineCfg.NewLogger()
	pool := engineCfg.NewPool(log)
	joseCfg := engineCfg.EngineConfig(pool, log)

	enc, err := jose.NewEncoder(joseCfg)
	if err != nil {
		pool.Dispose()
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}
	dec, err := jose.NewDecoder(joseCfg)
	if err != nil {
		pool.Dispose()
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	return &session{
		engine: engineCfg,
		log:    log,
		pool:   pool,
		enc:    enc,
		dec:    dec,
	}, nil
}

// Close releases the session's pool.
func (s *session) Close() {
	s.pool.Dispose()
}
