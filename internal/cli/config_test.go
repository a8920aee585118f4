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
	"os"
	"path/filepath"
	"testing"
)

// testEngineConfig is a fast engine configuration for command tests.
const testEngineConfig = `pool:
  max_retained: 8
  housekeeping_interval: 0s
  lock_memory: false
jose:
  pbes2_iterations: 1000
  max_pbes2_iterations: 10000
logging:
  level: error
  format: text
metrics:
  enabled: true
`

// newTestConfig returns a CLI config backed by testEngineConfig.
func newTestConfig(t *testing.T, format string) *Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jose.yaml")
	if err := os.WriteFile(path, []byte(testEngineConfig), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	cfg := NewConfig()
	cfg.ConfigFile = path
	cfg.OutputFormat = format
	return cfg
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	if cfg.OutputFormat != "text" {
		t.Errorf("OutputFormat = %v, want text", cfg.OutputFormat)
	}
	if cfg.Verbose {
		t.Error("Verbose should be false by default")
	}
	if cfg.ConfigFile != "" {
		t.Errorf("ConfigFile should be empty by default, got %v", cfg.ConfigFile)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		wantErr bool
	}{
		{"text", "text", false},
		{"json", "json", false},
		{"table", "table", false},
		{"yaml", "yaml", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			cfg.OutputFormat = tt.format

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_OpenSession(t *testing.T) {
	cfg := newTestConfig(t, "text")

	s, err := cfg.openSession()
	if err != nil {
		t.Fatalf("openSession() returned error: %v", err)
	}
	defer s.Close()

	if s.enc == nil || s.dec == nil {
		t.Fatal("openSession() returned a session without encoder or decoder")
	}
	if s.engine.JOSE.PBES2Iterations != 1000 {
		t.Errorf("PBES2Iterations = %d, want 1000", s.engine.JOSE.PBES2Iterations)
	}
	if s.engine.Pool.LockMemory {
		t.Error("LockMemory should be false from the config file")
	}
}

func TestConfig_OpenSession_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		cfg := NewConfig()
		cfg.ConfigFile = filepath.Join(t.TempDir(), "missing.yaml")

		if _, err := cfg.openSession(); err == nil {
			t.Error("openSession() should fail for a missing config file")
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("jose:\n  pbes2_iterations: 1\n"), 0600); err != nil {
			t.Fatal(err)
		}
		cfg := NewConfig()
		cfg.ConfigFile = path

		if _, err := cfg.openSession(); err == nil {
			t.Error("openSession() should reject too few PBES2 iterations")
		}
	})
}
