// Package config holds the settings of a simulation run.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sarchlab/mpsim/dcache"
	"github.com/sarchlab/mpsim/mon"
)

// DataCacheConfig enables and sizes the per-CPU L1 data cache model.
type DataCacheConfig struct {
	Enabled bool `json:"enabled"`
	dcache.Config
}

// Config holds the settings of a simulation run.
type Config struct {
	// NumCPUs is the number of simulated CPUs. Default: 1.
	NumCPUs int `json:"num_cpus"`

	// Verbosity selects the report detail. Above 1 the report breaks
	// counts down by category and includes the simulator speed. Default: 1.
	Verbosity int `json:"verbosity"`

	// MaxInstructions limits the instructions each CPU may execute.
	// 0 means no limit.
	MaxInstructions uint64 `json:"max_instructions"`

	// SliceSize is the number of instructions every CPU executes between
	// two quiescence points. Default: 10000.
	SliceSize uint64 `json:"slice_size"`

	// CheckpointEvery emits an interim report every N slices. 0 disables
	// interim reports.
	CheckpointEvery int `json:"checkpoint_every"`

	// Parallel runs the CPUs of a slice on separate goroutines.
	Parallel bool `json:"parallel"`

	// DataCache configures the L1 data cache model.
	DataCache DataCacheConfig `json:"data_cache"`

	// MetricsAddr serves Prometheus metrics when non-empty.
	MetricsAddr string `json:"metrics_addr"`
}

// DefaultConfig returns a single-CPU configuration.
func DefaultConfig() *Config {
	return &Config{
		NumCPUs:   1,
		Verbosity: 1,
		SliceSize: 10000,
		DataCache: DataCacheConfig{Config: dcache.DefaultConfig()},
	}
}

// LoadConfig loads a Config from a JSON file. Missing fields keep their
// default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the configuration before a run starts.
func (c *Config) Validate() error {
	if c.NumCPUs < 1 || c.NumCPUs > mon.MaxCPUs {
		return fmt.Errorf("num_cpus must be in [1, %d], got %d", mon.MaxCPUs, c.NumCPUs)
	}
	if c.SliceSize == 0 {
		return fmt.Errorf("slice_size must be > 0")
	}
	if c.CheckpointEvery < 0 {
		return fmt.Errorf("checkpoint_every must be >= 0")
	}
	if c.Verbosity < 0 {
		return fmt.Errorf("verbosity must be >= 0")
	}
	if c.DataCache.Enabled {
		if err := c.DataCache.Validate(); err != nil {
			return fmt.Errorf("data_cache: %w", err)
		}
	}
	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
