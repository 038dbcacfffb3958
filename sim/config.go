package sim

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config groups the engine parameters, loadable from a YAML file.
type Config struct {
	LPs           int    `yaml:"lps"`            // number of LP slots; InitComms requires all filled
	BufferSize    int    `yaml:"buffer_size"`    // slots per ring buffer (must be > 0)
	LogSlots      int    `yaml:"log_slots"`      // history entries kept per LP (must be > 0)
	CalendarSlots int    `yaml:"calendar_slots"` // pending wakes per LP (must be > 0)
	Timestep      Time   `yaml:"timestep"`       // fallback stride when an event is not in the future
	Terminal      Time   `yaml:"terminal"`       // run stops once GVT reaches this time
	Seed          int64  `yaml:"seed"`           // seed for built-in workloads
	Workload      string `yaml:"workload"`       // built-in workload name (CLI only)
	HistoryDB     string `yaml:"history_db"`     // SQLite path for committed snapshots; empty disables
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		LPs:           4,
		BufferSize:    64,
		LogSlots:      256,
		CalendarSlots: 16,
		Timestep:      1,
		Terminal:      1000,
		Seed:          42,
		Workload:      "relay",
	}
}

// LoadConfig reads a YAML config file on top of DefaultConfig.
// Unknown keys are rejected so typos surface as errors.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading engine config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing engine config: %w", err)
	}
	return cfg, nil
}

// ValidWorkloads is the set of recognized built-in workload names.
var ValidWorkloads = map[string]bool{"": true, "relay": true, "gbm": true}

// Validate checks parameter ranges.
func (c Config) Validate() error {
	if c.LPs < 1 {
		return fmt.Errorf("lps must be positive, got %d", c.LPs)
	}
	if c.BufferSize < 1 {
		return fmt.Errorf("buffer_size must be positive, got %d", c.BufferSize)
	}
	if c.LogSlots < 1 {
		return fmt.Errorf("log_slots must be positive, got %d", c.LogSlots)
	}
	if c.CalendarSlots < 1 {
		return fmt.Errorf("calendar_slots must be positive, got %d", c.CalendarSlots)
	}
	if c.Timestep == 0 {
		return fmt.Errorf("timestep must be positive")
	}
	if !ValidWorkloads[c.Workload] {
		return fmt.Errorf("unknown workload %q", c.Workload)
	}
	return nil
}
