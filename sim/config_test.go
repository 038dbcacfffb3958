package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfig_IsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestLoadConfig_OverlaysDefaults(t *testing.T) {
	// GIVEN a file that sets only some fields
	path := writeConfig(t, "lps: 8\nbuffer_size: 2\nterminal: 250\nhistory_db: runs.db\n")

	// WHEN loaded
	cfg, err := LoadConfig(path)

	// THEN file values win and the rest keep their defaults
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.LPs)
	assert.Equal(t, 2, cfg.BufferSize)
	assert.Equal(t, Time(250), cfg.Terminal)
	assert.Equal(t, "runs.db", cfg.HistoryDB)
	assert.Equal(t, DefaultConfig().LogSlots, cfg.LogSlots)
	assert.Equal(t, DefaultConfig().Workload, cfg.Workload)
}

func TestLoadConfig_UnknownKey_Rejected(t *testing.T) {
	path := writeConfig(t, "lps: 2\nbuffer: 4\n")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero lps", func(c *Config) { c.LPs = 0 }},
		{"zero buffer", func(c *Config) { c.BufferSize = 0 }},
		{"zero log slots", func(c *Config) { c.LogSlots = 0 }},
		{"zero calendar slots", func(c *Config) { c.CalendarSlots = 0 }},
		{"zero timestep", func(c *Config) { c.Timestep = 0 }},
		{"unknown workload", func(c *Config) { c.Workload = "nbody" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
