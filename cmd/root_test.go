package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugawarayuuta/sonnet"

	"github.com/aika-sim/aika/sim"
)

// newTestRunCmd returns a fresh command bound to the package flag
// variables, reset to their defaults.
func newTestRunCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "run"}
	registerRunFlags(cmd)
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func smallConfig(workload string) sim.Config {
	cfg := sim.DefaultConfig()
	cfg.LPs = 3
	cfg.BufferSize = 8
	cfg.Terminal = 60
	cfg.Workload = workload
	return cfg
}

func TestResolveConfig_FlagsOverrideFile(t *testing.T) {
	// GIVEN a config file setting lps and terminal
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("lps: 6\nterminal: 500\nworkload: gbm\n"), 0o644))

	// WHEN only --terminal is passed explicitly
	cmd := newTestRunCmd(t, "--config", path, "--terminal", "90")
	cfg, err := resolveConfig(cmd)

	// THEN the flag wins and the file provides the rest
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.LPs)
	assert.Equal(t, sim.Time(90), cfg.Terminal)
	assert.Equal(t, "gbm", cfg.Workload)
	assert.Equal(t, sim.DefaultConfig().BufferSize, cfg.BufferSize)
}

func TestResolveConfig_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"zero lps", []string{"--lps", "0"}},
		{"unknown workload", []string{"--workload", "nbody"}},
		{"unknown output", []string{"--output", "xml"}},
		{"unknown trace level", []string{"--trace", "verbose"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := resolveConfig(newTestRunCmd(t, tc.args...))
			assert.Error(t, err)
		})
	}
}

func TestRunSimulation_TextOutput_PrintsMetrics(t *testing.T) {
	newTestRunCmd(t, "--trace", "all")
	var buf bytes.Buffer

	require.NoError(t, runSimulation(smallConfig("relay"), &buf))

	out := buf.String()
	assert.Contains(t, out, "=== Simulation Metrics ===")
	assert.Contains(t, out, "Final GVT            : 60")
	assert.Contains(t, out, "Trace:")
}

func runJSON(t *testing.T, cfg sim.Config, args ...string) summary {
	t.Helper()
	newTestRunCmd(t, append([]string{"--output", "json"}, args...)...)
	var buf bytes.Buffer
	require.NoError(t, runSimulation(cfg, &buf))
	var s summary
	require.NoError(t, sonnet.Unmarshal(buf.Bytes(), &s))
	return s
}

func TestRunSimulation_SameSeed_SameCommittedStates(t *testing.T) {
	for _, workload := range []string{"relay", "gbm"} {
		t.Run(workload, func(t *testing.T) {
			// GIVEN two runs with the same seed
			a := runJSON(t, smallConfig(workload))
			b := runJSON(t, smallConfig(workload))

			// THEN every LP ends in the same state, whatever the interleaving
			require.Len(t, a.StateDigests, 3)
			assert.Equal(t, a.StateDigests, b.StateDigests)
			assert.GreaterOrEqual(t, a.Metrics.GVT, sim.Time(60))
		})
	}
}

func TestRunSimulation_DifferentSeeds_DifferentStates(t *testing.T) {
	cfg := smallConfig("gbm")
	a := runJSON(t, cfg)
	cfg.Seed = 7
	b := runJSON(t, cfg)
	assert.NotEqual(t, a.StateDigests, b.StateDigests)
}

func TestRunSimulation_HistoryDBAndTraceFile(t *testing.T) {
	dir := t.TempDir()
	cfg := smallConfig("relay")
	cfg.HistoryDB = filepath.Join(dir, "history.db")
	tracePath := filepath.Join(dir, "trace.json")

	s := runJSON(t, cfg, "--trace", "rollbacks", "--trace-out", tracePath)

	assert.NotEmpty(t, s.RunID)
	assert.NotNil(t, s.Trace)
	data, err := os.ReadFile(tracePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"rollbacks"`)
	_, err = os.Stat(cfg.HistoryDB)
	assert.NoError(t, err)
}

func TestNewWorkload_Unknown(t *testing.T) {
	_, err := newWorkload("nbody", 1, 2)
	assert.Error(t, err)
}

func TestGBM_StepIsReplayable(t *testing.T) {
	// re-executing a step from the same state yields the same bytes
	build, err := newWorkload("gbm", sim.NewSimulationKey(3), 1)
	require.NoError(t, err)
	lp := build(0)

	s1 := sim.NewState(0, nil)
	s1.Begin(4)
	lp.Step(4, s1)
	s2 := sim.NewState(0, nil)
	s2.Begin(4)
	lp.Step(4, s2)

	assert.Equal(t, s1.Bytes(), s2.Bytes())
	var st gbmState
	require.NoError(t, sonnet.Unmarshal(s1.Bytes(), &st))
	assert.Equal(t, uint64(1), st.Steps)
	assert.NotEqual(t, 100.0, st.Value)
}
