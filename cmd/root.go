package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/sugawarayuuta/sonnet"

	"github.com/aika-sim/aika/sim"
	"github.com/aika-sim/aika/sim/gvt"
	"github.com/aika-sim/aika/sim/store"
	"github.com/aika-sim/aika/sim/trace"
)

var (
	configPath    string // YAML engine config
	lps           int    // Number of logical processes
	bufferSize    int    // Slots per ring buffer
	logSlots      int    // History entries per LP
	calendarSlots int    // Pending wakes per LP
	timestep      uint64 // Fallback stride for events that do not move time
	terminal      uint64 // Run until GVT reaches this time
	seed          int64  // Seed for the built-in workloads
	workloadName  string // Built-in workload
	historyDB     string // SQLite path for committed snapshots
	logLevel      string // Log verbosity level
	outputFormat  string // text or json
	traceLevel    string // Trace verbosity level
	traceOut      string // File for the JSON trace
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "aika",
	Short: "Optimistic parallel discrete-event simulation engine",
}

// runCmd executes a built-in workload using parameters from the config file and CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a built-in workload on the parallel engine",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg, err := resolveConfig(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := runSimulation(cfg, os.Stdout); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		logrus.Info("Simulation complete.")
	},
}

// resolveConfig loads the config file, if any, and applies explicitly set flags on top.
func resolveConfig(cmd *cobra.Command) (sim.Config, error) {
	cfg := sim.DefaultConfig()
	if configPath != "" {
		loaded, err := sim.LoadConfig(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	flags := cmd.Flags()
	if flags.Changed("lps") {
		cfg.LPs = lps
	}
	if flags.Changed("buffer-size") {
		cfg.BufferSize = bufferSize
	}
	if flags.Changed("log-slots") {
		cfg.LogSlots = logSlots
	}
	if flags.Changed("calendar-slots") {
		cfg.CalendarSlots = calendarSlots
	}
	if flags.Changed("timestep") {
		cfg.Timestep = timestep
	}
	if flags.Changed("terminal") {
		cfg.Terminal = terminal
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("workload") {
		cfg.Workload = workloadName
	}
	if flags.Changed("history-db") {
		cfg.HistoryDB = historyDB
	}
	if outputFormat != "text" && outputFormat != "json" {
		return cfg, fmt.Errorf("unknown output format %q", outputFormat)
	}
	if !trace.IsValidTraceLevel(traceLevel) {
		return cfg, fmt.Errorf("unknown trace level %q", traceLevel)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// summary is the JSON form of a finished run.
type summary struct {
	RunID           string              `json:"run_id,omitempty"`
	Workload        string              `json:"workload"`
	Seed            int64               `json:"seed"`
	EventsProcessed uint64              `json:"events_processed"`
	Rollbacks       uint64              `json:"rollbacks"`
	EventsPerSecond float64             `json:"events_per_second"`
	Metrics         *sim.Metrics        `json:"metrics"`
	StateDigests    []string            `json:"state_digests"`
	Trace           *trace.TraceSummary `json:"trace,omitempty"`
}

// runSimulation runs cfg's workload to completion and writes the summary to w.
func runSimulation(cfg sim.Config, w io.Writer) error {
	build, err := newWorkload(cfg.Workload, sim.NewSimulationKey(cfg.Seed), cfg.LPs)
	if err != nil {
		return err
	}

	opts := []gvt.Option{gvt.WithTrace(trace.TraceConfig{Level: trace.TraceLevel(traceLevel)})}
	var db *store.Store
	if cfg.HistoryDB != "" {
		db, err = store.Open(cfg.HistoryDB, store.RunInfo{
			LPs: cfg.LPs, Terminal: cfg.Terminal, Seed: cfg.Seed, Workload: cfg.Workload,
		})
		if err != nil {
			return fmt.Errorf("opening history db: %w", err)
		}
		defer db.Close()
		opts = append(opts, gvt.WithRecorder(db))
		logrus.Infof("Recording committed snapshots to %s (run %s)", cfg.HistoryDB, db.RunID())
	}

	c := gvt.NewCoordinator(cfg, opts...)
	for i := 0; i < cfg.LPs; i++ {
		if _, err := c.SpawnProcess(build(i), cfg.Timestep, cfg.LogSlots); err != nil {
			return err
		}
	}
	if err := c.InitComms(); err != nil {
		return err
	}

	logrus.Infof("Starting %s workload: lps=%d, buffer=%d, log_slots=%d, terminal=%d",
		cfg.Workload, cfg.LPs, cfg.BufferSize, cfg.LogSlots, cfg.Terminal)
	res, err := c.Run(cfg.Terminal)
	if err != nil {
		return err
	}

	if traceOut != "" {
		if err := writeTrace(traceOut, res.Trace); err != nil {
			return err
		}
	}

	var traceSummary *trace.TraceSummary
	if traceLevel != "" && traceLevel != string(trace.TraceLevelNone) {
		traceSummary = trace.Summarize(res.Trace)
	}

	if outputFormat == "json" {
		s := summary{
			Workload:        cfg.Workload,
			Seed:            cfg.Seed,
			EventsProcessed: res.Metrics.EventsProcessed(),
			Rollbacks:       res.Metrics.Rollbacks(),
			Metrics:         res.Metrics,
			StateDigests:    stateDigests(res.Metrics),
			Trace:           traceSummary,
		}
		if secs := res.Metrics.WallTime.Seconds(); secs > 0 {
			s.EventsPerSecond = float64(s.EventsProcessed) / secs
		}
		if db != nil {
			s.RunID = db.RunID()
		}
		data, err := sonnet.Marshal(s)
		if err != nil {
			return fmt.Errorf("encoding summary: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	res.Metrics.Print(w)
	if traceSummary != nil {
		fmt.Fprintf(w, "Trace: %d rollbacks (%d straggler, %d antimessage), mean undone %.2f, %d GVT advances\n",
			traceSummary.TotalRollbacks, traceSummary.StragglerCount, traceSummary.AntiMessageCount,
			traceSummary.MeanUndone, traceSummary.GVTAdvances)
	}
	return nil
}

// stateDigests returns the hex SHA3-256 of each LP's final state.
func stateDigests(m *sim.Metrics) []string {
	out := make([]string, len(m.PerLP))
	for i, s := range m.PerLP {
		d := store.Digest(s.FinalState)
		out[i] = hex.EncodeToString(d[:])
	}
	return out
}

func writeTrace(path string, st *trace.SimulationTrace) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating trace file: %w", err)
	}
	defer f.Close()
	if err := st.WriteJSON(f); err != nil {
		return err
	}
	logrus.Infof("Trace written to %s", path)
	return nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// registerRunFlags binds the run flags of cmd to the package flag variables.
func registerRunFlags(cmd *cobra.Command) {
	def := sim.DefaultConfig()
	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "YAML engine config; flags override its values")
	f.IntVar(&lps, "lps", def.LPs, "Number of logical processes")
	f.IntVar(&bufferSize, "buffer-size", def.BufferSize, "Slots per ring buffer")
	f.IntVar(&logSlots, "log-slots", def.LogSlots, "History snapshots kept per LP")
	f.IntVar(&calendarSlots, "calendar-slots", def.CalendarSlots, "Pending wake times per LP")
	f.Uint64Var(&timestep, "timestep", def.Timestep, "Stride used when an event does not move time forward")
	f.Uint64Var(&terminal, "terminal", def.Terminal, "Terminal simulated time")
	f.Int64Var(&seed, "seed", def.Seed, "Seed for the built-in workloads")
	f.StringVar(&workloadName, "workload", def.Workload, "Built-in workload (relay, gbm)")
	f.StringVar(&historyDB, "history-db", "", "SQLite file receiving committed snapshots")
	f.StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	f.StringVar(&outputFormat, "output", "text", "Summary format (text, json)")
	f.StringVar(&traceLevel, "trace", "none", "Trace level (none, rollbacks, all)")
	f.StringVar(&traceOut, "trace-out", "", "Write the run trace as JSON to this file")
}

// init sets up CLI flags and subcommands
func init() {
	registerRunFlags(runCmd)

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
