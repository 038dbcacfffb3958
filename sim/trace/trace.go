package trace

import (
	"fmt"
	"io"

	"github.com/sugawarayuuta/sonnet"
)

// TraceLevel controls the verbosity of run tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelRollbacks captures every rollback performed by any LP.
	TraceLevelRollbacks TraceLevel = "rollbacks"
	// TraceLevelAll captures rollbacks and every GVT advance.
	TraceLevelAll TraceLevel = "all"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelRollbacks: true,
	TraceLevelAll:       true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects records during a run. It is not safe for
// concurrent use: each LP keeps its own and the coordinator merges them
// after the LP goroutines are joined.
type SimulationTrace struct {
	Config    TraceConfig      `json:"-"`
	GVT       []GVTRecord      `json:"gvt"`
	Rollbacks []RollbackRecord `json:"rollbacks"`
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:    config,
		GVT:       make([]GVTRecord, 0),
		Rollbacks: make([]RollbackRecord, 0),
	}
}

// RecordGVT appends a GVT record when the level includes GVT advances.
func (st *SimulationTrace) RecordGVT(record GVTRecord) {
	if st == nil || st.Config.Level != TraceLevelAll {
		return
	}
	st.GVT = append(st.GVT, record)
}

// RecordRollback appends a rollback record unless tracing is disabled.
func (st *SimulationTrace) RecordRollback(record RollbackRecord) {
	if st == nil || st.Config.Level == TraceLevelNone || st.Config.Level == "" {
		return
	}
	st.Rollbacks = append(st.Rollbacks, record)
}

// Merge appends the records of other.
func (st *SimulationTrace) Merge(other *SimulationTrace) {
	if st == nil || other == nil {
		return
	}
	st.GVT = append(st.GVT, other.GVT...)
	st.Rollbacks = append(st.Rollbacks, other.Rollbacks...)
}

// WriteJSON encodes the trace to w.
func (st *SimulationTrace) WriteJSON(w io.Writer) error {
	data, err := sonnet.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding trace: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing trace: %w", err)
	}
	return nil
}
