package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalRollbacks   int
	StragglerCount   int
	AntiMessageCount int
	MeanUndone       float64
	MaxUndone        int
	TotalCancelled   int
	GVTAdvances      int
	PerLP            map[int]int // LP → count of rollbacks
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		PerLP: make(map[int]int),
	}
	if st == nil {
		return summary
	}

	summary.GVTAdvances = len(st.GVT)
	summary.TotalRollbacks = len(st.Rollbacks)
	if len(st.Rollbacks) > 0 {
		totalUndone := 0
		for _, r := range st.Rollbacks {
			switch r.Cause {
			case CauseStraggler:
				summary.StragglerCount++
			case CauseAntiMessage:
				summary.AntiMessageCount++
			}
			summary.PerLP[r.LP]++
			summary.TotalCancelled += r.Cancelled
			totalUndone += r.Undone
			if r.Undone > summary.MaxUndone {
				summary.MaxUndone = r.Undone
			}
		}
		summary.MeanUndone = float64(totalUndone) / float64(len(st.Rollbacks))
	}

	return summary
}
