package trace

import "testing"

func TestSummarize_EmptyTrace_ZeroValues(t *testing.T) {
	// GIVEN an empty trace
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelAll})

	// WHEN summarized
	summary := Summarize(st)

	// THEN all counts are zero
	if summary.TotalRollbacks != 0 || summary.GVTAdvances != 0 {
		t.Errorf("expected zero counts, got %+v", summary)
	}
	if summary.MeanUndone != 0 || summary.MaxUndone != 0 {
		t.Error("expected 0 undone values")
	}
	if len(summary.PerLP) != 0 {
		t.Error("expected empty per-LP distribution")
	}
}

func TestSummarize_NilTrace_ZeroValues(t *testing.T) {
	summary := Summarize(nil)
	if summary == nil || summary.PerLP == nil {
		t.Fatal("expected non-nil summary with initialized map")
	}
}

func TestSummarize_PopulatedTrace_CorrectCounts(t *testing.T) {
	// GIVEN a trace with straggler and antimessage rollbacks
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelAll})
	st.RecordRollback(RollbackRecord{LP: 0, Cause: CauseStraggler, Undone: 2, Cancelled: 1})
	st.RecordRollback(RollbackRecord{LP: 1, Cause: CauseAntiMessage, Undone: 6, Cancelled: 3})
	st.RecordRollback(RollbackRecord{LP: 1, Cause: CauseStraggler, Undone: 1})
	st.RecordGVT(GVTRecord{Tick: 1, GVT: 4})

	// WHEN summarized
	summary := Summarize(st)

	// THEN counts match
	if summary.TotalRollbacks != 3 {
		t.Errorf("expected 3 rollbacks, got %d", summary.TotalRollbacks)
	}
	if summary.StragglerCount != 2 || summary.AntiMessageCount != 1 {
		t.Errorf("expected 2 straggler / 1 antimessage, got %d / %d", summary.StragglerCount, summary.AntiMessageCount)
	}
	if summary.MaxUndone != 6 {
		t.Errorf("expected max undone 6, got %d", summary.MaxUndone)
	}
	if summary.MeanUndone != 3 {
		t.Errorf("expected mean undone 3, got %f", summary.MeanUndone)
	}
	if summary.TotalCancelled != 4 {
		t.Errorf("expected 4 cancelled, got %d", summary.TotalCancelled)
	}
	if summary.PerLP[1] != 2 || summary.PerLP[0] != 1 {
		t.Errorf("unexpected per-LP distribution %v", summary.PerLP)
	}
	if summary.GVTAdvances != 1 {
		t.Errorf("expected 1 GVT advance, got %d", summary.GVTAdvances)
	}
}
