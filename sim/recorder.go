package sim

// Snapshot is one committed state of one LP. At is the stamp of the work
// item after which State was captured.
type Snapshot struct {
	LP    LPID
	At    Stamp
	State []byte
}

// Recorder receives snapshots once GVT has passed them, so a recorded
// snapshot is never rolled back. Record is called from LP goroutines and
// must be safe for concurrent use.
type Recorder interface {
	Record(s Snapshot) error
}

// DiscardRecorder drops every snapshot.
type DiscardRecorder struct{}

// Record implements Recorder.
func (DiscardRecorder) Record(Snapshot) error { return nil }
