// Package trace provides run-trace recording for GVT progress and rollbacks.
// This package has no dependencies on sim/ or its engine packages; it stores pure data types.
package trace

// Rollback causes.
const (
	CauseStraggler   = "straggler"
	CauseAntiMessage = "antimessage"
)

// GVTRecord captures one GVT advance observed by the coordinator.
type GVTRecord struct {
	Tick    uint64 `json:"tick"`
	GVT     uint64 `json:"gvt"`
	Backlog int    `json:"backlog"` // transferables waiting in overflow queues
}

// RollbackRecord captures a single rollback performed by an LP.
type RollbackRecord struct {
	LP           int    `json:"lp"`
	Cause        string `json:"cause"`
	TriggerTime  uint64 `json:"trigger_time"`  // timestamp of the straggler or cancelled message
	FromTime     uint64 `json:"from_time"`     // time of the last processed item before rollback
	RestoredTime uint64 `json:"restored_time"` // time of the restored snapshot (0 for genesis)
	Genesis      bool   `json:"genesis"`       // restored to the initial state
	Undone       int    `json:"undone"`        // work items discarded
	Cancelled    int    `json:"cancelled"`     // antimessages emitted
}
