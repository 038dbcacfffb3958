// Package sim provides the data model for the aika optimistic parallel
// discrete-event engine.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - types.go: simulated time, logical process IDs and the Stamp order on work items
//   - event.go: Events and Actions returned by a logical process step
//   - message.go: Messages, antimessages and the Transferable wire form
//   - process.go: the LogicalProcess capability and its per-call State
//
// # Architecture
//
// The sim package defines types and interfaces only; the engine lives in
// sub-packages:
//   - sim/ring/: fixed-capacity single-writer/single-reader ring buffers
//   - sim/comms/: the router holding every LP's outbound and inbound rings
//   - sim/history/: the bounded rollback history log kept by each LP
//   - sim/lp/: the LP runtime, its calendar, and the rollback protocol
//   - sim/gvt/: the coordinator that spawns LPs, relays messages and computes GVT
//   - sim/trace/: GVT and rollback records collected during a run
//   - sim/store/: SQLite Recorder for committed state snapshots
//
// # Key Interfaces
//
//   - LogicalProcess: Step and ProcessMessage, implemented by user code
//   - Recorder: receives committed snapshots once GVT has passed them
package sim
