package sim

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand"
)

// SimulationKey uniquely identifies a reproducible simulation run.
// Two runs with the same SimulationKey and identical configuration
// commit identical LP states, whatever the thread interleaving.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// StepRNG returns a generator seeded from (key, lp, at).
//
// Derivation formula: key XOR fnv1a64(lp, at).
//
// An LP that draws randomness from StepRNG replays the same draws after a
// rollback, which keeps re-execution deterministic without storing RNG
// state in the history log.
func StepRNG(key SimulationKey, lp LPID, at Time) *rand.Rand {
	return rand.New(rand.NewSource(int64(key) ^ fnv1a64(lp, at)))
}

// fnv1a64 computes a 64-bit FNV-1a hash of (lp, at).
func fnv1a64(lp LPID, at Time) int64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(lp))
	binary.LittleEndian.PutUint64(buf[8:], at)
	h := fnv.New64a()
	h.Write(buf[:])
	return int64(h.Sum64())
}
