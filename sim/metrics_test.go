package sim

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_Totals(t *testing.T) {
	m := &Metrics{PerLP: []LPStats{
		{LP: 0, Steps: 10, MessagesProcessed: 4, Rollbacks: 1},
		{LP: 1, Steps: 7, MessagesProcessed: 2, Rollbacks: 3},
	}}
	assert.Equal(t, uint64(23), m.EventsProcessed())
	assert.Equal(t, uint64(4), m.Rollbacks())
}

func TestMetrics_Print_WritesSummary(t *testing.T) {
	// GIVEN metrics of a finished run
	m := &Metrics{
		GVT:      100,
		Terminal: 100,
		Ticks:    12,
		Relayed:  30,
		PerLP:    []LPStats{{LP: 0, Steps: 50, MessagesProcessed: 30}},
		WallTime: time.Second,
	}

	// WHEN printed
	var buf bytes.Buffer
	m.Print(&buf)

	// THEN the header, totals and per-LP line appear
	out := buf.String()
	assert.Contains(t, out, "=== Simulation Metrics ===")
	assert.Contains(t, out, "Final GVT            : 100 (terminal 100)")
	assert.Contains(t, out, "Events processed     : 80")
	assert.Contains(t, out, "Events per second    : 80.00")
	assert.Contains(t, out, "lp 0   steps=50 msgs=30")
}

func TestMetrics_Print_ZeroWallTime_OmitsRate(t *testing.T) {
	var buf bytes.Buffer
	(&Metrics{}).Print(&buf)
	assert.NotContains(t, buf.String(), "Events per second")
}

func TestMetrics_Print_ReportsDroppedSnapshots(t *testing.T) {
	m := &Metrics{PerLP: []LPStats{
		{LP: 0, Recorded: 2, Dropped: 4},
		{LP: 1, Recorded: 6},
	}}

	var buf bytes.Buffer
	m.Print(&buf)

	out := buf.String()
	assert.Equal(t, uint64(4), m.Dropped())
	assert.Contains(t, out, "Dropped snapshots    : 4")
	assert.Contains(t, out, "recorded=2 dropped=4")
	assert.Contains(t, out, "recorded=6 dropped=0")
}

func TestMetrics_Print_NoDrops_OmitsDroppedLine(t *testing.T) {
	var buf bytes.Buffer
	(&Metrics{PerLP: []LPStats{{LP: 0, Recorded: 3}}}).Print(&buf)
	assert.NotContains(t, buf.String(), "Dropped snapshots")
}
